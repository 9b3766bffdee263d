package ov534

import (
	"runtime"

	ov534usb "ov534cam/pkg/usb"
)

// bridgeWrite issues a vendor-specific control-OUT transfer writing val to
// bridge register reg. A failing transfer latches the sticky error; once
// latched, further register operations become no-ops (see hasStickyError
// callers throughout this file).
func (c *Camera) bridgeWrite(reg uint16, val uint8) {
	if c.hasStickyError() || c.handle == nil {
		return
	}
	c.scratch[0] = val
	_, err := c.handle.ControlTransfer(ov534usb.RequestTypeVendorOut, 0x01, 0x00, reg, c.scratch[:1], controlTransferTimeout)
	if err != nil {
		c.setSticky(errControlTransferFailed, err)
	}
}

// bridgeRead issues a vendor-specific control-IN transfer reading bridge
// register reg.
func (c *Camera) bridgeRead(reg uint16) uint8 {
	if c.hasStickyError() || c.handle == nil {
		return 0
	}
	_, err := c.handle.ControlTransfer(ov534usb.RequestTypeVendorIn, 0x01, 0x00, reg, c.scratch[:1], controlTransferTimeout)
	if err != nil {
		c.setSticky(errControlTransferFailed, err)
		return 0
	}
	return c.scratch[0]
}

// sccbWait polls the bridge's SCCB status register up to 5 times. 0x00
// means the transaction succeeded, 0x04 means it failed, 0x03 means "keep
// polling", and any other value is logged and treated the same as 0x03.
// Between polls it yields to the scheduler. Failure here is non-fatal: it
// is logged and the caller proceeds anyway, matching the original driver's best-effort SCCB handling.
func (c *Camera) sccbWait() bool {
	for i := 0; i < 5; i++ {
		status := c.bridgeRead(regSensorStatus)
		switch status {
		case 0x00:
			return true
		case 0x04:
			return false
		case 0x03:
			// keep polling
		default:
			if c.logger != nil {
				c.logger.Debugf("sccb status 0x%02x, attempt %d/5", status, i+1)
			}
		}
		runtime.Gosched()
	}
	return false
}

// sccbWrite tunnels a sensor register write through the bridge's SCCB
// registers.
func (c *Camera) sccbWrite(reg, val uint8) {
	c.bridgeWrite(regSensorSubAddr, reg)
	c.bridgeWrite(regSensorWrite, val)
	c.bridgeWrite(regSensorOp, opWrite3)
	if !c.sccbWait() && c.logger != nil {
		c.logger.Debugf("sccb write to 0x%02x failed", reg)
	}
}

// sccbRead tunnels a sensor register read through the bridge's SCCB
// registers.
func (c *Camera) sccbRead(reg uint8) uint8 {
	c.bridgeWrite(regSensorSubAddr, reg)
	c.bridgeWrite(regSensorOp, opWrite2)
	if !c.sccbWait() && c.logger != nil {
		c.logger.Debugf("sccb read setup for 0x%02x failed", reg)
	}
	c.bridgeWrite(regSensorOp, opRead2)
	if !c.sccbWait() && c.logger != nil {
		c.logger.Debugf("sccb read dispatch for 0x%02x failed", reg)
	}
	return c.bridgeRead(regSensorRead)
}

// regWriteArray applies a batch of bridge register writes in order.
func (c *Camera) regWriteArray(pairs []regPair) {
	for _, p := range pairs {
		c.bridgeWrite(uint16(p.reg), p.val)
	}
}

// sccbWriteArray applies a batch of sensor register writes. A 0xff
// sentinel register means "read register val, then issue a 0xff/0x00
// no-op write" — a delay convention carried over from the init tables.
func (c *Camera) sccbWriteArray(pairs []regPair) {
	for _, p := range pairs {
		if p.reg != 0xff {
			c.sccbWrite(p.reg, p.val)
		} else {
			c.sccbRead(p.val)
			c.sccbWrite(0xff, 0x00)
		}
	}
}

// setLED toggles the bridge's LED direction/output bits (0x21 bit 7 is
// direction, 0x23 bit 7 is output).
func (c *Camera) setLED(on bool) {
	data := c.bridgeRead(0x21)
	data |= 0x80
	c.bridgeWrite(0x21, data)

	data = c.bridgeRead(0x23)
	if on {
		data |= 0x80
	} else {
		data &^= 0x80
	}
	c.bridgeWrite(0x23, data)

	if !on {
		data = c.bridgeRead(0x21)
		data &^= 0x80
		c.bridgeWrite(0x21, data)
	}
}

// applyFramerateRegisters writes the quantized rate table entry for fps at
// the camera's current resolution.
func (c *Camera) applyFramerateRegisters(fps int) {
	e := quantizeRate(fps, c.resolution)
	c.sccbWrite(0x11, e.r11)
	c.sccbWrite(0x0d, e.r0d)
	c.bridgeWrite(0xe5, e.bridgeE5)
}
