package ov534

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"go.uber.org/zap"

	ov534usb "ov534cam/pkg/usb"
)

// Camera lifecycle states, driven by a looplab/fsm state machine the same
// way the teacher's cmd/fsm prototype drives its own preview/capture
// lifecycle.
const (
	stateClosed      = "closed"
	stateOpened      = "opened"
	stateInitialized = "initialized"
	stateStreaming   = "streaming"
)

// Camera is one physical OV534/OV772x device. All exported methods are
// safe to call from a single application goroutine; GetFrame is the only
// method expected to be called concurrently with streaming teardown, and
// it is itself safe because the ring it reads from is independently
// synchronized.
type Camera struct {
	mu  sync.Mutex
	fsm *fsm.FSM

	host    *Host
	device  ov534usb.Device
	handle  ov534usb.DeviceHandle
	scratch [1]byte

	resolution Resolution
	format     Format
	framerate  int

	gain, sharpness, contrast, brightness, hue uint8
	redBlc, blueBlc, greenBlc, saturation      uint8
	exposure                                   uint8
	autoGain, awb, flipH, flipV, testPattern   bool

	pump *urbPump

	errCode ErrorCode
	lastErr error

	logger *zap.SugaredLogger
}

func newCamera(host *Host, device ov534usb.Device, logger *zap.SugaredLogger) *Camera {
	c := &Camera{
		host:       host,
		device:     device,
		logger:     logger,
		gain:       defaultGain,
		sharpness:  defaultSharpness,
		contrast:   defaultContrast,
		brightness: defaultBrightness,
		hue:        defaultHue,
		redBlc:     defaultRedBlc,
		blueBlc:    defaultBlueBlc,
		greenBlc:   defaultGreenBlc,
		saturation: defaultSaturation,
		exposure:   defaultExposure,
	}
	c.fsm = fsm.NewFSM(
		stateClosed,
		fsm.Events{
			{Name: "open", Src: []string{stateClosed}, Dst: stateOpened},
			{Name: "configure", Src: []string{stateOpened, stateInitialized, stateStreaming}, Dst: stateInitialized},
			{Name: "start", Src: []string{stateInitialized}, Dst: stateStreaming},
			{Name: "stop", Src: []string{stateStreaming}, Dst: stateInitialized},
			{Name: "release", Src: []string{stateOpened, stateInitialized, stateStreaming}, Dst: stateClosed},
		},
		fsm.Callbacks{
			"enter_" + stateOpened:      func(_ context.Context, e *fsm.Event) { c.onEnterOpened(e) },
			"enter_" + stateInitialized: func(_ context.Context, e *fsm.Event) { c.onEnterInitialized(e) },
			"enter_" + stateStreaming:   func(_ context.Context, e *fsm.Event) { c.onEnterStreaming(e) },
			"leave_" + stateStreaming:   func(_ context.Context, e *fsm.Event) { c.onLeaveStreaming(e) },
			"enter_" + stateClosed:      func(_ context.Context, e *fsm.Event) { c.onEnterClosed(e) },
		},
	)
	return c
}

// IsOpen reports whether the device handle is claimed (opened, initialized,
// or streaming).
func (c *Camera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fsm.Current() != stateClosed
}

// IsInitialized reports whether the camera is in the initialized or
// streaming state. Init enters that state even when a control transfer
// fails during initialization, so Init's result and ErrorCode tell
// whether it succeeded.
func (c *Camera) IsInitialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur := c.fsm.Current()
	return cur == stateInitialized || cur == stateStreaming
}

// ErrorCode returns the camera's sticky error code.
func (c *Camera) ErrorCode() ErrorCode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errCode
}

// ErrorString renders the camera's current sticky error.
func (c *Camera) ErrorString() string {
	return ErrorString(c.ErrorCode())
}

// Width reports the configured capture width in pixels.
func (c *Camera) Width() int {
	w, _ := c.resolution.dims()
	return w
}

// Height reports the configured capture height in pixels.
func (c *Camera) Height() int {
	_, h := c.resolution.dims()
	return h
}

// Stride reports the per-row byte count of a GetFrame buffer.
func (c *Camera) Stride() int {
	return c.Width() * c.format.BytesPerPixel()
}

// BytesPerPixel reports the per-pixel byte count of the configured format.
func (c *Camera) BytesPerPixel() int {
	return c.format.BytesPerPixel()
}

// Framerate reports the quantized frame rate Init/SetFramerate last chose.
func (c *Camera) Framerate() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.framerate
}

func (c *Camera) setSticky(code ErrorCode, err error) {
	c.errCode = code
	c.lastErr = err
	if c.logger != nil && err != nil {
		c.logger.Errorw("camera error", "code", code, "err", err)
	}
}

func (c *Camera) hasStickyError() bool {
	return c.errCode != NoError
}

// Init opens the device if necessary, resets the bridge and sensor, and
// loads the init register tables. res/fps/format are recorded for Start.
func (c *Camera) Init(res Resolution, fps int, format Format) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fsm.Current() == stateClosed {
		if err := c.fsm.Event(context.Background(), "open"); err != nil {
			return false
		}
		if c.hasStickyError() {
			c.fsm.SetState(stateClosed)
			return false
		}
	}

	c.errCode = NoError
	c.lastErr = nil
	c.resolution = res
	c.format = format
	c.framerate = NormalizeFramerate(fps, res)

	if c.fsm.Current() == stateInitialized {
		// looplab/fsm runs no enter callbacks on a self-transition, so the
		// initialization sequence is re-run directly.
		c.onEnterInitialized(nil)
		return !c.hasStickyError()
	}
	if err := c.fsm.Event(context.Background(), "configure"); err != nil {
		return false
	}
	return !c.hasStickyError()
}

// Start applies mode-specific register blobs, the frame rate, every
// control value, and begins the bulk transfer pump.
func (c *Camera) Start() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fsm.Current() != stateInitialized || c.hasStickyError() {
		return false
	}
	if err := c.fsm.Event(context.Background(), "start"); err != nil {
		return false
	}
	return !c.hasStickyError()
}

// Stop halts streaming. Idempotent: calling Stop when not streaming is a
// no-op.
func (c *Camera) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fsm.Current() != stateStreaming {
		return
	}
	_ = c.fsm.Event(context.Background(), "stop")
}

// Release stops streaming if needed and releases the USB interface and
// handle. Idempotent.
func (c *Camera) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fsm.Current() == stateClosed {
		return
	}
	_ = c.fsm.Event(context.Background(), "release")
}

// GetFrame blocks up to the ring's bounded wait for the next decoded
// frame. dest must be exactly Width()*Height()*BytesPerPixel() bytes.
func (c *Camera) GetFrame(dest []byte) bool {
	c.mu.Lock()
	pump := c.pump
	sticky := c.hasStickyError()
	streaming := c.fsm.Current() == stateStreaming
	w, h, format := c.Width(), c.Height(), c.format
	c.mu.Unlock()

	if !streaming || pump == nil {
		return false
	}
	if sticky {
		c.Stop()
		c.Release()
		return false
	}
	return pump.ring.Dequeue(dest, w, h, format)
}

func (c *Camera) onEnterOpened(_ *fsm.Event) {
	handle, err := c.device.Open()
	if err != nil {
		c.setSticky(errOpenFailed, fmt.Errorf("open device: %w", err))
		return
	}
	// The OV534 has a Linux kernel module of its own; detach it so this
	// driver can claim the interface. Absence of a kernel driver (e.g. on
	// non-Linux hosts) is not an error.
	_ = handle.DetachKernelDriver(0)

	if err := handle.ClaimInterface(0); err != nil {
		c.setSticky(errClaimFailed, fmt.Errorf("claim interface: %w", err))
		_ = handle.Close()
		return
	}
	c.handle = handle
}

func (c *Camera) onEnterInitialized(_ *fsm.Event) {
	if c.hasStickyError() {
		return
	}
	c.bridgeWrite(0xe7, 0x3a)
	c.bridgeWrite(0xe0, 0x08)
	time.Sleep(bridgeResetSleep)

	c.bridgeWrite(regSensorAddress, 0x42)

	c.sccbWrite(0x12, 0x80)
	time.Sleep(sensorResetSleep)

	// Probe the sensor ID purely for diagnostics; failures here are
	// logged by sccbRead itself and are not fatal.
	hi := c.sccbRead(0x0a)
	lo := c.sccbRead(0x0b)
	if c.logger != nil {
		c.logger.Debugf("sensor id: %04x", uint16(hi)<<8|uint16(lo))
	}

	c.regWriteArray(bridgeInitTable)
	c.setLED(true)
	c.sccbWriteArray(sensorInitTable)
	c.bridgeWrite(0xe0, 0x09)
	c.setLED(false)
}

func (c *Camera) onEnterStreaming(_ *fsm.Event) {
	if c.hasStickyError() {
		return
	}
	width, height := c.resolution.dims()
	if c.resolution == ResolutionQVGA {
		c.regWriteArray(bridgeStartQVGA)
		c.sccbWriteArray(sensorStartQVGA)
	} else {
		c.regWriteArray(bridgeStartVGA)
		c.sccbWriteArray(sensorStartVGA)
	}

	c.applyFramerateRegisters(c.framerate)
	c.applyAllControls()

	c.setLED(true)
	c.bridgeWrite(0xe0, 0x00)
	if c.hasStickyError() {
		return
	}

	pump, err := newURBPump(c.host.usbCtx, c.handle, width*height, c.logger, func(ferr error) {
		c.mu.Lock()
		c.setSticky(errStreamingIOFailed, ferr)
		c.mu.Unlock()
	})
	if err != nil {
		c.setSticky(errStreamingIOFailed, err)
		return
	}
	if err := pump.start(); err != nil {
		c.setSticky(errStreamingIOFailed, err)
		return
	}
	c.host.cameraStarted()
	c.pump = pump
}

func (c *Camera) onLeaveStreaming(_ *fsm.Event) {
	if c.handle != nil {
		c.bridgeWrite(0xe0, 0x09)
		c.setLED(false)
	}
	if c.pump != nil {
		c.pump.close()
		c.pump = nil
		c.host.cameraStopped()
	}
}

func (c *Camera) onEnterClosed(_ *fsm.Event) {
	if c.handle == nil {
		return
	}
	_ = c.handle.ReleaseInterface(0)
	_ = c.handle.AttachKernelDriver(0)
	_ = c.handle.Close()
	c.handle = nil
}
