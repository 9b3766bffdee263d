package usb

import (
	"time"

	govusb "github.com/kevmo314/go-usb"
)

// Context owns the real host-library context and the single dispatch
// channel every in-flight transfer's completion goroutine posts to. Only
// one goroutine (the USB host singleton's event loop, pkg/ov534) should
// ever call HandleEventsTimeout on a given Context, mirroring libusb's
// single-threaded completion dispatch.
type Context struct {
	real        *govusb.Context
	completions chan completion
}

// NewContext opens the underlying host-library context.
func NewContext() (*Context, error) {
	real, err := govusb.NewContext()
	if err != nil {
		return nil, err
	}
	return &Context{
		real:        real,
		completions: make(chan completion, NumTransfersHint),
	}, nil
}

// NumTransfersHint sizes the completion channel generously enough that a
// burst of simultaneous completions never blocks a transfer's goroutine.
const NumTransfersHint = 16

// Close tears down the underlying host-library context. The caller must
// ensure no transfers are in flight.
func (c *Context) Close() error {
	return c.real.Close()
}

// HandleEventsTimeout drains at most one pending completion, invoking its
// transfer's OnComplete callback synchronously before returning. It blocks
// up to timeout waiting for a completion to arrive. Returns false on
// timeout (nothing to do this tick).
func (c *Context) HandleEventsTimeout(timeout time.Duration) bool {
	select {
	case comp := <-c.completions:
		comp.transfer.dispatch(comp)
		return true
	case <-time.After(timeout):
		return false
	}
}

// ListDevices enumerates every USB device currently present.
func (c *Context) ListDevices() ([]Device, error) {
	devs, err := c.real.GetDeviceList()
	if err != nil {
		return nil, err
	}
	out := make([]Device, 0, len(devs))
	for _, d := range devs {
		out = append(out, &device{real: d})
	}
	return out, nil
}

// device adapts a *govusb.Device to this package's Device interface.
type device struct {
	real *govusb.Device
}

func (d *device) Descriptor() DeviceDescriptor {
	return DeviceDescriptor{
		VendorID:  d.real.Descriptor.VendorID,
		ProductID: d.real.Descriptor.ProductID,
	}
}

func (d *device) BusPortPath() string {
	// govusb does not expose bus/port topology; callers that need a stable
	// identifier fall back to vendor:product plus enumeration order.
	return ""
}

func (d *device) Open() (DeviceHandle, error) {
	h, err := d.real.Open()
	if err != nil {
		return nil, err
	}
	return &handle{real: h}, nil
}

// handle adapts a *govusb.DeviceHandle to this package's DeviceHandle
// interface.
type handle struct {
	real *govusb.DeviceHandle
}

func (h *handle) Close() error                         { return h.real.Close() }
func (h *handle) ClaimInterface(iface uint8) error     { return h.real.ClaimInterface(iface) }
func (h *handle) ReleaseInterface(iface uint8) error   { return h.real.ReleaseInterface(iface) }
func (h *handle) DetachKernelDriver(iface uint8) error { return h.real.DetachKernelDriver(iface) }
func (h *handle) AttachKernelDriver(iface uint8) error { return h.real.AttachKernelDriver(iface) }
func (h *handle) ClearHalt(endpoint uint8) error       { return h.real.ClearHalt(endpoint) }

func (h *handle) ControlTransfer(requestType, request uint8, value, index uint16, data []byte, timeout time.Duration) (int, error) {
	return h.real.ControlTransfer(requestType, request, value, index, data, timeout)
}

func (h *handle) BulkTransfer(endpoint uint8, data []byte, timeout time.Duration) (int, error) {
	return h.real.BulkTransfer(endpoint, data, timeout)
}

// BulkEndpoint finds the first bulk IN endpoint of the first interface's
// altsetting 0 — the same search the original driver's find_ep performs
// against libusb's config descriptor.
func (h *handle) BulkEndpoint() (uint8, error) {
	_, interfaces, endpoints, err := h.real.ReadConfigDescriptor(0)
	if err != nil {
		return 0, err
	}
	if len(interfaces) == 0 {
		return 0, ErrNoBulkEndpoint
	}
	const (
		transferTypeMask = 0x03
		transferTypeBulk = 0x02
		directionIn      = 0x80
	)
	for _, ep := range endpoints {
		if ep.Attributes&transferTypeMask != transferTypeBulk {
			continue
		}
		if ep.EndpointAddr&directionIn == 0 {
			continue
		}
		if ep.MaxPacketSize == 0 {
			continue
		}
		return ep.EndpointAddr, nil
	}
	return 0, ErrNoBulkEndpoint
}
