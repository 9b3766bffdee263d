package ov534

import (
	"sync"
	"time"

	ov534usb "ov534cam/pkg/usb"
)

// fakeHandle is an in-memory stand-in for a real USB device handle: it
// keeps a register file (for control transfers) and a channel of
// pre-scripted bulk payloads, so the camera state machine and URB pump can
// be exercised without real hardware.
type fakeHandle struct {
	mu    sync.Mutex
	regs  map[uint16]uint8
	ep    uint8
	epErr error

	bulkPayloads [][]byte
	bulkIdx      int
	bulkErr      error

	closed bool
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{regs: make(map[uint16]uint8), ep: 0x81}
}

func (h *fakeHandle) Close() error                   { h.closed = true; return nil }
func (h *fakeHandle) ClaimInterface(uint8) error     { return nil }
func (h *fakeHandle) ReleaseInterface(uint8) error   { return nil }
func (h *fakeHandle) DetachKernelDriver(uint8) error { return nil }
func (h *fakeHandle) AttachKernelDriver(uint8) error { return nil }
func (h *fakeHandle) ClearHalt(uint8) error          { return nil }

func (h *fakeHandle) ControlTransfer(requestType, _ uint8, _ uint16, index uint16, data []byte, _ time.Duration) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if requestType == ov534usb.RequestTypeVendorOut {
		h.regs[index] = data[0]
		return 1, nil
	}
	data[0] = h.regs[index]
	return 1, nil
}

func (h *fakeHandle) BulkTransfer(_ uint8, data []byte, _ time.Duration) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.bulkErr != nil {
		return 0, h.bulkErr
	}
	if h.bulkIdx >= len(h.bulkPayloads) {
		return 0, nil
	}
	p := h.bulkPayloads[h.bulkIdx]
	h.bulkIdx++
	n := copy(data, p)
	return n, nil
}

func (h *fakeHandle) BulkEndpoint() (uint8, error) {
	return h.ep, h.epErr
}

// fakeDevice adapts a fakeHandle to the ov534usb.Device interface.
type fakeDevice struct {
	handle  *fakeHandle
	openErr error
}

func (d *fakeDevice) Descriptor() ov534usb.DeviceDescriptor {
	return ov534usb.DeviceDescriptor{VendorID: VendorID, ProductID: ProductID}
}
func (d *fakeDevice) BusPortPath() string { return "fake" }
func (d *fakeDevice) Open() (ov534usb.DeviceHandle, error) {
	if d.openErr != nil {
		return nil, d.openErr
	}
	return d.handle, nil
}
