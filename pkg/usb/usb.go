// Package usb is the narrow USB host-library boundary the ov534 driver
// talks to. It wraps github.com/kevmo314/go-usb, which exposes blocking
// control/bulk transfers, behind the small async-submit/event-loop shape
// the driver's streaming pipeline expects (one dispatch channel per
// Context, drained by a single event-loop goroutine).
package usb

import (
	"fmt"
	"time"
)

// DeviceDescriptor describes one enumerated USB device, independent of the
// underlying host library's handle type.
type DeviceDescriptor struct {
	VendorID  uint16
	ProductID uint16
}

// Device is an enumerated, unopened USB device.
type Device interface {
	Descriptor() DeviceDescriptor
	Open() (DeviceHandle, error)
	BusPortPath() string
}

// DeviceHandle is the subset of an open device's operations this driver
// needs: configuration, interface claim/release, kernel-driver detach,
// control transfers, and bulk transfers. Mirrors
// github.com/kevmo314/go-usb's DeviceHandleInterface.
type DeviceHandle interface {
	Close() error
	ClaimInterface(iface uint8) error
	ReleaseInterface(iface uint8) error
	DetachKernelDriver(iface uint8) error
	AttachKernelDriver(iface uint8) error
	ClearHalt(endpoint uint8) error
	ControlTransfer(requestType, request uint8, value, index uint16, data []byte, timeout time.Duration) (int, error)
	BulkTransfer(endpoint uint8, data []byte, timeout time.Duration) (int, error)
	// BulkEndpoint returns the first bulk IN endpoint address of the first
	// interface's altsetting 0, or an error if none is found.
	BulkEndpoint() (uint8, error)
}

// RequestType bits used by the OV534 vendor control protocol.
const (
	RequestTypeVendorOut = 0x40 // host-to-device | vendor | device
	RequestTypeVendorIn  = 0xc0 // device-to-host | vendor | device
)

// ErrNoBulkEndpoint is returned by BulkEndpoint when the device descriptor
// has no suitable endpoint.
var ErrNoBulkEndpoint = fmt.Errorf("usb: no bulk IN endpoint found")
