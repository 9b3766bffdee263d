package ov534

import (
	"errors"
	"testing"

	ov534usb "ov534cam/pkg/usb"
)

// header builds a UVCHeaderLen-byte UVC-lite payload header with the given
// flags and PTS.
func header(flags byte, pts uint32) []byte {
	h := make([]byte, UVCHeaderLen)
	h[0] = UVCHeaderLen
	h[1] = flags
	h[2] = byte(pts)
	h[3] = byte(pts >> 8)
	h[4] = byte(pts >> 16)
	h[5] = byte(pts >> 24)
	return h
}

func newTestPump(frameSize int) *urbPump {
	p := &urbPump{
		ring:      newFrameRing(frameSize),
		frameSize: frameSize,
	}
	p.frameBuf = p.ring.HeadStart()
	return p
}

func TestHandlePacketAssemblesCompleteFrame(t *testing.T) {
	const frameSize = 8
	p := newTestPump(frameSize)

	flagsFirst := uint8(uvcStreamPTS)
	flagsLast := uint8(uvcStreamPTS | uvcStreamEOF)

	p.handlePacket(header(flagsFirst, 100), make([]byte, 4))
	p.handlePacket(header(flagsLast, 100), make([]byte, 4))

	p.ring.mu.Lock()
	available := p.ring.available
	p.ring.mu.Unlock()

	if available != 1 {
		t.Fatalf("available = %d, want 1 after a complete EOF frame", available)
	}
}

func TestHandlePacketDropsSizeMismatchedFrame(t *testing.T) {
	const frameSize = 8
	p := newTestPump(frameSize)

	flags := uint8(uvcStreamPTS | uvcStreamEOF)
	// Only 4 of the expected 8 bytes arrive before EOF.
	p.handlePacket(header(flags, 1), make([]byte, 4))

	p.ring.mu.Lock()
	available := p.ring.available
	p.ring.mu.Unlock()

	if available != 0 {
		t.Fatalf("available = %d, want 0 for a short frame dropped at EOF", available)
	}
}

func TestHandlePacketErrFlagDiscardsFrame(t *testing.T) {
	const frameSize = 8
	p := newTestPump(frameSize)

	p.handlePacket(header(uvcStreamPTS, 5), make([]byte, 4))
	p.handlePacket(header(uvcStreamERR, 5), make([]byte, 4))
	// Same PTS/FID as the first packet, so without the ERR flag this would
	// be classified INTER and keep writing; it must instead be discarded.
	p.handlePacket(header(uvcStreamPTS|uvcStreamEOF, 5), make([]byte, 4))

	p.ring.mu.Lock()
	available := p.ring.available
	p.ring.mu.Unlock()

	if available != 0 {
		t.Fatalf("available = %d, want 0: an ERR packet mid-frame must discard it", available)
	}
}

func TestHandlePacketNewPTSStartsNewFrame(t *testing.T) {
	const frameSize = 4
	p := newTestPump(frameSize)

	// First frame never reaches EOF.
	p.handlePacket(header(uvcStreamPTS, 1), make([]byte, 4))
	// A new PTS before EOF abandons it and starts fresh.
	p.handlePacket(header(uvcStreamPTS|uvcStreamEOF, 2), make([]byte, 4))

	p.ring.mu.Lock()
	available := p.ring.available
	p.ring.mu.Unlock()

	if available != 1 {
		t.Fatalf("available = %d, want 1: the second frame should complete cleanly", available)
	}
}

func TestHandlePacketBadMagicByteDiscardsFrame(t *testing.T) {
	const frameSize = 8
	p := newTestPump(frameSize)

	p.handlePacket(header(uvcStreamPTS, 5), make([]byte, 4))
	bad := header(uvcStreamPTS|uvcStreamEOF, 5)
	bad[0] = 7 // corrupt: header[0] must be exactly UVCHeaderLen (12)
	p.handlePacket(bad, make([]byte, 4))

	p.ring.mu.Lock()
	available := p.ring.available
	p.ring.mu.Unlock()

	if available != 0 {
		t.Fatalf("available = %d, want 0: a header[0] != %d packet must discard the in-progress frame", available, UVCHeaderLen)
	}
}

func TestProcessPayloadProcessesExactHeaderLengthStride(t *testing.T) {
	const frameSize = 0
	p := newTestPump(frameSize)

	// A stride exactly UVCHeaderLen bytes long carries a header and a
	// zero-length body; it must still be handled, not skipped.
	data := header(uvcStreamPTS|uvcStreamEOF, 3)
	p.processPayload(data)

	p.ring.mu.Lock()
	available := p.ring.available
	p.ring.mu.Unlock()

	if available != 1 {
		t.Fatalf("available = %d, want 1: an exactly-%d-byte stride must still be processed", available, UVCHeaderLen)
	}
}

func TestOnCompleteErrorClosesOtherTransfersAndReportsOnFatal(t *testing.T) {
	p := newTestPump(8)
	p.mu.Lock()
	p.active = 2
	p.mu.Unlock()

	var fatalErr error
	p.onFatal = func(err error) { fatalErr = err }

	ctx := &ov534usb.Context{}
	failing := ctx.NewTransfer(nil, 0x81, make([]byte, 16))
	other := ctx.NewTransfer(nil, 0x81, make([]byte, 16))
	p.transfers = []*ov534usb.Transfer{failing, other}

	p.onComplete(failing, ov534usb.StatusError, 0)

	if fatalErr == nil {
		t.Fatal("onFatal was not invoked on a genuine transfer error")
	}
	if !errors.Is(fatalErr, errBulkTransferFailed) {
		t.Fatalf("onFatal received %v, want errBulkTransferFailed", fatalErr)
	}

	_ = other // Cancel() on every other transfer is exercised by pkg/usb's own
	// dispatch tests (TestDispatchCancelledAlwaysWinsOverError); here we only
	// check the pump's own bookkeeping around a StatusError completion.

	p.mu.Lock()
	closing, active := p.closing, p.active
	p.mu.Unlock()
	if !closing {
		t.Fatal("pump did not mark itself closing after a StatusError completion")
	}
	if active != 1 {
		t.Fatalf("active = %d, want 1: the failed transfer must retire without resubmitting", active)
	}
}

func TestProcessPayloadSplitsIntoStrides(t *testing.T) {
	const frameSize = 4
	p := newTestPump(frameSize)

	packet := append(header(uvcStreamPTS|uvcStreamEOF, 9), make([]byte, 4)...)
	data := make([]byte, PayloadStride+len(packet))
	copy(data[PayloadStride:], packet)

	p.processPayload(data)

	p.ring.mu.Lock()
	available := p.ring.available
	p.ring.mu.Unlock()

	if available != 1 {
		t.Fatalf("available = %d, want 1: second stride should parse as a complete frame", available)
	}
}
