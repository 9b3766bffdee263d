package ov534

import (
	"errors"
	"sync"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	ov534usb "ov534cam/pkg/usb"
)

// logEveryBytes bounds how often the pump logs cumulative throughput, so a
// streaming camera doesn't flood the log at one line per bulk completion.
const logEveryBytes = 16 * 1024 * 1024

// errBulkTransferFailed is reported to onFatal when a bulk transfer
// completes with a genuine (non-timeout) error.
var errBulkTransferFailed = errors.New("ov534: bulk transfer failed")

// urbPump keeps NumTransfers bulk reads continuously in flight against the
// camera's bulk IN endpoint, reassembles the UVC-lite payload stream they
// deliver into whole Bayer frames, and commits each finished frame to a
// frameRing. All reassembly state (frameBuf, framePos, lastPTS, lastFID,
// discarding) is touched only from whichever goroutine is draining the
// owning usb.Context's completions — the host singleton's single event
// loop — so none of it needs its own lock.
type urbPump struct {
	handle   ov534usb.DeviceHandle
	endpoint uint8
	logger   *zap.SugaredLogger

	// onFatal, if set, is called once (from onComplete) when a bulk
	// transfer fails with a genuine I/O error, so the caller can latch a
	// sticky error before the next GetFrame observes the ring going dry.
	onFatal func(error)

	ring      *frameRing
	frameSize int

	transfers []*ov534usb.Transfer

	mu      sync.Mutex
	cond    *sync.Cond
	active  int
	closing bool

	frameBuf   []byte
	framePos   int
	haveFrame  bool
	discarding bool
	lastPTS    uint32
	lastFID    uint8

	totalBytes    uint64
	loggedAtBytes uint64
}

// newURBPump locates the camera's bulk IN endpoint, clears its halt, and
// allocates the ring and transfer buffers. It does not submit anything;
// call start for that.
func newURBPump(ctx *ov534usb.Context, handle ov534usb.DeviceHandle, frameSize int, logger *zap.SugaredLogger, onFatal func(error)) (*urbPump, error) {
	endpoint, err := handle.BulkEndpoint()
	if err != nil {
		return nil, err
	}
	_ = handle.ClearHalt(endpoint)

	p := &urbPump{
		handle:    handle,
		endpoint:  endpoint,
		logger:    logger,
		onFatal:   onFatal,
		ring:      newFrameRing(frameSize),
		frameSize: frameSize,
	}
	p.cond = sync.NewCond(&p.mu)
	p.frameBuf = p.ring.HeadStart()

	bufs := make([]byte, NumTransfers*TransferSize)
	p.transfers = make([]*ov534usb.Transfer, NumTransfers)
	for i := range p.transfers {
		buf := bufs[i*TransferSize : (i+1)*TransferSize : (i+1)*TransferSize]
		t := ctx.NewTransfer(handle, endpoint, buf)
		t.OnComplete = func(status ov534usb.TransferStatus, n int) {
			p.onComplete(t, status, n)
		}
		p.transfers[i] = t
	}
	return p, nil
}

// start submits every transfer. Each keeps resubmitting itself from its
// own completion callback until close is called.
func (p *urbPump) start() error {
	p.mu.Lock()
	p.active = len(p.transfers)
	p.closing = false
	p.mu.Unlock()

	for _, t := range p.transfers {
		if err := t.Submit(); err != nil {
			return err
		}
	}
	return nil
}

// close cancels every in-flight transfer and blocks until all of them have
// finished their current round trip and stopped resubmitting.
func (p *urbPump) close() {
	p.mu.Lock()
	p.closing = true
	for _, t := range p.transfers {
		t.Cancel()
	}
	for p.active > 0 {
		p.cond.Wait()
	}
	p.mu.Unlock()
}

// onComplete runs on the single goroutine draining the owning Context's
// completions. A completed transfer has its payload parsed before being
// resubmitted. A timed-out transfer (the adapter's bounded blocking read
// expiring with no data ready, not a real I/O failure) is also just
// resubmitted. A genuine transfer error closes every other in-flight
// transfer and retires this one instead of resubmitting — mirroring the
// original driver's transfer_canceled()+close_transfers() on a failed URB.
// A cancelled or already-closing transfer is retired without resubmitting.
func (p *urbPump) onComplete(t *ov534usb.Transfer, status ov534usb.TransferStatus, n int) {
	switch status {
	case ov534usb.StatusCompleted:
		p.processPayload(t.Buffer()[:n])
	case ov534usb.StatusTimeout:
		if p.logger != nil {
			p.logger.Debugw("bulk transfer timed out, resubmitting")
		}
	case ov534usb.StatusError:
		if p.logger != nil {
			p.logger.Errorw("bulk transfer failed, closing stream")
		}
		p.mu.Lock()
		if !p.closing {
			p.closing = true
			for _, other := range p.transfers {
				if other != t {
					other.Cancel()
				}
			}
		}
		p.mu.Unlock()
		if p.onFatal != nil {
			p.onFatal(errBulkTransferFailed)
		}
	}

	p.mu.Lock()
	if p.closing || status == ov534usb.StatusCancelled || status == ov534usb.StatusError {
		p.active--
		p.cond.Signal()
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	if err := t.Submit(); err != nil && p.logger != nil {
		p.logger.Errorw("failed to resubmit bulk transfer", "err", err)
	}
}

// processPayload walks one completed bulk transfer's bytes in
// PayloadStride chunks, each carrying a UVCHeaderLen-byte header followed
// by frame payload.
func (p *urbPump) processPayload(data []byte) {
	p.totalBytes += uint64(len(data))
	if p.logger != nil && p.totalBytes-p.loggedAtBytes >= logEveryBytes {
		p.logger.Debugf("streamed %s from bulk endpoint", humanize.Bytes(p.totalBytes))
		p.loggedAtBytes = p.totalBytes
	}

	for off := 0; off < len(data); off += PayloadStride {
		end := off + PayloadStride
		if end > len(data) {
			end = len(data)
		}
		chunk := data[off:end]
		if len(chunk) < UVCHeaderLen {
			continue
		}
		p.handlePacket(chunk[:UVCHeaderLen], chunk[UVCHeaderLen:])
	}
}

// handlePacket classifies one UVC-lite payload packet (FIRST/INTER/LAST of
// a frame, or DISCARD) from its header flags and PTS/FID, copies its
// payload into the frame currently being assembled, and commits the frame
// to the ring when EOF arrives with the expected byte count.
func (p *urbPump) handlePacket(header, payload []byte) {
	flags := header[1]

	if header[0] != UVCHeaderLen || flags&uvcStreamERR != 0 || flags&uvcStreamPTS == 0 {
		// Malformed or error packet: abandon whatever frame is in
		// progress. The next packet carrying a fresh PTS/FID starts over.
		p.discarding = true
		return
	}

	pts := uint32(header[2]) | uint32(header[3])<<8 | uint32(header[4])<<16 | uint32(header[5])<<24
	fid := flags & uvcStreamFID

	if !p.haveFrame || pts != p.lastPTS || fid != p.lastFID {
		// FIRST packet of a new frame. Any previous frame that never saw
		// EOF is simply dropped in place — its slot gets overwritten.
		p.framePos = 0
		p.discarding = false
		p.haveFrame = true
	}
	p.lastPTS = pts
	p.lastFID = fid

	if p.discarding {
		return
	}

	n := copy(p.frameBuf[p.framePos:], payload)
	p.framePos += n
	if n < len(payload) {
		// More bytes arrived than the frame buffer can hold.
		p.discarding = true
		return
	}

	if flags&uvcStreamEOF != 0 {
		if p.framePos == p.frameSize {
			p.frameBuf = p.ring.Commit()
		} else if p.logger != nil {
			p.logger.Debugf("dropping incomplete frame: got %d of %d bytes", p.framePos, p.frameSize)
		}
		p.framePos = 0
		p.haveFrame = false
	}
}
