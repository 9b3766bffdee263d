package ov534

import (
	"sync"

	"go.uber.org/zap"

	ov534usb "ov534cam/pkg/usb"
)

// Host is the process-wide USB host singleton. Exactly one usb.Context
// exists per process; exactly one goroutine ever calls
// HandleEventsTimeout on it, satisfying that Context's single-dispatcher
// requirement. The event loop starts on the 0->1 transition of the active
// streaming-camera count and stops on the 1->0 transition, mirroring the
// original driver's USBMgr reference counting.
type Host struct {
	usbCtx *ov534usb.Context
	logger *zap.SugaredLogger

	mu      sync.Mutex
	active  int
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

var (
	hostOnce sync.Once
	host     *Host
	hostErr  error
)

// getHost returns the process-wide Host, constructing its usb.Context on
// first call.
func getHost(logger *zap.SugaredLogger) (*Host, error) {
	hostOnce.Do(func() {
		ctx, err := ov534usb.NewContext()
		if err != nil {
			hostErr = err
			return
		}
		host = &Host{usbCtx: ctx, logger: logger}
	})
	return host, hostErr
}

// cameraStarted bumps the active-streaming-camera count, starting the
// background event loop if this is the first active camera.
func (h *Host) cameraStarted() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.active++
	if h.active == 1 && !h.running {
		h.stopCh = make(chan struct{})
		h.doneCh = make(chan struct{})
		h.running = true
		go h.eventLoop(h.stopCh, h.doneCh)
	}
}

// cameraStopped decrements the active-streaming-camera count, stopping the
// background event loop once no camera is streaming.
func (h *Host) cameraStopped() {
	h.mu.Lock()
	h.active--
	if h.active < 0 {
		h.active = 0
	}
	stop := h.active == 0 && h.running
	var stopCh, doneCh chan struct{}
	if stop {
		stopCh = h.stopCh
		doneCh = h.doneCh
		h.running = false
	}
	h.mu.Unlock()

	if stop {
		close(stopCh)
		<-doneCh
	}
}

// eventLoop is the host's single completion-dispatch goroutine. It polls
// HandleEventsTimeout on a fixed interval until told to stop.
func (h *Host) eventLoop(stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	for {
		select {
		case <-stopCh:
			return
		default:
		}
		h.usbCtx.HandleEventsTimeout(eventLoopPollInterval)
	}
}
