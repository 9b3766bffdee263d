package ov534

import (
	"sync"

	"go.uber.org/zap"
)

var (
	packageMu     sync.Mutex
	packageLogger = zap.NewNop().Sugar()
	debugLevel    = zap.NewAtomicLevelAt(zap.InfoLevel)
)

// SetLogger installs the *zap.SugaredLogger used by ListDevices and every
// Camera it constructs. Call this once during startup, before ListDevices;
// callers that never call it get a no-op logger.
func SetLogger(logger *zap.SugaredLogger) {
	packageMu.Lock()
	defer packageMu.Unlock()
	packageLogger = logger
}

// SetDebug sets the package-level debug level: zap.DebugLevel when enabled,
// zap.InfoLevel otherwise. No logger in this package is built from that
// level, so it does not change what the logger installed with SetLogger
// emits, and it leaves the host library's log level as it is.
func SetDebug(enabled bool) {
	if enabled {
		debugLevel.SetLevel(zap.DebugLevel)
	} else {
		debugLevel.SetLevel(zap.InfoLevel)
	}
}

// ListDevices enumerates every USB device currently attached, filters them
// to this driver's vendor/product ID, probes each candidate by opening and
// immediately closing its handle, and returns a Camera for every device
// that survives the probe.
func ListDevices() ([]*Camera, error) {
	packageMu.Lock()
	logger := packageLogger
	packageMu.Unlock()

	h, err := getHost(logger)
	if err != nil {
		return nil, err
	}

	devices, err := h.usbCtx.ListDevices()
	if err != nil {
		return nil, err
	}

	var cameras []*Camera
	for _, d := range devices {
		desc := d.Descriptor()
		if desc.VendorID != VendorID || desc.ProductID != ProductID {
			continue
		}

		handle, err := d.Open()
		if err != nil {
			logger.Debugw("skipping device that failed to open", "err", err)
			continue
		}
		_ = handle.Close()

		cameras = append(cameras, newCamera(h, d, logger))
	}
	return cameras, nil
}
