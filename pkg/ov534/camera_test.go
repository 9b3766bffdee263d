package ov534

import (
	"errors"
	"testing"
)

func TestInitTransitionsToInitialized(t *testing.T) {
	h := newFakeHandle()
	c := newCamera(nil, &fakeDevice{handle: h}, nil)

	if !c.Init(ResolutionVGA, 30, FormatBGR) {
		t.Fatalf("Init failed: %v", c.lastErr)
	}
	if !c.IsOpen() {
		t.Fatal("IsOpen should be true after Init")
	}
	if !c.IsInitialized() {
		t.Fatal("IsInitialized should be true after Init")
	}
	if c.ErrorCode() != NoError {
		t.Fatalf("ErrorCode = %v, want NoError", c.ErrorCode())
	}
}

func TestInitPropagatesOpenFailure(t *testing.T) {
	c := newCamera(nil, &fakeDevice{openErr: errors.New("no such device")}, nil)

	if c.Init(ResolutionVGA, 30, FormatBGR) {
		t.Fatal("Init should fail when the device cannot be opened")
	}
	if c.IsOpen() {
		t.Fatal("IsOpen should remain false after a failed open")
	}
	if c.ErrorCode() != errOpenFailed {
		t.Fatalf("ErrorCode = %v, want errOpenFailed", c.ErrorCode())
	}
}

func TestIsOpenAndIsInitializedBeforeInit(t *testing.T) {
	c := newCamera(nil, &fakeDevice{handle: newFakeHandle()}, nil)

	if c.IsOpen() {
		t.Fatal("IsOpen should be false before Init")
	}
	if c.IsInitialized() {
		t.Fatal("IsInitialized should be false before Init")
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	h := newFakeHandle()
	c := newCamera(nil, &fakeDevice{handle: h}, nil)
	c.Init(ResolutionVGA, 30, FormatBGR)

	c.Release()
	if c.IsOpen() {
		t.Fatal("IsOpen should be false after Release")
	}
	if !h.closed {
		t.Fatal("the device handle should be closed by Release")
	}

	// Calling Release again on an already-closed camera must not panic or
	// attempt to operate on the (now nil) handle.
	c.Release()
	if c.IsOpen() {
		t.Fatal("IsOpen should remain false after a second Release")
	}
}

func TestStopIsNoOpWhenNotStreaming(t *testing.T) {
	c, _ := newTestCamera()
	c.fsm.SetState(stateInitialized)

	c.Stop()
	if c.fsm.Current() != stateInitialized {
		t.Fatalf("Stop changed state to %q while not streaming", c.fsm.Current())
	}
}

func TestGetFrameFalseWhenNotStreaming(t *testing.T) {
	c, _ := newTestCamera()
	c.fsm.SetState(stateInitialized)

	dest := make([]byte, 64)
	if c.GetFrame(dest) {
		t.Fatal("GetFrame should return false when not streaming")
	}
}
