package state

import (
	"errors"
	"testing"
)

func TestEnsureStateVersionStampsFreshStore(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	if err := mgr.EnsureStateVersion(); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	version, ok, err := mgr.StateVersion()
	if err != nil || !ok || version != StateVersion {
		t.Fatalf("unexpected version %d (present=%v, err=%v)", version, ok, err)
	}
	if err := mgr.EnsureStateVersion(); err != nil {
		t.Fatalf("second ensure: %v", err)
	}
}

func TestEnsureStateVersionRejectsMismatch(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	if err := mgr.SetStateVersion(StateVersion + 1); err != nil {
		t.Fatalf("set version: %v", err)
	}
	if err := mgr.EnsureStateVersion(); !errors.Is(err, ErrStateVersionMismatch) {
		t.Fatalf("expected ErrStateVersionMismatch, got %v", err)
	}
}
