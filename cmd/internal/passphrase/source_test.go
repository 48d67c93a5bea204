package passphrase

import (
	"errors"
	"strings"
	"testing"
)

func TestSourceReadsEnvironment(t *testing.T) {
	t.Setenv("VDX_TEST_PASS", "hunter2")
	src := NewSource("VDX_TEST_PASS", "")
	got, err := src.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "hunter2" {
		t.Fatalf("unexpected passphrase %q", got)
	}
	t.Setenv("VDX_TEST_PASS", "changed")
	if again, _ := src.Get(); again != "hunter2" {
		t.Fatalf("expected cached passphrase, got %q", again)
	}
}

func TestSourceRejectsBlankEnvironment(t *testing.T) {
	t.Setenv("VDX_TEST_PASS", "   ")
	_, err := NewSource("VDX_TEST_PASS", "wallet passphrase").Get()
	if err == nil || !strings.Contains(err.Error(), "VDX_TEST_PASS") {
		t.Fatalf("expected blank passphrase rejection, got %v", err)
	}
}

func scripted(answers ...string) func(string) (string, error) {
	return func(string) (string, error) {
		if len(answers) == 0 {
			return "", errors.New("no more input")
		}
		next := answers[0]
		answers = answers[1:]
		return next, nil
	}
}

func TestSourceConfirmsInteractiveSecret(t *testing.T) {
	src := NewSource("", "wallet passphrase").WithConfirm()
	src.prompt = scripted("s3cret", "s3cret")
	if got, err := src.Get(); err != nil || got != "s3cret" {
		t.Fatalf("unexpected result %q (%v)", got, err)
	}

	mismatch := NewSource("", "wallet passphrase").WithConfirm()
	mismatch.prompt = scripted("s3cret", "typo")
	if _, err := mismatch.Get(); !errors.Is(err, ErrMismatch) {
		t.Fatalf("expected ErrMismatch, got %v", err)
	}
}

func TestSourceRejectsBlankPrompt(t *testing.T) {
	src := NewSource("", "")
	src.prompt = scripted("  ")
	if _, err := src.Get(); err == nil || !strings.Contains(err.Error(), "keystore passphrase cannot be empty") {
		t.Fatalf("expected empty passphrase rejection, got %v", err)
	}
}
