package totp

import (
	"strings"
	"testing"
	"time"
)

func TestVerify_AcceptsCurrentAndAdjacentSteps(t *testing.T) {
	t.Parallel()

	raw, _, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret: %v", err)
	}
	now := time.Unix(1_700_000_000, 0)

	for _, offset := range []time.Duration{0, -Period, Period} {
		code := Code(raw, now.Add(offset))
		ok, _ := Verify(raw, code, now, 1, nil)
		if !ok {
			t.Fatalf("code at offset %s rejected", offset)
		}
	}

	// Dos steps fuera de ventana: rechazado
	code := Code(raw, now.Add(2*Period))
	if ok, _ := Verify(raw, code, now, 1, nil); ok {
		t.Fatalf("code two steps ahead accepted with window 1")
	}
}

func TestVerify_AntiReplay(t *testing.T) {
	t.Parallel()

	raw, _, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret: %v", err)
	}
	now := time.Unix(1_700_000_000, 0)
	code := Code(raw, now)

	ok, counter := Verify(raw, code, now, 1, nil)
	if !ok {
		t.Fatalf("first use rejected")
	}
	// Mismo código, counter ya usado
	if ok, _ := Verify(raw, code, now, 1, &counter); ok {
		t.Fatalf("replayed code accepted")
	}
}

func TestVerify_RejectsBadFormat(t *testing.T) {
	t.Parallel()

	raw, _, _ := GenerateSecret()
	now := time.Now()
	for _, code := range []string{"", "12345", "1234567", "abcdef"} {
		if ok, _ := Verify(raw, code, now, 1, nil); ok {
			t.Fatalf("accepted malformed code %q", code)
		}
	}
}

func TestOTPAuthURL(t *testing.T) {
	t.Parallel()

	_, b32, _ := GenerateSecret()
	u := OTPAuthURL("NexaERP", "admin@acme.com", b32)
	if !strings.HasPrefix(u, "otpauth://totp/") {
		t.Fatalf("unexpected scheme: %s", u)
	}
	if !strings.Contains(u, "secret="+b32) {
		t.Fatalf("secret missing in url: %s", u)
	}
}
