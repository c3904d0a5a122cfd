package redact

import (
	"strings"
	"testing"
)

func TestTextRedactsWhenEnabled(t *testing.T) {
	SetEnabled(true)
	defer SetEnabled(false)
	out := Text("mail me at troy@example.com or call +1 415 555 0100 ok")
	if strings.Contains(out, "troy@example.com") {
		t.Fatalf("email not redacted: %s", out)
	}
	if strings.Contains(out, "415 555 0100") {
		t.Fatalf("phone not redacted: %s", out)
	}
}

func TestTextNoopWhenDisabled(t *testing.T) {
	SetEnabled(false)
	in := "mail me at troy@example.com"
	if got := Text(in); got != in {
		t.Fatalf("expected passthrough, got %s", got)
	}
}

func TestSecretAlwaysRedacts(t *testing.T) {
	SetEnabled(false)
	out := Secret("Authorization: Bearer abc123def456 key sk-aaaaaaaaaaaaaaaaaaaaaaaa")
	if strings.Contains(out, "abc123def456") {
		t.Fatalf("bearer token not redacted: %s", out)
	}
	if strings.Contains(out, "sk-aaaaaaaaaaaaaaaaaaaaaaaa") {
		t.Fatalf("api key not redacted: %s", out)
	}
}
