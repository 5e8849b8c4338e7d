package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"
)

func TestRedactEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  string
	}{
		{"normal address", "ursula_le_guin@gmail.com", "ur***@gmail.com"},
		{"short local part", "ab@example.com", "***@example.com"},
		{"not an email", "no-at-sign", "***@***"},
		{"two at signs", "a@b@c.com", "***@***"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RedactEmail(tt.email); got != tt.want {
				t.Errorf("RedactEmail(%q) = %q, want %q", tt.email, got, tt.want)
			}
		})
	}
}

func TestLogRedactsEmailFields(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	Info("subscribe request", "email", "ursula_le_guin@gmail.com", "status", "pending_confirmation")

	var entry map[string]string
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if entry["email"] != "ur***@gmail.com" {
		t.Errorf("email field = %q, want redacted", entry["email"])
	}
	if entry["status"] != "pending_confirmation" {
		t.Errorf("status field = %q", entry["status"])
	}
	if entry["level"] != "INFO" {
		t.Errorf("level = %q, want INFO", entry["level"])
	}
}

func TestLogRedactsEmbeddedEmails(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	Error("dispatch failed", "error", "provider rejected ursula_le_guin@gmail.com: 500")

	if strings.Contains(buf.String(), "ursula_le_guin@gmail.com") {
		t.Errorf("raw email leaked into log output: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "ur***@gmail.com") {
		t.Errorf("expected redacted email in output: %s", buf.String())
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(WARN)
	defer func() {
		SetOutput(os.Stderr)
		SetLevel(INFO)
	}()

	Info("should be dropped")
	Warn("should appear")

	if strings.Contains(buf.String(), "should be dropped") {
		t.Error("INFO entry emitted despite WARN level")
	}
	if !strings.Contains(buf.String(), "should appear") {
		t.Error("WARN entry missing")
	}
}
