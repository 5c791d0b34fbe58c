package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := WithComponent(slog.New(slog.NewTextHandler(&buf, nil)), "poller")
	logger.Info("hello")

	if !strings.Contains(buf.String(), "component=poller") {
		t.Errorf("expected component attribute, got %q", buf.String())
	}
}

func TestWithSession(t *testing.T) {
	var buf bytes.Buffer
	logger := WithSession(slog.New(slog.NewTextHandler(&buf, nil)), "abc")
	logger.Info("hello")

	if !strings.Contains(buf.String(), "session=abc") {
		t.Errorf("expected session attribute, got %q", buf.String())
	}
}

func TestAttrs(t *testing.T) {
	tests := []struct {
		name    string
		attr    slog.Attr
		wantKey string
		wantVal string
	}{
		{"message id", MessageID("m1"), KeyMessageID, "m1"},
		{"snippet", Snippet("hi"), KeySnippet, "hi"},
		{"count", Count(3), KeyCount, "3"},
		{"interval", Interval(2 * time.Second), KeyInterval, "2s"},
		{"tool", Tool("gmail_poll"), KeyTool, "gmail_poll"},
		{"status", Status(StatusSuccess), KeyStatus, "success"},
		{"provider", Provider("gmail"), KeyProvider, "gmail"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.attr.Key != tt.wantKey {
				t.Errorf("key = %q, want %q", tt.attr.Key, tt.wantKey)
			}
			if got := tt.attr.Value.String(); got != tt.wantVal {
				t.Errorf("value = %q, want %q", got, tt.wantVal)
			}
		})
	}
}

func TestSender(t *testing.T) {
	if got := Sender("").Value.String(); got != "*" {
		t.Errorf("Sender(\"\") = %q, want *", got)
	}

	got := Sender("a@example.com").Value.String()
	if strings.Contains(got, "example.com") {
		t.Errorf("Sender() leaked the address: %q", got)
	}
	if got != AnonymizeEmail("a@example.com") {
		t.Errorf("Sender() = %q, want anonymized form", got)
	}
}

func TestErr(t *testing.T) {
	attr := Err(errors.New("boom"))
	if attr.Key != KeyError || attr.Value.String() != "boom" {
		t.Errorf("Err() = %v", attr)
	}

	var buf bytes.Buffer
	slog.New(slog.NewTextHandler(&buf, nil)).Info("ok", Err(nil))
	if strings.Contains(buf.String(), KeyError) {
		t.Errorf("Err(nil) should be omitted, got %q", buf.String())
	}
}

func TestAnonymizeEmail(t *testing.T) {
	if AnonymizeEmail("") != "" {
		t.Error("AnonymizeEmail(\"\") should be empty")
	}

	a := AnonymizeEmail("User@Example.com")
	b := AnonymizeEmail("user@example.com ")
	if a != b {
		t.Errorf("AnonymizeEmail should normalize case and whitespace: %q vs %q", a, b)
	}
	if !strings.HasPrefix(a, "user:") || len(a) != len("user:")+16 {
		t.Errorf("unexpected hash format %q", a)
	}
	if AnonymizeEmail("other@example.com") == a {
		t.Error("different addresses should hash differently")
	}
}

func TestSanitizeToken(t *testing.T) {
	if got := SanitizeToken(""); got != "<empty>" {
		t.Errorf("SanitizeToken(\"\") = %q", got)
	}
	if got := SanitizeToken("sk-secret"); got != "[token:9 chars]" {
		t.Errorf("SanitizeToken() = %q", got)
	}
}
