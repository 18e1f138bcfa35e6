package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestLoggerErrorIncludesContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf})

	ctx := context.Background()
	ctx = log.WithRequestID(ctx, "req-123")
	ctx = log.WithProviderEvent(ctx, "paykickstart", "sub_1")

	log.Error(ctx, "boom", errors.New("boom"))

	for _, field := range []string{"\"request_id\"", "\"provider\"", "\"provider_subscription_id\"", "\"stack\""} {
		if !bytes.Contains(buf.Bytes(), []byte(field)) {
			t.Fatalf("expected %s in entry=%s", field, buf.String())
		}
	}
}

func TestLoggerWarnStackToggle(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf, WarnStack: true})
	log.Warn(context.Background(), "warny")
	if !bytes.Contains(buf.Bytes(), []byte("\"stack\"")) {
		t.Fatalf("expected stack when warn stack enabled")
	}

	buf.Reset()
	quiet := New(Options{ServiceName: "test", Output: buf})
	quiet.Warn(context.Background(), "warny")
	if bytes.Contains(buf.Bytes(), []byte("\"stack\"")) {
		t.Fatalf("did not expect stack when warn stack disabled")
	}
}

func TestParseLevelDefaults(t *testing.T) {
	if lvl := ParseLevel(""); lvl != zerolog.InfoLevel {
		t.Fatalf("expected default info level, got %v", lvl)
	}
	if lvl := ParseLevel("invalid"); lvl != zerolog.InfoLevel {
		t.Fatalf("invalid level should fallback to info, got %v", lvl)
	}
	if lvl := ParseLevel(" WARN "); lvl != zerolog.WarnLevel {
		t.Fatalf("expected warn level, got %v", lvl)
	}
}

func TestNopDiscards(t *testing.T) {
	log := Nop()
	ctx := log.WithUserID(context.Background(), "u1")
	log.Info(ctx, "ignored")
	log.Error(ctx, "ignored", errors.New("x"))
}
