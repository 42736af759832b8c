package config

import (
	"testing"
	"time"
)

func TestDuration(t *testing.T) {
	t.Setenv("REMINDER_LEAD", "")
	d, err := Duration("REMINDER_LEAD", time.Hour)
	if err != nil || d != time.Hour {
		t.Fatalf("expected fallback 1h, got %s (%v)", d, err)
	}

	t.Setenv("REMINDER_LEAD", "90m")
	d, err = Duration("REMINDER_LEAD", time.Hour)
	if err != nil || d != 90*time.Minute {
		t.Fatalf("expected 90m, got %s (%v)", d, err)
	}

	t.Setenv("REMINDER_LEAD", "30")
	d, err = Duration("REMINDER_LEAD", time.Hour)
	if err != nil || d != 30*time.Second {
		t.Fatalf("expected 30s, got %s (%v)", d, err)
	}

	t.Setenv("REMINDER_LEAD", "soon")
	if _, err := Duration("REMINDER_LEAD", time.Hour); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestInt64List(t *testing.T) {
	t.Setenv("STAFF_CHAT_IDS", " 580866264, ,1200 ")
	ids, err := Int64List("STAFF_CHAT_IDS")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 2 || ids[0] != 580866264 || ids[1] != 1200 {
		t.Fatalf("unexpected ids %v", ids)
	}

	t.Setenv("STAFF_CHAT_IDS", "12,abc")
	if _, err := Int64List("STAFF_CHAT_IDS"); err == nil {
		t.Fatal("expected error")
	}
}

func TestPort(t *testing.T) {
	t.Setenv("PORT", "70000")
	if _, err := Port("PORT", "8080"); err == nil {
		t.Fatal("expected error for out of range port")
	}
	t.Setenv("PORT", "")
	p, err := Port("PORT", "8080")
	if err != nil || p != "8080" {
		t.Fatalf("expected fallback port, got %q (%v)", p, err)
	}
}

func TestBool(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "off")
	if Bool("OTEL_ENABLED", true) {
		t.Fatal("expected false")
	}
	t.Setenv("OTEL_ENABLED", "maybe")
	if !Bool("OTEL_ENABLED", true) {
		t.Fatal("expected fallback true")
	}
}
