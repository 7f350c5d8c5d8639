package wstoken

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"grab-relay/internal/core"
)

var generatedToken = regexp.MustCompile(`^ws_[0-9a-f]{32}$`)

func TestNewUsesInitialToken(t *testing.T) {
	h, err := New("from-env", "ws_")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if got := h.Get(); got != "from-env" {
		t.Fatalf("Get() = %q, want from-env", got)
	}
}

func TestNewGeneratesPrefixedToken(t *testing.T) {
	a, err := New("", "ws_")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	b, err := New("", "ws_")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if !generatedToken.MatchString(a.Get()) {
		t.Fatalf("generated token = %q, want ws_ + 32 hex", a.Get())
	}
	if a.Get() == b.Get() {
		t.Fatalf("two generated tokens collided: %q", a.Get())
	}
}

func TestSetThenGet(t *testing.T) {
	h, _ := New("old", "ws_")
	if err := h.Set("new"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if got := h.Get(); got != "new" {
		t.Fatalf("Get() = %q, want new", got)
	}
}

func TestSetEmptyKeepsToken(t *testing.T) {
	h, _ := New("old", "ws_")
	if err := h.Set(""); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("Set(empty) error = %v, want ErrValidation", err)
	}
	if got := h.Get(); got != "old" {
		t.Fatalf("Get() = %q, want old", got)
	}
}

func TestSubscribeReceivesLatest(t *testing.T) {
	h, _ := New("t0", "ws_")
	ch, cancel := h.Subscribe()
	defer cancel()

	_ = h.Set("t1")
	_ = h.Set("t2")
	_ = h.Set("t3")

	select {
	case got := <-ch:
		if got != "t3" {
			t.Fatalf("subscriber got %q, want t3", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("subscriber received nothing")
	}
	select {
	case got := <-ch:
		t.Fatalf("unexpected extra value %q", got)
	default:
	}
}

func TestCancelRemovesSubscriber(t *testing.T) {
	h, _ := New("t0", "ws_")
	_, cancel := h.Subscribe()
	if h.Subscribers() != 1 {
		t.Fatalf("Subscribers() = %d, want 1", h.Subscribers())
	}
	cancel()
	cancel()
	if h.Subscribers() != 0 {
		t.Fatalf("Subscribers() = %d, want 0", h.Subscribers())
	}
	if err := h.Set("t1"); err != nil {
		t.Fatalf("Set() after cancel error = %v", err)
	}
}
