package nats

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/lite-ingest/internal/core/domain"
)

func TestClassifyNATSError(t *testing.T) {
	if got := classifyNATSError(fmt.Errorf("nats publish: %w", nats.ErrConnectionClosed)); !got.Retry {
		t.Fatalf("closed connection should be retried")
	}
	if got := classifyNATSError(context.Canceled); got.Retry || got.Trip {
		t.Fatalf("cancellation should neither retry nor trip, got %+v", got)
	}
	if got := classifyNATSError(nats.ErrBadSubject); got.Retry || !got.Trip {
		t.Fatalf("bad subject is permanent, got %+v", got)
	}
}

func TestWrapTemporaryIfNeeded(t *testing.T) {
	err := wrapTemporaryIfNeeded(nats.ErrTimeout)
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("timeout should become temporary, got %v", err)
	}
	permanent := errors.New("boom")
	if got := wrapTemporaryIfNeeded(permanent); got != permanent {
		t.Fatalf("permanent errors pass through, got %v", got)
	}
	if wrapTemporaryIfNeeded(nil) != nil {
		t.Fatalf("nil stays nil")
	}
}

func TestDecodeEvent(t *testing.T) {
	event, err := decodeEvent([]byte(`{"case_id":"c1","log_id":3,"success":true,"stats":{"inserted_records":2}}`))
	if err != nil {
		t.Fatalf("decodeEvent() error = %v", err)
	}
	if event.LogID != 3 || !event.Success || event.Stats.InsertedRecords != 2 {
		t.Fatalf("unexpected event %+v", event)
	}
	if _, err := decodeEvent([]byte(`{"log_id":3}`)); err == nil {
		t.Fatalf("events without case id should be rejected")
	}
	if _, err := decodeEvent([]byte(`nope`)); err == nil {
		t.Fatalf("garbage should be rejected")
	}
}
