package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func header(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func buildMessage(t *testing.T, key string, value any) Message {
	t.Helper()
	msg, err := NewMessage().WithKey(key).WithValue(value).WithEventType("test.event").Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return msg
}

func TestProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w, nil, "agenda.schedule-changed", "", nil)

	msg := buildMessage(t, "room:1", map[string]string{"reason": "regenerate"})
	if err := p.Publish(context.Background(), msg); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if len(w.messages) != 1 {
		t.Fatalf("wrote %d messages, want 1", len(w.messages))
	}
	got := w.messages[0]
	if string(got.Key) != "room:1" {
		t.Errorf("key = %q", got.Key)
	}
	if string(got.Value) != `{"reason":"regenerate"}` {
		t.Errorf("value = %s", got.Value)
	}
	if header(got, HeaderEventID) == "" {
		t.Error("event id header missing")
	}
	if header(got, HeaderEventType) != "test.event" {
		t.Errorf("event type = %q", header(got, HeaderEventType))
	}
}

func TestProducer_PublishRejectsInvalid(t *testing.T) {
	p := NewProducerWithWriter(&fakeWriter{}, nil, "t", "", nil)

	tests := []struct {
		name string
		msg  Message
		want error
	}{
		{"empty key", Message{Value: []byte("{}")}, ErrEmptyKey},
		{"empty value", Message{Key: "k"}, ErrEmptyValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := p.Publish(context.Background(), tt.msg); !errors.Is(err, tt.want) {
				t.Errorf("Publish() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestProducer_MiddlewareOrder(t *testing.T) {
	p := NewProducerWithWriter(&fakeWriter{}, nil, "t", "", nil)

	var order []string
	for _, name := range []string{"outer", "inner"} {
		p.Use(func(ctx context.Context, msg Message, next func(context.Context, Message) error) error {
			order = append(order, name)
			if msg.Topic != "t" {
				t.Errorf("middleware saw topic %q", msg.Topic)
			}
			return next(ctx, msg)
		})
	}

	if err := p.Publish(context.Background(), buildMessage(t, "k", 1)); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if len(order) != 2 || order[0] != "outer" || order[1] != "inner" {
		t.Errorf("middleware order = %v", order)
	}
}

func TestProducer_FailureGoesToDLQ(t *testing.T) {
	writeErr := errors.New("connection refused")
	w := &fakeWriter{err: writeErr}
	dlq := &fakeWriter{}
	p := NewProducerWithWriter(w, dlq, "t", "t.dlq", nil)

	err := p.Publish(context.Background(), buildMessage(t, "k", 1))
	if !errors.Is(err, writeErr) {
		t.Fatalf("Publish() error = %v, want %v", err, writeErr)
	}
	if len(dlq.messages) != 1 {
		t.Fatalf("dlq got %d messages, want 1", len(dlq.messages))
	}
	if got := header(dlq.messages[0], HeaderOriginalTopic); got != "t" {
		t.Errorf("original topic = %q", got)
	}
	if got := header(dlq.messages[0], HeaderDLQError); got != writeErr.Error() {
		t.Errorf("dlq error = %q", got)
	}
}

func TestProducer_Closed(t *testing.T) {
	w := &fakeWriter{}
	dlq := &fakeWriter{}
	p := NewProducerWithWriter(w, dlq, "t", "t.dlq", nil)

	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !w.closed || !dlq.closed {
		t.Error("writers not closed")
	}
	if err := p.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := p.Publish(context.Background(), buildMessage(t, "k", 1)); !errors.Is(err, ErrProducerClosed) {
		t.Errorf("Publish() after Close error = %v", err)
	}
}

func TestMessageBuilder_ValueError(t *testing.T) {
	_, err := NewMessage().WithKey("k").WithValue(make(chan int)).Build()
	if err == nil {
		t.Error("Build() error = nil for an unencodable value")
	}
}

func TestMessage_RetryCount(t *testing.T) {
	var m Message
	if m.GetRetryCount() != 0 {
		t.Fatalf("GetRetryCount() = %d", m.GetRetryCount())
	}
	for range 12 {
		m.IncrementRetryCount()
	}
	if m.GetRetryCount() != 12 {
		t.Errorf("GetRetryCount() = %d, want 12", m.GetRetryCount())
	}
}
