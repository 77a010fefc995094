package eventstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"bikecare/backend/internal/telemetry/domain"
)

func TestEncodeDecode(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	in := &domain.AuthEvent{
		Type:      domain.EventOTPVerified,
		UserID:    "phone_966512345678",
		Source:    "phone_session",
		Outcome:   "success",
		Metadata:  json.RawMessage(`{"fallback":true}`),
		CreatedAt: at,
	}
	msg, err := Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if string(msg.Key) != "phone_966512345678" {
		t.Errorf("Key = %q, want user id", msg.Key)
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if meta, ok := payload["metadata"].(map[string]interface{}); !ok || meta["fallback"] != true {
		t.Errorf("metadata = %v, want embedded JSON object", payload["metadata"])
	}

	out, err := Decode(msg)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Type != in.Type || out.UserID != in.UserID || !out.CreatedAt.Equal(at) || string(out.Metadata) != `{"fallback":true}` {
		t.Errorf("Decode = %+v", out)
	}
}

func TestEncode_AnonymousIsUnkeyed(t *testing.T) {
	msg, err := Encode(&domain.AuthEvent{Type: domain.EventAdminDenied})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if msg.Key != nil {
		t.Errorf("Key = %q, want nil", msg.Key)
	}
}

func TestDecode_Rejects(t *testing.T) {
	cases := map[string]kafka.Message{
		"bad json":   {Value: []byte("{")},
		"no type":    {Value: []byte(`{"user_id":"x"}`)},
		"new schema": {Value: []byte(`{"type":"logout"}`), Headers: []kafka.Header{{Key: headerSchema, Value: []byte("auth-event.v2")}}},
	}
	for name, msg := range cases {
		if _, err := Decode(msg); err == nil {
			t.Errorf("%s: want error", name)
		}
	}
	if _, err := Decode(cases["new schema"]); !errors.Is(err, ErrUnknownSchema) {
		t.Errorf("new schema err = %v, want ErrUnknownSchema", err)
	}
	if ev, err := Decode(kafka.Message{Value: []byte(`{"type":"logout"}`)}); err != nil || ev.Type != domain.EventLogout {
		t.Errorf("headerless message = %v, %v", ev, err)
	}
}

type fakeWriter struct {
	msgs   []kafka.Message
	closed int
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("write without deadline")
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed++
	return nil
}

func TestPublisher(t *testing.T) {
	if p := NewPublisher(nil, "auth-events"); p != nil {
		t.Error("no brokers should disable the publisher")
	}
	if p := NewPublisher([]string{"localhost:9092"}, ""); p != nil {
		t.Error("no topic should disable the publisher")
	}
	var disabled *Publisher
	if err := disabled.Emit(context.Background(), &domain.AuthEvent{Type: domain.EventLogout}); err != nil {
		t.Errorf("nil Emit: %v", err)
	}
	if err := disabled.Close(); err != nil {
		t.Errorf("nil Close: %v", err)
	}

	w := &fakeWriter{}
	p := &Publisher{writer: w}
	if err := p.Emit(context.Background(), &domain.AuthEvent{Type: domain.EventOAuthLogin, UserID: "oauth|7"}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if len(w.msgs) != 1 || string(w.msgs[0].Key) != "oauth|7" {
		t.Fatalf("messages = %+v", w.msgs)
	}
	_ = p.Close()
	if w.closed != 1 {
		t.Errorf("closed = %d, want 1", w.closed)
	}
}

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
	closed    bool
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		return kafka.Message{}, io.EOF
	}
	msg := f.queue[0]
	f.queue = f.queue[1:]
	return msg, nil
}

func (f *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error {
	f.closed = true
	return nil
}

func TestConsumer_Run(t *testing.T) {
	good, _ := Encode(&domain.AuthEvent{Type: domain.EventOTPSent, UserID: "phone_966512345678"})
	good.Offset = 1
	bad := kafka.Message{Offset: 2, Value: []byte("not json")}
	retry, _ := Encode(&domain.AuthEvent{Type: domain.EventLogout})
	retry.Offset = 3
	r := &fakeReader{queue: []kafka.Message{good, bad, retry}}
	c := &Consumer{reader: r, backoff: time.Millisecond, logger: zap.NewNop()}

	var seen []string
	failures := 1
	err := c.Run(context.Background(), func(ctx context.Context, ev *domain.AuthEvent) error {
		if ev.Type == domain.EventLogout && failures > 0 {
			failures--
			return errors.New("sink unavailable")
		}
		seen = append(seen, ev.Type)
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(seen) != 2 || seen[0] != domain.EventOTPSent || seen[1] != domain.EventLogout {
		t.Errorf("handled = %v", seen)
	}
	if len(r.committed) != 3 {
		t.Errorf("committed offsets = %v, want all three", r.committed)
	}
	if !r.closed {
		t.Error("reader not closed")
	}
}

func TestConsumer_StopsOnCancel(t *testing.T) {
	msg, _ := Encode(&domain.AuthEvent{Type: domain.EventLogout})
	r := &fakeReader{queue: []kafka.Message{msg}}
	c := &Consumer{reader: r, backoff: time.Hour, logger: zap.NewNop()}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx, func(context.Context, *domain.AuthEvent) error { return errors.New("down") })
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run err = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	if len(r.committed) != 0 {
		t.Errorf("committed = %v, want none", r.committed)
	}
}
