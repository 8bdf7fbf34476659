package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"distributor/internal/apperrors"
	"distributor/internal/engine"
	"distributor/internal/packet"
	"distributor/internal/testutil"
)

type captureTransport struct {
	mu     sync.Mutex
	bodies [][]byte
	block  chan struct{}
}

func (c *captureTransport) Send(ctx context.Context, url string, body []byte) error {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	c.bodies = append(c.bodies, body)
	c.mu.Unlock()
	return nil
}

func (c *captureTransport) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.bodies)
}

func newTestService(t *testing.T, cfg engine.Config, tr engine.Transport) *Service {
	t.Helper()
	r := engine.NewRegistry()
	if err := r.Register("analyzer-1", "http://analyzer-1:8001/analyze", 1); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	e, err := engine.New(cfg, r, tr, nil)
	if err != nil {
		t.Fatalf("engine.New failed: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		e.Close(ctx)
	})
	return NewService(e)
}

func validPacket() *packet.Packet {
	return &packet.Packet{
		PacketID: "packet-001",
		AgentID:  "agent-1",
		Messages: []packet.Message{{Source: "svc", Message: "hello"}},
	}
}

func TestSubmit_AcceptsAndForwards(t *testing.T) {
	t.Parallel()
	tr := &captureTransport{}
	s := newTestService(t, engine.Config{Workers: 1, Capacity: 10}, tr)

	receipt, err := s.Submit(context.Background(), validPacket())
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if receipt.PacketID != "packet-001" || receipt.Messages != 1 || receipt.Status != "accepted" {
		t.Errorf("unexpected receipt: %+v", receipt)
	}

	testutil.MustWaitFor(t, func() bool { return tr.count() == 1 })

	// The forwarded body is the validated wire packet with defaults applied.
	var got packet.Packet
	if err := json.Unmarshal(tr.bodies[0], &got); err != nil {
		t.Fatalf("forwarded body is not a wire packet: %v", err)
	}
	if got.PacketID != "packet-001" || got.Messages[0].Level != packet.LevelInfo {
		t.Errorf("unexpected forwarded packet: %+v", got)
	}
	if got.Messages[0].Timestamp.IsZero() {
		t.Error("expected defaulted timestamp on forwarded message")
	}
}

func TestSubmit_RejectsInvalidPacket(t *testing.T) {
	t.Parallel()
	s := newTestService(t, engine.Config{Workers: 1, Capacity: 10}, &captureTransport{})

	p := validPacket()
	p.AgentID = ""
	if _, err := s.Submit(context.Background(), p); !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestSubmit_Overloaded(t *testing.T) {
	t.Parallel()
	tr := &captureTransport{block: make(chan struct{})}
	defer close(tr.block)
	s := newTestService(t, engine.Config{Workers: 1, Capacity: 1}, tr)

	var overloaded bool
	for i := 0; i < 10; i++ {
		p := validPacket()
		_, err := s.Submit(context.Background(), p)
		if errors.Is(err, apperrors.ErrOverloaded) {
			overloaded = true
			break
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if !overloaded {
		t.Error("expected an overloaded error once the buffer filled")
	}
}
