// Package ingest is the boundary between the wire schema and the
// dispatch engine.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"distributor/internal/apperrors"
	"distributor/internal/engine"
	"distributor/internal/packet"
)

// Service validates wire packets and hands them to the engine as
// opaque bodies. It is stateless; all queueing lives in the engine.
type Service struct {
	engine *engine.Engine
	logger *slog.Logger
}

// NewService creates a new ingest service.
func NewService(e *engine.Engine) *Service {
	return &Service{
		engine: e,
		logger: slog.With("component", "ingest"),
	}
}

// Receipt acknowledges an accepted packet.
type Receipt struct {
	PacketID string `json:"packet_id"`
	Messages int    `json:"messages"`
	Status   string `json:"status"`
}

// Submit validates a packet and offers it to the engine.
// Returns an overloaded error when the intake buffer is full or the
// service is shutting down; callers should retry later.
func (s *Service) Submit(ctx context.Context, p *packet.Packet) (*Receipt, error) {
	packet.ApplyDefaults(p)
	if err := packet.Validate(p); err != nil {
		return nil, err
	}

	body, err := json.Marshal(p)
	if err != nil {
		return nil, apperrors.Internal("ingest.marshal", err)
	}

	if err := s.engine.Offer(&engine.Packet{ID: p.PacketID, Body: body}); err != nil {
		switch {
		case errors.Is(err, engine.ErrOverloaded):
			return nil, apperrors.Overloaded("intake buffer full, retry later")
		case errors.Is(err, engine.ErrClosed):
			return nil, apperrors.Overloaded("service is shutting down")
		default:
			return nil, apperrors.Internal("ingest.offer", err)
		}
	}

	s.logger.Debug("Packet accepted", "packet_id", p.PacketID, "agent_id", p.AgentID, "messages", len(p.Messages))

	return &Receipt{
		PacketID: p.PacketID,
		Messages: len(p.Messages),
		Status:   "accepted",
	}, nil
}
