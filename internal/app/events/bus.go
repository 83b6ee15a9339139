// Package events appends to and drains the per-agent event backlog.
// Delivery is pull-only: broadcasts are enqueued here and picked up by
// the recipient's next envelope.
package events

import (
	"context"
	"time"

	"mash/internal/app/ports"
	"mash/internal/domain/mud"
)

type Bus struct {
	Agents  ports.AgentRepository
	Events  ports.EventRepository
	Metrics ports.RuntimeMetrics
	Now     func() time.Time
}

func (b Bus) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

func (b Bus) metrics() ports.RuntimeMetrics {
	if b.Metrics != nil {
		return b.Metrics
	}
	return ports.NopMetrics{}
}

// Emit enqueues one event for one agent.
func (b Bus) Emit(ctx context.Context, agentID string, typ mud.EventType, data map[string]any) error {
	_, err := b.Events.Append(ctx, mud.Event{
		AgentID:   agentID,
		Type:      typ,
		Data:      data,
		CreatedAt: b.now().UnixMilli(),
	})
	if err == nil {
		b.metrics().EventsEmitted(1)
	}
	return err
}

// BroadcastToNode enqueues an event for every agent currently in the
// node with see_broadcasts set, excluding at most one agent. Returns
// the delivery count.
func (b Bus) BroadcastToNode(ctx context.Context, nodeID string, typ mud.EventType, data map[string]any, exclude string) (int, error) {
	agents, err := b.Agents.ListByNode(ctx, nodeID)
	if err != nil {
		return 0, err
	}
	delivered := 0
	for _, agent := range agents {
		if agent.ID == exclude || !agent.SeeBroadcasts {
			continue
		}
		if err := b.Emit(ctx, agent.ID, typ, data); err != nil {
			return delivered, err
		}
		delivered++
	}
	return delivered, nil
}
