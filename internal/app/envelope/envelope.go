// Package envelope wraps every authenticated response with the agent's
// budget, the tick clock, and the agent's drained event backlog.
package envelope

import (
	"context"
	"sync"
	"time"

	"mash/internal/app/ports"
	"mash/internal/domain/mud"
)

type Info struct {
	Tick                int64          `json:"tick"`
	NextTickInMS        int64          `json:"next_tick_in_ms"`
	AP                  int            `json:"ap"`
	PurchasedAPThisTick int            `json:"purchased_ap_this_tick"`
	Events              []EventPayload `json:"events"`
}

type EventPayload struct {
	Type mud.EventType  `json:"type"`
	Data map[string]any `json:"data"`
	At   int64          `json:"at"`
}

type Response struct {
	Info   Info `json:"info"`
	Result any  `json:"result"`
}

type Builder struct {
	// Lock is the world write lock; draining events is a mutation.
	Lock       *sync.Mutex
	TxManager  ports.TxManager
	Agents     ports.AgentRepository
	Events     ports.EventRepository
	WorldState ports.WorldStateRepository

	TickInterval time.Duration
	Now          func() time.Time
}

func (b Builder) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

func (b Builder) interval() time.Duration {
	if b.TickInterval > 0 {
		return b.TickInterval
	}
	return mud.DefaultTickInterval
}

// Build reloads the agent (the handler may have spent AP), reads the
// tick clock, and destructively drains up to the envelope cap of
// events.
func (b Builder) Build(ctx context.Context, agentID string, result any) (Response, error) {
	b.Lock.Lock()
	defer b.Lock.Unlock()

	var out Response
	err := b.TxManager.RunInTx(ctx, func(txCtx context.Context) error {
		agent, err := b.Agents.GetByID(txCtx, agentID)
		if err != nil {
			return err
		}
		state, err := b.WorldState.Get(txCtx)
		if err != nil {
			return err
		}
		drained, err := b.Events.Drain(txCtx, agentID, mud.MaxEventsPerEnvelope)
		if err != nil {
			return err
		}

		events := make([]EventPayload, 0, len(drained))
		for _, e := range drained {
			events = append(events, EventPayload{Type: e.Type, Data: e.Data, At: e.CreatedAt})
		}
		nextIn := state.LastTickAt + b.interval().Milliseconds() - b.now().UnixMilli()
		if nextIn < 0 {
			nextIn = 0
		}
		out = Response{
			Info: Info{
				Tick:                state.TickNumber,
				NextTickInMS:        nextIn,
				AP:                  agent.AP,
				PurchasedAPThisTick: agent.PurchasedAPThisTick,
				Events:              events,
			},
			Result: result,
		}
		return nil
	})
	if err != nil {
		return Response{}, err
	}
	return out, nil
}
