// Package action implements the verb surface of the world: instant
// reads, queued mutations deferred to the tick, and free
// configuration verbs, with the AP economy around all three.
package action

import (
	"context"
	"errors"
	"sync"
	"time"

	"mash/internal/app/events"
	"mash/internal/app/perm"
	"mash/internal/app/ports"
	"mash/internal/app/rules"
	"mash/internal/app/world"
	"mash/internal/domain/mud"
)

var (
	ErrInvalidRequest = errors.New("invalid action request")
	ErrNoAP           = errors.New("no AP remaining")
)

type Class string

const (
	ClassInstant Class = "instant"
	ClassQueued  Class = "queued"
	ClassFree    Class = "free"
)

// Classify maps a verb to its class. Unknown verbs are custom
// interaction triggers, which are queued.
func Classify(verb string) Class {
	switch verb {
	case "look", "survey", "inspect", "say", "list":
		return ClassInstant
	case "configure", "buy_ap":
		return ClassFree
	default:
		return ClassQueued
	}
}

type UseCase struct {
	// Lock is the world write lock shared with the tick engine.
	Lock      *sync.Mutex
	TxManager ports.TxManager

	Agents     ports.AgentRepository
	Templates  ports.TemplateRepository
	Instances  ports.InstanceRepository
	Queue      ports.QueueRepository
	LinkUsage  ports.LinkUsageRepository
	WorldState ports.WorldStateRepository

	Perm      perm.Resolver
	World     world.World
	Bus       events.Bus
	Evaluator rules.Evaluator
	Metrics   ports.RuntimeMetrics

	Now  func() time.Time
	Rand func(n int) int

	MaxAP         int
	MaxBuyPerTick int
	MaxBuyPerCall int
}

func (u UseCase) now() time.Time {
	if u.Now != nil {
		return u.Now()
	}
	return time.Now()
}

func (u UseCase) metrics() ports.RuntimeMetrics {
	if u.Metrics != nil {
		return u.Metrics
	}
	return ports.NopMetrics{}
}

func (u UseCase) maxAP() int {
	if u.MaxAP > 0 {
		return u.MaxAP
	}
	return mud.MaxAP
}

func (u UseCase) maxBuyPerTick() int {
	if u.MaxBuyPerTick > 0 {
		return u.MaxBuyPerTick
	}
	return mud.MaxBuyAPPerTick
}

func (u UseCase) maxBuyPerCall() int {
	if u.MaxBuyPerCall > 0 {
		return u.MaxBuyPerCall
	}
	return mud.MaxBuyAPPerCall
}

// apCeiling is the hard AP cap: the per-tick refill plus everything
// buyable in one tick.
func (u UseCase) apCeiling() int {
	return u.maxAP() + u.maxBuyPerTick()
}

type Request struct {
	AgentID string
	Verb    string
	Params  map[string]any
}

// Execute runs one verb for an authenticated agent. Instant and free
// verbs return their payload directly; queued verbs return a
// QueueConfirmation. ErrNoAP surfaces as HTTP 429 at the transport.
func (u UseCase) Execute(ctx context.Context, req Request) (any, error) {
	if req.AgentID == "" || req.Verb == "" {
		return nil, ErrInvalidRequest
	}
	if req.Params == nil {
		req.Params = map[string]any{}
	}
	class := Classify(req.Verb)
	u.metrics().RequestServed(string(class))

	u.Lock.Lock()
	defer u.Lock.Unlock()

	var out any
	err := u.TxManager.RunInTx(ctx, func(txCtx context.Context) error {
		agent, err := u.Agents.GetByID(txCtx, req.AgentID)
		if err != nil {
			return err
		}
		switch class {
		case ClassFree:
			out = u.executeFree(txCtx, agent, req.Verb, req.Params)
			return nil
		case ClassInstant:
			agent, err = u.debitAP(txCtx, agent, 1)
			if err != nil {
				return err
			}
			out = u.executeInstant(txCtx, agent, req.Verb, req.Params)
			return nil
		default:
			confirmation, err := u.enqueue(txCtx, agent, req.Verb, req.Params)
			if err != nil {
				return err
			}
			out = confirmation
			return nil
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// debitAP charges cost AP inside the current transaction, before the
// verb runs or is enqueued.
func (u UseCase) debitAP(ctx context.Context, agent mud.Agent, cost int) (mud.Agent, error) {
	if agent.AP < cost {
		return agent, ErrNoAP
	}
	agent.AP -= cost
	if err := u.Agents.Update(ctx, agent); err != nil {
		return agent, err
	}
	return agent, nil
}

// chargeAP debits AP for work that actually ran in the current tick,
// flooring at zero. Travel uses this for its completed hops: the
// enqueue-time pre-debit constrains the submission tick only, and is
// wiped by the budget reset before the route executes.
func (u UseCase) chargeAP(ctx context.Context, agentID string, n int) error {
	if n <= 0 {
		return nil
	}
	agent, err := u.Agents.GetByID(ctx, agentID)
	if err != nil {
		return err
	}
	agent.AP -= n
	if agent.AP < 0 {
		agent.AP = 0
	}
	return u.Agents.Update(ctx, agent)
}

// enqueue charges AP and appends the verb to the action queue for the
// next tick. Travel pre-debits one AP per hop.
func (u UseCase) enqueue(ctx context.Context, agent mud.Agent, verb string, params map[string]any) (QueueConfirmation, error) {
	cost := 1
	if verb == "travel" {
		cost = travelHopCount(params)
		if cost < 1 {
			cost = 1
		}
	}
	agent, err := u.debitAP(ctx, agent, cost)
	if err != nil {
		return QueueConfirmation{}, err
	}

	state, err := u.WorldState.Get(ctx)
	if err != nil {
		return QueueConfirmation{}, err
	}
	target := state.TickNumber + 1
	ordinal, err := u.Queue.Append(ctx, mud.QueueEntry{
		AgentID:    agent.ID,
		Verb:       verb,
		Params:     params,
		TickNumber: target,
		CreatedAt:  u.now().UnixMilli(),
	})
	if err != nil {
		return QueueConfirmation{}, err
	}
	u.metrics().ActionQueued(verb)
	return QueueConfirmation{
		Queued:      true,
		ActionID:    ordinal,
		TickNumber:  target,
		APRemaining: agent.AP,
	}, nil
}

func travelHopCount(params map[string]any) int {
	switch via := params["via"].(type) {
	case string:
		return 1
	case []any:
		return len(via)
	default:
		return 0
	}
}

func (u UseCase) executeInstant(ctx context.Context, agent mud.Agent, verb string, params map[string]any) any {
	switch verb {
	case "look":
		return u.look(ctx, agent, params)
	case "survey":
		return u.survey(ctx, agent, params)
	case "inspect":
		return u.inspect(ctx, agent, params)
	case "say":
		return u.say(ctx, agent, params)
	case "list":
		return u.list(ctx, agent, params)
	default:
		return errResult("unknown instant verb")
	}
}

// ExecuteQueued dispatches one drained queue entry. Called by the tick
// engine inside the entry's transaction; the return value becomes the
// action_result event payload and is never an error: failures are
// reported in-band.
func (u UseCase) ExecuteQueued(ctx context.Context, agent mud.Agent, entry mud.QueueEntry) any {
	params := entry.Params
	if params == nil {
		params = map[string]any{}
	}
	switch entry.Verb {
	case "create":
		return u.create(ctx, agent, params)
	case "edit":
		return u.edit(ctx, agent, params)
	case "delete":
		return u.delete(ctx, agent, params)
	case "travel":
		return u.travel(ctx, agent, params)
	case "home":
		return u.home(ctx, agent)
	case "take":
		return u.take(ctx, agent, params)
	case "drop":
		return u.drop(ctx, agent, params)
	default:
		return u.custom(ctx, agent, entry.Verb, params)
	}
}

func (u UseCase) executeFree(ctx context.Context, agent mud.Agent, verb string, params map[string]any) any {
	switch verb {
	case "configure":
		return u.configure(ctx, agent, params)
	case "buy_ap":
		return u.buyAP(ctx, agent, params)
	default:
		return errResult("unknown free verb")
	}
}
