// Package tick advances the world: a fixed-period executor that resets
// budgets, reaps idle agents, fires the world's tick rules, drains the
// action queue, collects stale events, and releases long-poll waiters.
package tick

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"mash/internal/app/action"
	"mash/internal/app/events"
	"mash/internal/app/ports"
	"mash/internal/app/rules"
	"mash/internal/domain/mud"
)

type Engine struct {
	// Lock is the world write lock shared with the action usecase; one
	// tick is a single critical section under it.
	Lock      *sync.Mutex
	TxManager ports.TxManager

	Agents     ports.AgentRepository
	Instances  ports.InstanceRepository
	Queue      ports.QueueRepository
	Events     ports.EventRepository
	WorldState ports.WorldStateRepository

	Action    action.UseCase
	Evaluator rules.Evaluator
	Bus       events.Bus
	Metrics   ports.RuntimeMetrics

	Now         func() time.Time
	Interval    time.Duration
	IdleTimeout time.Duration
	EventTTL    time.Duration
	MaxAP       int

	waitersMu sync.Mutex
	waiters   []chan struct{}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) interval() time.Duration {
	if e.Interval > 0 {
		return e.Interval
	}
	return mud.DefaultTickInterval
}

func (e *Engine) metrics() ports.RuntimeMetrics {
	if e.Metrics != nil {
		return e.Metrics
	}
	return ports.NopMetrics{}
}

// Run drives ticks until the context is cancelled.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			e.releaseWaiters()
			return
		case <-ticker.C:
			if err := e.RunTick(ctx); err != nil {
				slog.Error("tick failed", "err", err)
			}
		}
	}
}

// RunTick executes one full tick. Run calls it on every interval; it is
// exported for tests.
func (e *Engine) RunTick(ctx context.Context) error {
	e.Lock.Lock()
	defer e.Lock.Unlock()

	var tickNumber int64
	err := e.TxManager.RunInTx(ctx, func(txCtx context.Context) error {
		n, err := e.advanceCounters(txCtx)
		if err != nil {
			return err
		}
		tickNumber = n
		if err := e.reapIdle(txCtx); err != nil {
			return err
		}
		return e.fireWorldTick(txCtx)
	})
	if err != nil {
		return err
	}

	e.drainQueue(ctx, tickNumber)

	if err := e.TxManager.RunInTx(ctx, func(txCtx context.Context) error {
		cutoff := e.now().Add(-e.eventTTL()).UnixMilli()
		_, err := e.Events.DeleteOlderThan(txCtx, cutoff)
		return err
	}); err != nil {
		slog.Error("event gc failed", "err", err)
	}

	e.releaseWaiters()
	e.metrics().TickCompleted()
	slog.Debug("tick complete", "tick", tickNumber)
	return nil
}

func (e *Engine) eventTTL() time.Duration {
	if e.EventTTL > 0 {
		return e.EventTTL
	}
	return mud.DefaultEventTTL
}

// Phase 1: counters and budgets.
func (e *Engine) advanceCounters(ctx context.Context) (int64, error) {
	state, err := e.WorldState.Get(ctx)
	if err != nil {
		return 0, err
	}
	state.TickNumber++
	state.LastTickAt = e.now().UnixMilli()
	if err := e.WorldState.Put(ctx, state); err != nil {
		return 0, err
	}
	maxAP := e.MaxAP
	if maxAP <= 0 {
		maxAP = mud.MaxAP
	}
	if err := e.Agents.ResetTickBudgets(ctx, maxAP); err != nil {
		return 0, err
	}
	if err := e.Instances.ResetInteractionCounters(ctx); err != nil {
		return 0, err
	}
	return state.TickNumber, nil
}

// Phase 2: agents idle past the timeout drop into limbo.
func (e *Engine) reapIdle(ctx context.Context) error {
	if e.IdleTimeout <= 0 {
		e.IdleTimeout = mud.DefaultIdleTimeout
	}
	cutoff := e.now().Add(-e.IdleTimeout).UnixMilli()
	idle, err := e.Agents.ListIdleSince(ctx, cutoff)
	if err != nil {
		return err
	}
	for _, agent := range idle {
		agent.CurrentNodeID = ""
		if err := e.Agents.Update(ctx, agent); err != nil {
			return err
		}
		if err := e.Bus.Emit(ctx, agent.ID, mud.EventSystem, map[string]any{
			"message": "you drift into limbo",
		}); err != nil {
			return err
		}
	}
	return nil
}

// Phase 3: fire the tick verb on the contents of every occupied node.
// A failing rule is logged and skipped; the phase never aborts.
func (e *Engine) fireWorldTick(ctx context.Context) error {
	nodes, err := e.Agents.OccupiedNodes(ctx)
	if err != nil {
		return err
	}
	for _, nodeID := range nodes {
		contents, err := e.Instances.ListByContainer(ctx, mud.InInstance(nodeID))
		if err != nil {
			slog.Error("tick enumeration failed", "node", nodeID, "err", err)
			continue
		}
		for _, inst := range contents {
			if _, err := e.Evaluator.Fire(ctx, inst.ID, "tick", nil, rules.Subject{}); err != nil {
				slog.Error("tick rule failed", "instance", inst.ID, "err", err)
			}
		}
	}
	return nil
}

// Phase 4: drain due queue entries in ordinal order, one transaction
// each. A panicking or failing entry becomes an {error} result; the
// engine keeps going.
func (e *Engine) drainQueue(ctx context.Context, tickNumber int64) {
	var due []mud.QueueEntry
	if err := e.TxManager.RunInTx(ctx, func(txCtx context.Context) error {
		entries, err := e.Queue.Due(txCtx, tickNumber)
		due = entries
		return err
	}); err != nil {
		slog.Error("queue read failed", "err", err)
		return
	}

	for _, entry := range due {
		e.executeEntry(ctx, entry)
	}
}

func (e *Engine) executeEntry(ctx context.Context, entry mud.QueueEntry) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("queued action panicked", "ordinal", entry.Ordinal, "verb", entry.Verb, "panic", r)
			e.finishEntry(ctx, entry, map[string]any{"error": "internal error"})
		}
	}()

	var result any
	err := e.TxManager.RunInTx(ctx, func(txCtx context.Context) error {
		agent, err := e.Agents.GetByID(txCtx, entry.AgentID)
		if err != nil || agent.InLimbo() {
			result = nil
			return nil
		}
		result = e.Action.ExecuteQueued(txCtx, agent, entry)
		return nil
	})
	if err != nil {
		slog.Error("queued action failed", "ordinal", entry.Ordinal, "verb", entry.Verb, "err", err)
		result = map[string]any{"error": "internal error"}
	}
	e.finishEntry(ctx, entry, result)
}

// finishEntry deletes the queue row and, when the agent was present,
// records the action_result event.
func (e *Engine) finishEntry(ctx context.Context, entry mud.QueueEntry, result any) {
	if err := e.TxManager.RunInTx(ctx, func(txCtx context.Context) error {
		if result != nil {
			if err := e.Bus.Emit(txCtx, entry.AgentID, mud.EventActionResult, map[string]any{
				"action":    entry.Verb,
				"action_id": entry.Ordinal,
				"result":    result,
			}); err != nil {
				return err
			}
		}
		return e.Queue.Delete(txCtx, entry.Ordinal)
	}); err != nil {
		slog.Error("queue entry cleanup failed", "ordinal", entry.Ordinal, "err", err)
	}
}

// Wait parks the caller until the next tick completes or the tick
// interval elapses, whichever comes first.
func (e *Engine) Wait(ctx context.Context) {
	ch := make(chan struct{}, 1)
	e.waitersMu.Lock()
	e.waiters = append(e.waiters, ch)
	e.waitersMu.Unlock()

	select {
	case <-ch:
	case <-time.After(e.interval()):
	case <-ctx.Done():
	}
}

// Phase 6: every waiter wants the same event, so the set is swapped out
// and resolved wholesale; stale handles never outlive one interval.
func (e *Engine) releaseWaiters() {
	e.waitersMu.Lock()
	waiters := e.waiters
	e.waiters = nil
	e.waitersMu.Unlock()
	for _, ch := range waiters {
		close(ch)
	}
	if len(waiters) > 0 {
		e.metrics().WaitersReleased(len(waiters))
	}
}
