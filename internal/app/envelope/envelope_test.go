package envelope

import (
	"context"
	"sync"
	"testing"
	"time"

	"mash/internal/adapter/repo/memory"
	"mash/internal/domain/mud"
)

func newBuilder(store *memory.Store, now time.Time) Builder {
	return Builder{
		Lock:         &sync.Mutex{},
		TxManager:    memory.NewTxManager(store),
		Agents:       memory.NewAgentRepo(store),
		Events:       memory.NewEventRepo(store),
		WorldState:   memory.NewWorldStateRepo(store),
		TickInterval: 10 * time.Second,
		Now:          func() time.Time { return now },
	}
}

func TestBuild_ComposesInfo(t *testing.T) {
	store := memory.NewStore()
	now := time.Unix(1700000000, 0)
	store.SeedAgent(mud.Agent{ID: "a1", AP: 3, PurchasedAPThisTick: 2})
	store.SeedWorldState(mud.WorldState{TickNumber: 42, LastTickAt: now.Add(-4 * time.Second).UnixMilli()})
	b := newBuilder(store, now)

	events := memory.NewEventRepo(store)
	ctx := context.Background()
	if _, err := events.Append(ctx, mud.Event{AgentID: "a1", Type: mud.EventChat, Data: map[string]any{"message": "hi"}}); err != nil {
		t.Fatal(err)
	}

	resp, err := b.Build(ctx, "a1", map[string]any{"ok": true})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if resp.Info.Tick != 42 || resp.Info.AP != 3 || resp.Info.PurchasedAPThisTick != 2 {
		t.Fatalf("info = %+v", resp.Info)
	}
	// 10s interval, last tick 4s ago.
	if resp.Info.NextTickInMS != 6000 {
		t.Fatalf("next_tick_in_ms = %d, want 6000", resp.Info.NextTickInMS)
	}
	if len(resp.Info.Events) != 1 || resp.Info.Events[0].Type != mud.EventChat {
		t.Fatalf("events = %+v", resp.Info.Events)
	}
}

func TestBuild_DrainIsDestructive(t *testing.T) {
	store := memory.NewStore()
	now := time.Unix(1700000000, 0)
	store.SeedAgent(mud.Agent{ID: "a1"})
	store.SeedWorldState(mud.WorldState{TickNumber: 1, LastTickAt: now.UnixMilli()})
	b := newBuilder(store, now)

	events := memory.NewEventRepo(store)
	ctx := context.Background()
	if _, err := events.Append(ctx, mud.Event{AgentID: "a1", Type: mud.EventSystem}); err != nil {
		t.Fatal(err)
	}

	first, err := b.Build(ctx, "a1", nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := b.Build(ctx, "a1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(first.Info.Events) != 1 || len(second.Info.Events) != 0 {
		t.Fatalf("each event must be delivered exactly once: %d then %d",
			len(first.Info.Events), len(second.Info.Events))
	}
}

func TestBuild_ClampsNextTick(t *testing.T) {
	store := memory.NewStore()
	now := time.Unix(1700000000, 0)
	store.SeedAgent(mud.Agent{ID: "a1"})
	// The tick is overdue.
	store.SeedWorldState(mud.WorldState{TickNumber: 1, LastTickAt: now.Add(-time.Minute).UnixMilli()})
	b := newBuilder(store, now)

	resp, err := b.Build(context.Background(), "a1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Info.NextTickInMS != 0 {
		t.Fatalf("overdue ticks clamp to 0, got %d", resp.Info.NextTickInMS)
	}
}

func TestBuild_CapsEventBatch(t *testing.T) {
	store := memory.NewStore()
	now := time.Unix(1700000000, 0)
	store.SeedAgent(mud.Agent{ID: "a1"})
	store.SeedWorldState(mud.WorldState{TickNumber: 1, LastTickAt: now.UnixMilli()})
	b := newBuilder(store, now)

	events := memory.NewEventRepo(store)
	ctx := context.Background()
	for i := 0; i < mud.MaxEventsPerEnvelope+10; i++ {
		if _, err := events.Append(ctx, mud.Event{AgentID: "a1", Type: mud.EventSystem}); err != nil {
			t.Fatal(err)
		}
	}
	resp, err := b.Build(ctx, "a1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Info.Events) != mud.MaxEventsPerEnvelope {
		t.Fatalf("batch = %d, want %d", len(resp.Info.Events), mud.MaxEventsPerEnvelope)
	}
	resp, err = b.Build(ctx, "a1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Info.Events) != 10 {
		t.Fatalf("remainder = %d, want 10", len(resp.Info.Events))
	}
}
