// Package memory is the in-process store adapter used by tests: every
// ports interface over plain maps, with value-copy semantics so callers
// observe the same read-your-writes behaviour as the durable store.
package memory

import (
	"context"
	"sync"

	"mash/internal/domain/mud"
)

type Store struct {
	mu sync.Mutex

	agents    map[string]mud.Agent
	templates map[string]mud.Template
	instances map[string]mud.Instance
	queue     map[int64]mud.QueueEntry
	events    map[int64]mud.Event
	linkUsage []mud.LinkUsage
	world     mud.WorldState
	sequences map[string]int64
}

func NewStore() *Store {
	return &Store{
		agents:    make(map[string]mud.Agent),
		templates: make(map[string]mud.Template),
		instances: make(map[string]mud.Instance),
		queue:     make(map[int64]mud.QueueEntry),
		events:    make(map[int64]mud.Event),
		sequences: make(map[string]int64),
	}
}

// Seed helpers for tests.

func (s *Store) SeedAgent(a mud.Agent) {
	s.agents[a.ID] = cloneAgent(a)
}

func (s *Store) SeedTemplate(t mud.Template) {
	s.templates[t.ID] = cloneTemplate(t)
}

func (s *Store) SeedInstance(i mud.Instance) {
	s.instances[i.ID] = cloneInstance(i)
}

func (s *Store) SeedWorldState(w mud.WorldState) {
	s.world = w
}

func (s *Store) next(name string) int64 {
	s.sequences[name]++
	return s.sequences[name]
}

func cloneAgent(a mud.Agent) mud.Agent {
	out := a
	out.PasswordHash = append([]byte(nil), a.PasswordHash...)
	return out
}

func cloneTemplate(t mud.Template) mud.Template {
	out := t
	out.Fields = mud.CloneFields(t.Fields)
	if t.DefaultPermissions != nil {
		out.DefaultPermissions = make(map[string]mud.PermRule, len(t.DefaultPermissions))
		for k, v := range t.DefaultPermissions {
			out.DefaultPermissions[k] = v
		}
	}
	out.Interactions = append([]mud.Rule(nil), t.Interactions...)
	return out
}

func cloneInstance(i mud.Instance) mud.Instance {
	out := i
	out.Fields = mud.CloneFields(i.Fields)
	if i.Permissions != nil {
		out.Permissions = make(map[string]mud.PermRule, len(i.Permissions))
		for k, v := range i.Permissions {
			out.Permissions[k] = v
		}
	}
	return out
}

func cloneEvent(e mud.Event) mud.Event {
	out := e
	out.Data = mud.CloneFields(e.Data)
	return out
}

func cloneEntry(q mud.QueueEntry) mud.QueueEntry {
	out := q
	out.Params = mud.CloneFields(q.Params)
	return out
}

// TxManager serialises callers on the store mutex; the memory store has
// no rollback, which the unit tests do not rely on.
type TxManager struct {
	store *Store
}

func NewTxManager(store *Store) TxManager {
	return TxManager{store: store}
}

type txKeyType struct{}

var txKey = txKeyType{}

func (t TxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey) != nil {
		return fn(ctx)
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	return fn(context.WithValue(ctx, txKey, true))
}
