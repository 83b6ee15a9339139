package action

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"mash/internal/adapter/repo/memory"
	"mash/internal/app/events"
	"mash/internal/app/perm"
	"mash/internal/app/rules"
	"mash/internal/app/world"
	"mash/internal/domain/mud"
)

type fixture struct {
	store  *memory.Store
	events memory.EventRepo
	uc     UseCase
}

func newFixture() *fixture {
	store := memory.NewStore()
	agents := memory.NewAgentRepo(store)
	templates := memory.NewTemplateRepo(store)
	instances := memory.NewInstanceRepo(store)
	queue := memory.NewQueueRepo(store)
	eventRepo := memory.NewEventRepo(store)
	linkUsage := memory.NewLinkUsageRepo(store)
	worldState := memory.NewWorldStateRepo(store)

	resolver := perm.Resolver{Agents: agents, Templates: templates, Instances: instances}
	bus := events.Bus{Agents: agents, Events: eventRepo}
	w := world.World{Agents: agents, Templates: templates, Instances: instances, Perm: resolver, Bus: bus}
	eval := rules.Evaluator{
		Agents: agents, Templates: templates, Instances: instances,
		Perm: resolver, World: w, Bus: bus,
	}
	store.SeedWorldState(mud.WorldState{TickNumber: 7, LastTickAt: time.Now().UnixMilli()})

	return &fixture{
		store:  store,
		events: eventRepo,
		uc: UseCase{
			Lock:       &sync.Mutex{},
			TxManager:  memory.NewTxManager(store),
			Agents:     agents,
			Templates:  templates,
			Instances:  instances,
			Queue:      queue,
			LinkUsage:  linkUsage,
			WorldState: worldState,
			Perm:       resolver,
			World:      w,
			Bus:        bus,
			Evaluator:  eval,
			Rand:       func(n int) int { return 0 },
		},
	}
}

// seedAgentInNode wires an agent standing in its own node.
func (f *fixture) seedAgentInNode(id, username, nodeID string) mud.Agent {
	node := mud.Instance{ID: nodeID, Kind: mud.KindNode, ShortDescription: "a room"}
	f.store.SeedInstance(node)
	agent := mud.Agent{
		ID:               id,
		Username:         username,
		CurrentNodeID:    nodeID,
		HomeNodeID:       nodeID,
		AP:               mud.MaxAP,
		PerceptionAgents: mud.DefaultPerceptionCap,
		PerceptionLinks:  mud.DefaultPerceptionCap,
		PerceptionThings: mud.DefaultPerceptionCap,
		SeeBroadcasts:    true,
	}
	f.store.SeedAgent(agent)
	return agent
}

func (f *fixture) agent(t *testing.T, id string) mud.Agent {
	t.Helper()
	a, err := f.uc.Agents.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("agent %s: %v", id, err)
	}
	return a
}

func (f *fixture) instance(t *testing.T, id string) mud.Instance {
	t.Helper()
	i, err := f.uc.Instances.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("instance %s: %v", id, err)
	}
	return i
}

func (f *fixture) execute(t *testing.T, agentID, verb string, params map[string]any) any {
	t.Helper()
	out, err := f.uc.Execute(context.Background(), Request{AgentID: agentID, Verb: verb, Params: params})
	if err != nil {
		t.Fatalf("execute %s: %v", verb, err)
	}
	return out
}

// runQueued drives a verb through ExecuteQueued directly, the way the
// tick engine does.
func (f *fixture) runQueued(t *testing.T, agentID, verb string, params map[string]any) any {
	t.Helper()
	agent := f.agent(t, agentID)
	return f.uc.ExecuteQueued(context.Background(), agent, mud.QueueEntry{
		AgentID: agentID, Verb: verb, Params: params,
	})
}

func asMap(t *testing.T, v any) map[string]any {
	t.Helper()
	m, ok := v.(map[string]any)
	if !ok {
		t.Fatalf("result is %T, want map", v)
	}
	return m
}

func mustRulesJSON(t *testing.T, raw string) []mud.Rule {
	t.Helper()
	var list []any
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		t.Fatalf("decode rules: %v", err)
	}
	rules, err := mud.ParseRules(list)
	if err != nil {
		t.Fatalf("parse rules: %v", err)
	}
	return rules
}

func paramsJSON(t *testing.T, raw string) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		t.Fatalf("decode params: %v", err)
	}
	return out
}
