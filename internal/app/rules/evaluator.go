// Package rules evaluates the interaction rule language carried by
// templates: reference resolution, conditions, effects, and the
// per-tick fire budget.
package rules

import (
	"context"
	"strings"
	"time"

	"mash/internal/app/events"
	"mash/internal/app/perm"
	"mash/internal/app/ports"
	"mash/internal/app/world"
	"mash/internal/domain/mud"
)

type Evaluator struct {
	Agents    ports.AgentRepository
	Templates ports.TemplateRepository
	Instances ports.InstanceRepository
	Perm      perm.Resolver
	World     world.World
	Bus       events.Bus
	Now       func() time.Time
	// Budget caps matching rules per instance per tick; zero means the
	// default.
	Budget int
}

func (e Evaluator) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Evaluator) budget() int {
	if e.Budget > 0 {
		return e.Budget
	}
	return mud.MaxInteractionsPerTick
}

// Subject is the optional second entity of an invocation; at most one
// field is set.
type Subject struct {
	AgentID    string
	InstanceID string
}

// invocation carries the bindings of one fire() call. The denied flag
// is shared across nested blocks and across the rules of the call.
type invocation struct {
	selfID  string
	actor   *mud.Agent
	subject Subject
	ownerID string
	denied  bool
}

// Reference resolution. Self and subject state is re-read from the
// store on every dereference so intra-invocation mutations stay
// visible; undefined paths resolve to (nil, false).

func (e Evaluator) resolveRef(ctx context.Context, inv *invocation, ref string) (any, bool) {
	parts := strings.Split(ref, ".")
	switch parts[0] {
	case "self":
		inst, err := e.Instances.GetByID(ctx, inv.selfID)
		if err != nil {
			return nil, false
		}
		return e.instancePath(ctx, inst, parts[1:])
	case "actor":
		if inv.actor == nil {
			return nil, false
		}
		agent, err := e.Agents.GetByID(ctx, inv.actor.ID)
		if err != nil {
			return nil, false
		}
		return agentPath(agent, parts[1:])
	case "subject":
		switch {
		case inv.subject.InstanceID != "":
			inst, err := e.Instances.GetByID(ctx, inv.subject.InstanceID)
			if err != nil {
				return nil, false
			}
			return e.instancePath(ctx, inst, parts[1:])
		case inv.subject.AgentID != "":
			agent, err := e.Agents.GetByID(ctx, inv.subject.AgentID)
			if err != nil {
				return nil, false
			}
			return agentPath(agent, parts[1:])
		default:
			return nil, false
		}
	case "container":
		self, err := e.Instances.GetByID(ctx, inv.selfID)
		if err != nil {
			return nil, false
		}
		switch self.Container.Type {
		case mud.ContainerInstance:
			parent, err := e.Instances.GetByID(ctx, self.Container.ID)
			if err != nil {
				return nil, false
			}
			return e.instancePath(ctx, parent, parts[1:])
		case mud.ContainerAgent:
			agent, err := e.Agents.GetByID(ctx, self.Container.ID)
			if err != nil {
				return nil, false
			}
			return agentPath(agent, parts[1:])
		default:
			return nil, false
		}
	case "carrier":
		self, err := e.Instances.GetByID(ctx, inv.selfID)
		if err != nil {
			return nil, false
		}
		carrier, ok := e.Perm.Carrier(ctx, self)
		if !ok {
			return nil, false
		}
		if len(parts) >= 2 && parts[1] == "contents" {
			return e.contentsPath(ctx, mud.InAgent(carrier.ID), parts[2:])
		}
		return agentPath(carrier, parts[1:])
	case "tick":
		if len(parts) == 2 && parts[1] == "count" {
			now := e.now().UTC()
			midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
			return float64(int64(now.Sub(midnight).Seconds())), true
		}
		return nil, false
	default:
		return nil, false
	}
}

func (e Evaluator) instancePath(ctx context.Context, inst mud.Instance, rest []string) (any, bool) {
	switch len(rest) {
	case 0:
		return inst.ID, true
	case 1:
		switch rest[0] {
		case "id":
			return inst.ID, true
		case "short_description":
			return inst.ShortDescription, true
		case "long_description":
			return inst.LongDescription, true
		case "username":
			return nil, false
		default:
			v, ok := inst.Fields[rest[0]]
			return v, ok
		}
	default:
		if rest[0] == "contents" {
			return e.contentsPath(ctx, mud.InInstance(inst.ID), rest[1:])
		}
		return nil, false
	}
}

// contentsPath resolves the compound form contents.t:TEMPLATE_ID.FIELD
// against a container: the named field of the first live contained
// instance of that template.
func (e Evaluator) contentsPath(ctx context.Context, container mud.ContainerRef, rest []string) (any, bool) {
	if len(rest) != 2 || !strings.HasPrefix(rest[0], "t:") {
		return nil, false
	}
	templateID := strings.TrimPrefix(rest[0], "t:")
	inst, err := e.Instances.FirstByTemplateInContainer(ctx, container, templateID)
	if err != nil {
		return nil, false
	}
	switch rest[1] {
	case "id":
		return inst.ID, true
	case "short_description":
		return inst.ShortDescription, true
	case "long_description":
		return inst.LongDescription, true
	default:
		v, ok := inst.Fields[rest[1]]
		return v, ok
	}
}

func agentPath(agent mud.Agent, rest []string) (any, bool) {
	switch len(rest) {
	case 0:
		return agent.ID, true
	case 1:
		switch rest[0] {
		case "id":
			return agent.ID, true
		case "username":
			return agent.Username, true
		case "short_description":
			return agent.ShortDescription, true
		case "long_description":
			return agent.LongDescription, true
		}
	}
	return nil, false
}

// Conditions. A rule's "if" list is a logical AND; every comparison
// fails closed on type mismatch.

func (e Evaluator) condsHold(ctx context.Context, inv *invocation, conds []mud.Condition) bool {
	for _, c := range conds {
		if !e.condHolds(ctx, inv, c) {
			return false
		}
	}
	return true
}

func (e Evaluator) condHolds(ctx context.Context, inv *invocation, c mud.Condition) bool {
	switch c.Op {
	case mud.CondEq, mud.CondNeq:
		v, ok := e.resolveRef(ctx, inv, c.Ref)
		if !ok {
			v = nil
		}
		eq := mud.ScalarEqual(v, c.Value)
		if c.Op == mud.CondNeq {
			return !eq
		}
		return eq
	case mud.CondGt, mud.CondLt:
		v, ok := e.resolveRef(ctx, inv, c.Ref)
		if !ok {
			return false
		}
		vn, vok := mud.Num(v)
		ln, lok := mud.Num(c.Value)
		if !vok || !lok {
			return false
		}
		if c.Op == mud.CondGt {
			return vn > ln
		}
		return vn < ln
	case mud.CondHas:
		v, ok := e.resolveRef(ctx, inv, c.Ref)
		if !ok {
			return false
		}
		id, ok := v.(string)
		if !ok {
			return false
		}
		found, err := e.Instances.ExistsByTemplateAndContainerID(ctx, id, c.TemplateID)
		return err == nil && found
	case mud.CondNot:
		return !e.condHolds(ctx, inv, *c.Not)
	default:
		return false
	}
}
