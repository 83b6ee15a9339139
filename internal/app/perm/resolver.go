// Package perm resolves effective permissions and walks containment
// chains. Every check answers with a boolean; store failures and
// malformed chains evaluate to a denial.
package perm

import (
	"context"

	"mash/internal/app/ports"
	"mash/internal/domain/mud"
)

type Resolver struct {
	Agents    ports.AgentRepository
	Templates ports.TemplateRepository
	Instances ports.InstanceRepository
}

// EffectiveRule looks up the rule for key: instance override first, then
// the template's defaults, then owner.
func (r Resolver) EffectiveRule(ctx context.Context, inst mud.Instance, key string) mud.PermRule {
	if rule, ok := inst.Permissions[key]; ok {
		return rule
	}
	if inst.TemplateID != "" {
		if tpl, err := r.Templates.GetByID(ctx, inst.TemplateID); err == nil {
			if rule, ok := tpl.DefaultPermissions[key]; ok {
				return rule
			}
		}
	}
	return mud.RuleOf(mud.RuleOwner)
}

// OwnerID returns the template owner of the instance, or "" for void,
// destroyed-template, and system instances.
func (r Resolver) OwnerID(ctx context.Context, inst mud.Instance) string {
	if inst.IsVoid || inst.TemplateID == "" {
		return ""
	}
	tpl, err := r.Templates.GetByID(ctx, inst.TemplateID)
	if err != nil {
		return ""
	}
	return tpl.OwnerID
}

// Allows evaluates the effective rule for (agent, inst, key).
func (r Resolver) Allows(ctx context.Context, agent mud.Agent, inst mud.Instance, key string) bool {
	rule := r.EffectiveRule(ctx, inst, key)
	containing, _ := r.ContainingNodeID(ctx, inst)
	return rule.Allows(mud.PermContext{
		AgentID:          agent.ID,
		Username:         agent.Username,
		OwnerID:          r.OwnerID(ctx, inst),
		AgentNodeID:      agent.CurrentNodeID,
		ContainingNodeID: containing,
	})
}

// ContainingNodeID walks container edges upward to the owning node. A
// node's containing node is itself; an inventory item resolves through
// its carrier's current node. The walk is bounded so that malformed
// cycles terminate.
func (r Resolver) ContainingNodeID(ctx context.Context, inst mud.Instance) (string, bool) {
	cur := inst
	for hops := 0; hops <= mud.MaxContainmentDepth+1; hops++ {
		if cur.Kind == mud.KindNode {
			return cur.ID, true
		}
		switch cur.Container.Type {
		case mud.ContainerAgent:
			agent, err := r.Agents.GetByID(ctx, cur.Container.ID)
			if err != nil || agent.InLimbo() {
				return "", false
			}
			return agent.CurrentNodeID, true
		case mud.ContainerInstance:
			parent, err := r.Instances.GetByID(ctx, cur.Container.ID)
			if err != nil {
				return "", false
			}
			cur = parent
		default:
			return "", false
		}
	}
	return "", false
}

// Carrier returns the agent at the top of the instance's container
// chain, if the chain ends in an inventory.
func (r Resolver) Carrier(ctx context.Context, inst mud.Instance) (mud.Agent, bool) {
	cur := inst
	for hops := 0; hops <= mud.MaxContainmentDepth+1; hops++ {
		switch cur.Container.Type {
		case mud.ContainerAgent:
			agent, err := r.Agents.GetByID(ctx, cur.Container.ID)
			if err != nil {
				return mud.Agent{}, false
			}
			return agent, true
		case mud.ContainerInstance:
			parent, err := r.Instances.GetByID(ctx, cur.Container.ID)
			if err != nil {
				return mud.Agent{}, false
			}
			cur = parent
		default:
			return mud.Agent{}, false
		}
	}
	return mud.Agent{}, false
}

// ChildDepthOK reports whether placing a child directly inside the
// candidate container keeps it within the containment depth limit.
// Agent inventories and nodes both count as roots.
func (r Resolver) ChildDepthOK(ctx context.Context, container mud.ContainerRef) bool {
	depth := 1
	cur := container
	for cur.Type == mud.ContainerInstance {
		inst, err := r.Instances.GetByID(ctx, cur.ID)
		if err != nil {
			return false
		}
		if inst.Kind == mud.KindNode {
			break
		}
		depth++
		if depth > mud.MaxContainmentDepth {
			return false
		}
		cur = inst.Container
	}
	return depth <= mud.MaxContainmentDepth
}

// InNodeChain reports whether the instance's containment chain roots at
// the given node.
func (r Resolver) InNodeChain(ctx context.Context, inst mud.Instance, nodeID string) bool {
	containing, ok := r.ContainingNodeID(ctx, inst)
	return ok && containing == nodeID
}

// InInventoryChain reports whether the instance's containment chain
// tops out at the given agent's inventory.
func (r Resolver) InInventoryChain(ctx context.Context, inst mud.Instance, agentID string) bool {
	cur := inst
	for hops := 0; hops <= mud.MaxContainmentDepth+1; hops++ {
		switch cur.Container.Type {
		case mud.ContainerAgent:
			return cur.Container.ID == agentID
		case mud.ContainerInstance:
			parent, err := r.Instances.GetByID(ctx, cur.Container.ID)
			if err != nil {
				return false
			}
			cur = parent
		default:
			return false
		}
	}
	return false
}
