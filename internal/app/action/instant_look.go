package action

import (
	"context"

	"mash/internal/domain/mud"
)

// look without a target renders the agent's current node under its
// perception caps; with a target it dispatches on what the target is.
func (u UseCase) look(ctx context.Context, agent mud.Agent, params map[string]any) any {
	if agent.InLimbo() {
		return errResult("you are nowhere")
	}
	target := strParam(params, "target")
	if target == "" {
		node, err := u.Instances.GetByID(ctx, agent.CurrentNodeID)
		if err != nil || !node.Live() {
			return errResult("current node not found")
		}
		snapshot, err := u.nodeSnapshot(ctx, agent, node, true)
		if err != nil {
			return errResult("node snapshot failed")
		}
		return snapshot
	}
	return u.lookTarget(ctx, agent, target)
}

func (u UseCase) lookTarget(ctx context.Context, agent mud.Agent, target string) any {
	if other, err := u.Agents.GetByID(ctx, target); err == nil {
		if other.CurrentNodeID == "" || other.CurrentNodeID != agent.CurrentNodeID {
			return errResult("not here")
		}
		return agentCard(other)
	}

	inst, err := u.Instances.GetByID(ctx, target)
	if err != nil || !inst.Live() {
		return errResult("not found")
	}
	if inst.SystemType == mud.SystemLinkIndex {
		return u.linkIndex(ctx, agent)
	}
	if inst.Kind == mud.KindNode {
		if inst.ID != agent.CurrentNodeID {
			return errResult("not here")
		}
		return instanceCard(inst)
	}
	if u.Perm.InNodeChain(ctx, inst, agent.CurrentNodeID) || u.Perm.InInventoryChain(ctx, inst, agent.ID) {
		return instanceCard(inst)
	}
	return errResult("not here")
}

// linkIndex is the wired-in behaviour of the glowing directory: the
// caller's most recent link usages, bounded by their link perception
// cap.
func (u UseCase) linkIndex(ctx context.Context, agent mud.Agent) any {
	usages, err := u.LinkUsage.ListRecent(ctx, agent.ID, agent.PerceptionLinks)
	if err != nil {
		return errResult("link index unavailable")
	}
	entries := make([]map[string]any, 0, len(usages))
	for _, usage := range usages {
		entries = append(entries, map[string]any{
			"link_id":   usage.LinkID,
			"node_id":   usage.NodeID,
			"node_name": usage.NodeName,
			"used_at":   usage.UsedAt,
		})
	}
	return map[string]any{"type": "link_index", "entries": entries}
}

// survey dumps the current node without perception caps; category
// narrows the dump to agents, links, or things.
func (u UseCase) survey(ctx context.Context, agent mud.Agent, params map[string]any) any {
	if agent.InLimbo() {
		return errResult("you are nowhere")
	}
	node, err := u.Instances.GetByID(ctx, agent.CurrentNodeID)
	if err != nil || !node.Live() {
		return errResult("current node not found")
	}
	snapshot, err := u.nodeSnapshot(ctx, agent, node, false)
	if err != nil {
		return errResult("node snapshot failed")
	}
	category := strParam(params, "category")
	switch category {
	case "":
		return snapshot
	case "agents", "links", "things":
		return map[string]any{"type": "node", "id": node.ID, category: snapshot[category]}
	default:
		return errResult("unknown category")
	}
}

// nodeSnapshot renders a node with its occupants and direct contents;
// capped applies the agent's perception limits.
func (u UseCase) nodeSnapshot(ctx context.Context, agent mud.Agent, node mud.Instance, capped bool) (map[string]any, error) {
	occupants, err := u.Agents.ListByNode(ctx, node.ID)
	if err != nil {
		return nil, err
	}
	contents, err := u.Instances.ListByContainer(ctx, mud.InInstance(node.ID))
	if err != nil {
		return nil, err
	}

	agents := make([]map[string]any, 0, len(occupants))
	for _, other := range occupants {
		if other.ID == agent.ID {
			continue
		}
		agents = append(agents, map[string]any{"id": other.ID, "username": other.Username, "short_description": other.ShortDescription})
	}
	var links, things []map[string]any
	for _, inst := range contents {
		switch inst.Kind {
		case mud.KindLink:
			links = append(links, instanceSummary(inst))
		case mud.KindThing:
			things = append(things, instanceSummary(inst))
		}
	}
	if capped {
		agents = capList(agents, agent.PerceptionAgents)
		links = capList(links, agent.PerceptionLinks)
		things = capList(things, agent.PerceptionThings)
	}
	if links == nil {
		links = []map[string]any{}
	}
	if things == nil {
		things = []map[string]any{}
	}
	return map[string]any{
		"type":              "node",
		"id":                node.ID,
		"short_description": node.ShortDescription,
		"long_description":  node.LongDescription,
		"agents":            agents,
		"links":             links,
		"things":            things,
	}, nil
}

func capList(list []map[string]any, cap int) []map[string]any {
	if cap > 0 && len(list) > cap {
		return list[:cap]
	}
	return list
}
