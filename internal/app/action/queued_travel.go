package action

import (
	"context"

	"mash/internal/app/rules"
	"mash/internal/domain/mud"
)

// travel walks an ordered route of links. The enqueue-time pre-debit
// of one AP per hop only gates the submission tick; the budget reset
// at the top of the execution tick wipes it, so the route is charged
// here, one AP per hop that actually completed.
func (u UseCase) travel(ctx context.Context, agent mud.Agent, params map[string]any) any {
	var via []string
	switch raw := params["via"].(type) {
	case string:
		via = []string{raw}
	case []any:
		for _, v := range raw {
			id, ok := v.(string)
			if !ok {
				return errResult("via must be a link id or list of link ids")
			}
			via = append(via, id)
		}
	}
	if len(via) == 0 {
		return errResult("via required")
	}

	completed := 0
	for i, linkID := range via {
		// Reload: earlier hops moved the agent.
		current, err := u.Agents.GetByID(ctx, agent.ID)
		if err != nil {
			return errResult("agent not found")
		}
		agent = current
		if reason := u.travelHop(ctx, agent, linkID); reason != "" {
			if err := u.chargeAP(ctx, agent.ID, completed); err != nil {
				return errResult("ap charge failed")
			}
			return map[string]any{
				"error":          reason,
				"stopped_at":     i,
				"hops_completed": completed,
				"ap_charged":     completed,
			}
		}
		completed++
	}
	if err := u.chargeAP(ctx, agent.ID, completed); err != nil {
		return errResult("ap charge failed")
	}

	agent, err := u.Agents.GetByID(ctx, agent.ID)
	if err != nil {
		return errResult("agent not found")
	}
	node, err := u.Instances.GetByID(ctx, agent.CurrentNodeID)
	if err != nil {
		return errResult("destination not found")
	}
	snapshot, err := u.nodeSnapshot(ctx, agent, node, true)
	if err != nil {
		return errResult("node snapshot failed")
	}
	snapshot["hops_completed"] = completed
	return snapshot
}

// travelHop executes one hop; an empty return means the hop completed.
func (u UseCase) travelHop(ctx context.Context, agent mud.Agent, linkID string) string {
	if agent.InLimbo() {
		return "you are nowhere"
	}
	link, err := u.Instances.GetByID(ctx, linkID)
	if err != nil || !link.Live() || link.Kind != mud.KindLink {
		return "link not usable"
	}
	if link.Container != mud.InInstance(agent.CurrentNodeID) {
		return "link not here"
	}

	var dest mud.Instance
	if link.SystemType == mud.SystemRandomLink {
		picked, ok := u.randomDestination(ctx, agent)
		if !ok {
			return "nowhere to go"
		}
		dest = picked
	} else {
		destID, _ := link.Fields["destination"].(string)
		dest, err = u.Instances.GetByID(ctx, destID)
		if err != nil || !dest.Live() || dest.Kind != mud.KindNode {
			return "destination not found"
		}
	}

	denied, err := u.Evaluator.Fire(ctx, link.ID, "travel", &agent, rules.Subject{})
	if err != nil || denied {
		return "travel denied"
	}
	denied, err = u.Evaluator.Fire(ctx, agent.CurrentNodeID, "exit", &agent, rules.Subject{InstanceID: link.ID})
	if err != nil || denied {
		return "exit denied"
	}
	denied, err = u.Evaluator.Fire(ctx, dest.ID, "enter", &agent, rules.Subject{InstanceID: link.ID})
	if err != nil || denied {
		return "entry denied"
	}

	origin := agent.CurrentNodeID
	if err := u.LinkUsage.Append(ctx, mud.LinkUsage{
		ID:       mud.NewID(),
		AgentID:  agent.ID,
		LinkID:   link.ID,
		NodeID:   dest.ID,
		NodeName: dest.ShortDescription,
		UsedAt:   u.now().UnixMilli(),
	}); err != nil {
		return "link usage record failed"
	}
	agent.CurrentNodeID = dest.ID
	if err := u.Agents.Update(ctx, agent); err != nil {
		return "move failed"
	}
	u.Bus.BroadcastToNode(ctx, origin, mud.EventBroadcast, map[string]any{
		"message": agent.Username + " left",
	}, agent.ID)
	u.Bus.BroadcastToNode(ctx, dest.ID, mud.EventBroadcast, map[string]any{
		"message": agent.Username + " arrived",
	}, agent.ID)
	return ""
}

// randomDestination picks a node for the shimmering portal: live, not
// where the agent stands, nobody's home, and open to the agent's
// interact.
func (u UseCase) randomDestination(ctx context.Context, agent mud.Agent) (mud.Instance, bool) {
	nodes, err := u.Instances.ListNodes(ctx)
	if err != nil {
		return mud.Instance{}, false
	}
	candidates := make([]mud.Instance, 0, len(nodes))
	for _, node := range nodes {
		if node.ID == agent.CurrentNodeID {
			continue
		}
		if isHome, err := u.Agents.IsHomeNode(ctx, node.ID); err != nil || isHome {
			continue
		}
		if !u.Perm.Allows(ctx, agent, node, mud.PermInteract) {
			continue
		}
		candidates = append(candidates, node)
	}
	if len(candidates) == 0 {
		return mud.Instance{}, false
	}
	return candidates[u.rand(len(candidates))], true
}

func (u UseCase) rand(n int) int {
	if u.Rand != nil {
		return u.Rand(n)
	}
	return 0
}

// home is the zero-hop teleport back to the agent's own node.
func (u UseCase) home(ctx context.Context, agent mud.Agent) any {
	if agent.CurrentNodeID == agent.HomeNodeID {
		return errResult("already home")
	}
	origin := agent.CurrentNodeID
	agent.CurrentNodeID = agent.HomeNodeID
	if err := u.Agents.Update(ctx, agent); err != nil {
		return errResult("move failed")
	}
	if origin != "" {
		u.Bus.BroadcastToNode(ctx, origin, mud.EventBroadcast, map[string]any{
			"message": agent.Username + " left",
		}, agent.ID)
	}
	node, err := u.Instances.GetByID(ctx, agent.HomeNodeID)
	if err != nil {
		return errResult("home not found")
	}
	snapshot, err := u.nodeSnapshot(ctx, agent, node, true)
	if err != nil {
		return errResult("node snapshot failed")
	}
	return snapshot
}
