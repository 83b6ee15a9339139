package action

import (
	"context"

	"mash/internal/domain/mud"
)

// configure updates the agent's profile, perception caps, and
// broadcast visibility. Free: costs no AP.
func (u UseCase) configure(ctx context.Context, agent mud.Agent, params map[string]any) any {
	if s, ok := params["short_description"].(string); ok {
		agent.ShortDescription = s
	}
	if s, ok := params["long_description"].(string); ok {
		agent.LongDescription = s
	}
	if n, ok := intParam(params, "perception_agents"); ok {
		agent.PerceptionAgents = mud.ClampPerception(n)
	}
	if n, ok := intParam(params, "perception_links"); ok {
		agent.PerceptionLinks = mud.ClampPerception(n)
	}
	if n, ok := intParam(params, "perception_things"); ok {
		agent.PerceptionThings = mud.ClampPerception(n)
	}
	if b, ok := params["see_broadcasts"].(bool); ok {
		agent.SeeBroadcasts = b
	}
	if err := u.Agents.Update(ctx, agent); err != nil {
		return errResult("configure failed")
	}
	return map[string]any{
		"short_description": agent.ShortDescription,
		"long_description":  agent.LongDescription,
		"perception_agents": agent.PerceptionAgents,
		"perception_links":  agent.PerceptionLinks,
		"perception_things": agent.PerceptionThings,
		"see_broadcasts":    agent.SeeBroadcasts,
	}
}

// buyAP tops up the agent's AP against the per-tick purchase cap.
func (u UseCase) buyAP(ctx context.Context, agent mud.Agent, params map[string]any) any {
	count, ok := intParam(params, "count")
	if !ok || count < 1 || count > u.maxBuyPerCall() {
		return errResult("count must be between 1 and 10")
	}
	if agent.PurchasedAPThisTick+count > u.maxBuyPerTick() {
		return errResult("purchase cap reached for this tick")
	}
	agent.PurchasedAPThisTick += count
	agent.AP += count
	if agent.AP > u.apCeiling() {
		agent.AP = u.apCeiling()
	}
	if err := u.Agents.Update(ctx, agent); err != nil {
		return errResult("purchase failed")
	}
	return map[string]any{
		"ap":                     agent.AP,
		"purchased_ap_this_tick": agent.PurchasedAPThisTick,
	}
}
