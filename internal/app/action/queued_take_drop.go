package action

import (
	"context"

	"mash/internal/app/rules"
	"mash/internal/domain/mud"
)

// take moves a thing from the caller's current node (possibly nested)
// into the caller's inventory, or into a container already carried.
func (u UseCase) take(ctx context.Context, agent mud.Agent, params map[string]any) any {
	thing, reason := u.loadThing(ctx, params)
	if reason != "" {
		return errResult(reason)
	}
	if agent.InLimbo() || !u.Perm.InNodeChain(ctx, thing, agent.CurrentNodeID) {
		return errResult("not here")
	}
	if !u.Perm.Allows(ctx, agent, thing, mud.PermContain) {
		return errResult("contain not permitted")
	}
	if reason := u.containerPermits(ctx, agent, thing); reason != "" {
		return errResult(reason)
	}

	dest := mud.InAgent(agent.ID)
	if intoID := strParam(params, "into"); intoID != "" {
		into, err := u.Instances.GetByID(ctx, intoID)
		if err != nil || !into.Live() {
			return errResult("destination not found")
		}
		if !u.Perm.InInventoryChain(ctx, into, agent.ID) {
			return errResult("destination not in your inventory")
		}
		if !u.Perm.Allows(ctx, agent, into, mud.PermContain) {
			return errResult("contain not permitted on destination")
		}
		dest = mud.InInstance(into.ID)
		if !u.Perm.ChildDepthOK(ctx, dest) {
			return errResult("containment too deep")
		}
	}

	denied, err := u.Evaluator.Fire(ctx, thing.ID, "take", &agent, rules.Subject{})
	if err != nil {
		return errResult("interaction failed")
	}
	if denied {
		return errResult("denied")
	}

	// Re-read: the take rules may have moved or destroyed it.
	thing, err = u.Instances.GetByID(ctx, thing.ID)
	if err != nil || !thing.Live() {
		return errResult("gone")
	}
	thing.Container = dest
	if err := u.Instances.Update(ctx, thing); err != nil {
		return errResult("move failed")
	}
	return map[string]any{"taken": thing.ID}
}

// drop is the inverse: from the caller's inventory chain into the
// current node, or into a container rooted there.
func (u UseCase) drop(ctx context.Context, agent mud.Agent, params map[string]any) any {
	thing, reason := u.loadThing(ctx, params)
	if reason != "" {
		return errResult(reason)
	}
	if !u.Perm.InInventoryChain(ctx, thing, agent.ID) {
		return errResult("not carried")
	}
	if agent.InLimbo() {
		return errResult("you are nowhere")
	}
	if !u.Perm.Allows(ctx, agent, thing, mud.PermContain) {
		return errResult("contain not permitted")
	}

	dest := mud.InInstance(agent.CurrentNodeID)
	if intoID := strParam(params, "into"); intoID != "" {
		into, err := u.Instances.GetByID(ctx, intoID)
		if err != nil || !into.Live() {
			return errResult("destination not found")
		}
		if !u.Perm.InNodeChain(ctx, into, agent.CurrentNodeID) {
			return errResult("destination not here")
		}
		if !u.Perm.Allows(ctx, agent, into, mud.PermContain) {
			return errResult("contain not permitted on destination")
		}
		dest = mud.InInstance(into.ID)
	}
	if !u.Perm.ChildDepthOK(ctx, dest) {
		return errResult("containment too deep")
	}

	denied, err := u.Evaluator.Fire(ctx, thing.ID, "drop", &agent, rules.Subject{})
	if err != nil {
		return errResult("interaction failed")
	}
	if denied {
		return errResult("denied")
	}

	thing, err = u.Instances.GetByID(ctx, thing.ID)
	if err != nil || !thing.Live() {
		return errResult("gone")
	}
	thing.Container = dest
	if err := u.Instances.Update(ctx, thing); err != nil {
		return errResult("move failed")
	}
	return map[string]any{"dropped": thing.ID}
}

func (u UseCase) loadThing(ctx context.Context, params map[string]any) (mud.Instance, string) {
	targetID := strParam(params, "target_id")
	if targetID == "" {
		return mud.Instance{}, "target_id required"
	}
	thing, err := u.Instances.GetByID(ctx, targetID)
	if err != nil || !thing.Live() {
		return mud.Instance{}, "not found"
	}
	if thing.Kind != mud.KindThing {
		return mud.Instance{}, "not a thing"
	}
	return thing, ""
}

// containerPermits checks contain on the thing's current holder, which
// taking also disturbs.
func (u UseCase) containerPermits(ctx context.Context, agent mud.Agent, thing mud.Instance) string {
	if thing.Container.Type != mud.ContainerInstance {
		return ""
	}
	holder, err := u.Instances.GetByID(ctx, thing.Container.ID)
	if err != nil {
		return "container not found"
	}
	if !u.Perm.Allows(ctx, agent, holder, mud.PermContain) {
		return "contain not permitted on container"
	}
	return ""
}
