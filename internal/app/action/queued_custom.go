package action

import (
	"context"

	"mash/internal/app/rules"
	"mash/internal/domain/mud"
)

// custom dispatches a free-form verb to the target's interaction rules.
// The one wired-in special case is reset on the caller's own home node.
func (u UseCase) custom(ctx context.Context, agent mud.Agent, verb string, params map[string]any) any {
	targetID := strParam(params, "target_id")
	if targetID == "" {
		return errResult("target_id required")
	}
	target, err := u.Instances.GetByID(ctx, targetID)
	if err != nil || !target.Live() {
		return errResult("not found")
	}
	if verb == "reset" && target.ID == agent.HomeNodeID {
		return u.resetHome(ctx, agent, target)
	}
	if !u.Perm.Allows(ctx, agent, target, mud.PermInteract) {
		return errResult("interact not permitted")
	}

	subject := rules.Subject{}
	if subjectID := strParam(params, "subject_id"); subjectID != "" {
		if _, err := u.Instances.GetByID(ctx, subjectID); err == nil {
			subject.InstanceID = subjectID
		} else if _, err := u.Agents.GetByID(ctx, subjectID); err == nil {
			subject.AgentID = subjectID
		} else {
			return errResult("subject not found")
		}
	}

	denied, err := u.Evaluator.Fire(ctx, target.ID, verb, &agent, subject)
	if err != nil {
		return errResult("interaction failed")
	}
	if denied {
		return errResult("denied")
	}
	return map[string]any{"fired": verb, "target_id": target.ID}
}

// resetHome restores the home node's stock state and clears out
// everything the owner accumulated, leaving the system fixtures.
func (u UseCase) resetHome(ctx context.Context, agent mud.Agent, home mud.Instance) any {
	home.ShortDescription = mud.HomeShortDescription
	home.LongDescription = mud.HomeLongDescription
	home.Fields = map[string]any{}
	home.Permissions = mud.HomeNodePermissions(agent.Username)
	if err := u.Instances.Update(ctx, home); err != nil {
		return errResult("reset failed")
	}
	contents, err := u.Instances.ListByContainer(ctx, mud.InInstance(home.ID))
	if err != nil {
		return errResult("reset failed")
	}
	removed := 0
	for _, inst := range contents {
		if inst.SystemType != mud.SystemNone {
			continue
		}
		if err := u.World.DestroyCascade(ctx, inst); err != nil {
			return errResult("reset failed")
		}
		removed++
	}
	return map[string]any{"reset": true, "removed": removed}
}
