package action

import (
	"context"

	"mash/internal/domain/mud"
)

// inspect returns the full descriptive record of an instance; the
// permission, default-permission, and interaction internals are shown
// only to callers holding perms on the target.
func (u UseCase) inspect(ctx context.Context, agent mud.Agent, params map[string]any) any {
	targetID := strParam(params, "target_id")
	if targetID == "" {
		return errResult("target_id required")
	}
	inst, err := u.Instances.GetByID(ctx, targetID)
	if err != nil || inst.IsDestroyed {
		return errResult("not found")
	}
	if !u.Perm.Allows(ctx, agent, inst, mud.PermInspect) {
		return errResult("inspect not permitted")
	}

	result := map[string]any{
		"id":                inst.ID,
		"kind":              string(inst.Kind),
		"short_description": inst.ShortDescription,
		"long_description":  inst.LongDescription,
		"fields":            inst.Fields,
		"is_void":           inst.IsVoid,
	}
	var tpl mud.Template
	haveTemplate := false
	if inst.TemplateID != "" {
		if tpl, err = u.Templates.GetByID(ctx, inst.TemplateID); err == nil {
			haveTemplate = true
			result["template_id"] = tpl.ID
			if owner, err := u.Agents.GetByID(ctx, tpl.OwnerID); err == nil {
				result["owner_username"] = owner.Username
			}
		}
	}
	if u.Perm.Allows(ctx, agent, inst, mud.PermPerms) {
		result["permissions"] = mud.EncodePermMap(inst.Permissions)
		if haveTemplate {
			result["default_permissions"] = mud.EncodePermMap(tpl.DefaultPermissions)
			result["interactions"] = mud.EncodeRules(tpl.Interactions)
		}
	}
	return result
}

// list enumerates the live instances of a template the caller owns.
func (u UseCase) list(ctx context.Context, agent mud.Agent, params map[string]any) any {
	templateID := strParam(params, "template_id")
	if templateID == "" {
		return errResult("template_id required")
	}
	tpl, err := u.Templates.GetByID(ctx, templateID)
	if err != nil {
		return errResult("template not found")
	}
	if tpl.OwnerID != agent.ID {
		return errResult("not your template")
	}
	instances, err := u.Instances.ListByTemplate(ctx, templateID)
	if err != nil {
		return errResult("listing failed")
	}
	out := make([]map[string]any, 0, len(instances))
	for _, inst := range instances {
		out = append(out, map[string]any{
			"id":                inst.ID,
			"short_description": inst.ShortDescription,
			"container_type":    string(inst.Container.Type),
			"container_id":      inst.Container.ID,
		})
	}
	return map[string]any{"template_id": templateID, "instances": out}
}
