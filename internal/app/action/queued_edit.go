package action

import (
	"context"

	"mash/internal/domain/mud"
)

// edit mutates a template (owner-only) or an instance (edit permission;
// permission changes additionally need perms).
func (u UseCase) edit(ctx context.Context, agent mud.Agent, params map[string]any) any {
	switch strParam(params, "type") {
	case "template":
		return u.editTemplate(ctx, agent, params)
	case "instance":
		return u.editInstance(ctx, agent, params)
	default:
		return errResult("type must be template or instance")
	}
}

func (u UseCase) editTemplate(ctx context.Context, agent mud.Agent, params map[string]any) any {
	tpl, err := u.Templates.GetByID(ctx, strParam(params, "template_id"))
	if err != nil {
		return errResult("template not found")
	}
	if tpl.OwnerID != agent.ID {
		return errResult("not your template")
	}
	if err := mud.ValidateTemplatePayload(params); err != nil {
		return errResult("invalid template payload")
	}

	if name, ok := params["name"].(string); ok {
		if !templateNameRe.MatchString(name) {
			return errResult("invalid template name")
		}
		tpl.Name = name
	}
	if s, ok := params["short_description"].(string); ok {
		tpl.ShortDescription = s
	}
	if s, ok := params["long_description"].(string); ok {
		tpl.LongDescription = s
	}
	if fields := mapParam(params, "fields"); fields != nil {
		tpl.Fields = mud.MergeFields(tpl.Fields, fields)
	}
	if raw := mapParam(params, "default_permissions"); raw != nil {
		parsed, err := mud.ParsePermMap(raw)
		if err != nil {
			return errResult(err.Error())
		}
		tpl.DefaultPermissions = parsed
	}
	if raw, ok := params["interactions"]; ok {
		list, ok := raw.([]any)
		if !ok {
			return errResult("interactions must be a list")
		}
		parsed, err := mud.ParseRules(list)
		if err != nil {
			return errResult(err.Error())
		}
		tpl.Interactions = parsed
	}

	if err := u.Templates.Update(ctx, tpl); err != nil {
		return errResult("template update failed")
	}
	return map[string]any{"template_id": tpl.ID}
}

func (u UseCase) editInstance(ctx context.Context, agent mud.Agent, params map[string]any) any {
	inst, err := u.Instances.GetByID(ctx, strParam(params, "instance_id"))
	if err != nil || !inst.Live() {
		return errResult("instance not found")
	}
	if !u.Perm.Allows(ctx, agent, inst, mud.PermEdit) {
		return errResult("edit not permitted")
	}

	if s, ok := params["short_description"].(string); ok {
		inst.ShortDescription = s
	}
	if s, ok := params["long_description"].(string); ok {
		inst.LongDescription = s
	}
	if fields := mapParam(params, "fields"); fields != nil {
		inst.Fields = mud.MergeFields(inst.Fields, fields)
	}
	if raw := mapParam(params, "permissions"); raw != nil {
		if !u.Perm.Allows(ctx, agent, inst, mud.PermPerms) {
			return errResult("perms not permitted")
		}
		parsed, err := mud.ParsePermMap(raw)
		if err != nil {
			return errResult(err.Error())
		}
		if inst.Permissions == nil {
			inst.Permissions = map[string]mud.PermRule{}
		}
		for key, rule := range parsed {
			inst.Permissions[key] = rule
		}
	}

	if err := u.Instances.Update(ctx, inst); err != nil {
		return errResult("instance update failed")
	}
	return map[string]any{"instance_id": inst.ID}
}

// delete voids a template's instances and removes the template, or
// destroys a single instance, cascading either way.
func (u UseCase) delete(ctx context.Context, agent mud.Agent, params map[string]any) any {
	targetID := strParam(params, "target_id")
	if targetID == "" {
		return errResult("target_id required")
	}

	if tpl, err := u.Templates.GetByID(ctx, targetID); err == nil {
		if tpl.OwnerID != agent.ID {
			return errResult("not your template")
		}
		if err := u.World.VoidTemplateInstances(ctx, tpl.ID); err != nil {
			return errResult("void cascade failed")
		}
		if err := u.Templates.Delete(ctx, tpl.ID); err != nil {
			return errResult("template delete failed")
		}
		return map[string]any{"deleted": true, "template_id": tpl.ID}
	}

	inst, err := u.Instances.GetByID(ctx, targetID)
	if err != nil || !inst.Live() {
		return errResult("not found")
	}
	if !u.Perm.Allows(ctx, agent, inst, mud.PermDelete) {
		return errResult("delete not permitted")
	}
	if err := u.World.DestroyCascade(ctx, inst); err != nil {
		return errResult("destroy cascade failed")
	}
	return map[string]any{"deleted": true, "instance_id": inst.ID}
}
