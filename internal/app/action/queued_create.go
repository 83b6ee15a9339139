package action

import (
	"context"
	"regexp"

	"mash/internal/domain/mud"
)

var templateNameRe = regexp.MustCompile(`^[a-zA-Z0-9_ -]{1,64}$`)

// create makes either a template or an instance of a template the
// caller owns.
func (u UseCase) create(ctx context.Context, agent mud.Agent, params map[string]any) any {
	switch strParam(params, "type") {
	case "template":
		return u.createTemplate(ctx, agent, params)
	case "instance":
		return u.createInstance(ctx, agent, params)
	default:
		return errResult("type must be template or instance")
	}
}

func (u UseCase) createTemplate(ctx context.Context, agent mud.Agent, params map[string]any) any {
	if err := mud.ValidateTemplatePayload(params); err != nil {
		return errResult("invalid template payload")
	}
	name := strParam(params, "name")
	if !templateNameRe.MatchString(name) {
		return errResult("invalid template name")
	}
	kind := mud.Kind(strParam(params, "template_type"))
	if !kind.Valid() {
		return errResult("template_type must be node, link, or thing")
	}

	perms := mud.StockDefaultPermissions()
	if raw := mapParam(params, "default_permissions"); raw != nil {
		parsed, err := mud.ParsePermMap(raw)
		if err != nil {
			return errResult(err.Error())
		}
		perms = parsed
	}
	var interactions []mud.Rule
	if raw := listParam(params, "interactions"); raw != nil {
		parsed, err := mud.ParseRules(raw)
		if err != nil {
			return errResult(err.Error())
		}
		interactions = parsed
	}

	tpl := mud.Template{
		ID:                 mud.NewID(),
		OwnerID:            agent.ID,
		Name:               name,
		Kind:               kind,
		ShortDescription:   strParam(params, "short_description"),
		LongDescription:    strParam(params, "long_description"),
		Fields:             mapParam(params, "fields"),
		DefaultPermissions: perms,
		Interactions:       interactions,
	}
	if err := u.Templates.Create(ctx, tpl); err != nil {
		return errResult("template create failed")
	}
	return map[string]any{"template_id": tpl.ID}
}

func (u UseCase) createInstance(ctx context.Context, agent mud.Agent, params map[string]any) any {
	tpl, err := u.Templates.GetByID(ctx, strParam(params, "template_id"))
	if err != nil {
		return errResult("template not found")
	}
	if tpl.OwnerID != agent.ID {
		return errResult("not your template")
	}

	container := mud.ContainerRef{}
	containerID := strParam(params, "container_id")
	switch tpl.Kind {
	case mud.KindNode:
		if containerID != "" {
			return errResult("nodes are top-level")
		}
	default:
		if containerID == "" {
			if agent.InLimbo() {
				return errResult("you are nowhere")
			}
			containerID = agent.CurrentNodeID
		}
		parent, err := u.Instances.GetByID(ctx, containerID)
		if err != nil || !parent.Live() {
			return errResult("container not found")
		}
		if !u.Perm.Allows(ctx, agent, parent, mud.PermContain) {
			return errResult("contain not permitted")
		}
		container = mud.InInstance(parent.ID)
		if !u.Perm.ChildDepthOK(ctx, container) {
			return errResult("containment too deep")
		}
	}

	inst, err := u.World.CreateFromTemplate(ctx, tpl, container, mapParam(params, "fields"))
	if err != nil {
		return errResult("instance create failed")
	}
	return map[string]any{"instance_id": inst.ID}
}
