package rules

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"mash/internal/domain/mud"
)

// Fire runs every rule of the instance's template whose verb matches,
// in template order, honouring the per-tick interaction budget. It
// returns whether a deny effect fired so callers can roll back the
// triggering verb. Actor is nil for runtime-fired verbs (tick).
func (e Evaluator) Fire(ctx context.Context, instanceID, verb string, actor *mud.Agent, subject Subject) (denied bool, err error) {
	inst, err := e.Instances.GetByID(ctx, instanceID)
	if err != nil || !inst.Live() || inst.TemplateID == "" {
		return false, nil
	}
	tpl, err := e.Templates.GetByID(ctx, inst.TemplateID)
	if err != nil {
		return false, nil
	}

	inv := &invocation{selfID: instanceID, actor: actor, subject: subject, ownerID: tpl.OwnerID}
	for _, rule := range tpl.Interactions {
		if rule.On != verb {
			continue
		}
		// Re-read: earlier rules of this call, or earlier calls this
		// tick, may have advanced the counter.
		inst, err = e.Instances.GetByID(ctx, instanceID)
		if err != nil || !inst.Live() {
			return inv.denied, nil
		}
		if inst.InteractionsUsed >= e.budget() {
			break
		}
		inst.InteractionsUsed++
		if err := e.Instances.Update(ctx, inst); err != nil {
			return inv.denied, err
		}

		branch := rule.Do
		if !e.condsHold(ctx, inv, rule.If) {
			branch = rule.Else
		}
		if err := e.runEffects(ctx, inv, branch); err != nil {
			return inv.denied, err
		}
		if inv.denied {
			break
		}
	}
	return inv.denied, nil
}

func (e Evaluator) runEffects(ctx context.Context, inv *invocation, entries []mud.EffectEntry) error {
	for _, entry := range entries {
		if inv.denied {
			return nil
		}
		if entry.Block != nil {
			branch := entry.Block.Do
			if !e.condsHold(ctx, inv, entry.Block.If) {
				branch = entry.Block.Else
			}
			if err := e.runEffects(ctx, inv, branch); err != nil {
				return err
			}
			continue
		}
		if err := e.applyEffect(ctx, inv, *entry.Effect); err != nil {
			return err
		}
	}
	return nil
}

func (e Evaluator) applyEffect(ctx context.Context, inv *invocation, eff mud.Effect) error {
	switch eff.Op {
	case mud.EffectDeny:
		inv.denied = true
		return nil
	case mud.EffectSet:
		return e.effectSet(ctx, inv, eff)
	case mud.EffectAdd:
		return e.effectAdd(ctx, inv, eff)
	case mud.EffectSay:
		return e.effectSay(ctx, inv, eff)
	case mud.EffectTake:
		return e.effectTake(ctx, inv, eff)
	case mud.EffectGive:
		return e.effectGive(ctx, inv, eff)
	case mud.EffectMove:
		return e.effectMove(ctx, inv, eff)
	case mud.EffectCreate:
		return e.effectCreate(ctx, inv, eff)
	case mud.EffectDestroy:
		return e.effectDestroy(ctx, inv, eff)
	case mud.EffectPerm:
		return e.effectPerm(ctx, inv, eff)
	default:
		return nil
	}
}

// writeTarget resolves a set/add/perm-style ref of the form
// HEAD[.FIELD] where HEAD is self, subject, or container, and the
// target must be an instance. The bool is false for anything else;
// unauthorised and unresolvable targets are skipped silently per the
// error design.
func (e Evaluator) writeTarget(ctx context.Context, inv *invocation, ref string) (mud.Instance, string, bool) {
	head, field, _ := strings.Cut(ref, ".")
	var id string
	switch head {
	case "self":
		id = inv.selfID
	case "subject":
		if inv.subject.InstanceID == "" {
			return mud.Instance{}, "", false
		}
		id = inv.subject.InstanceID
	case "container":
		self, err := e.Instances.GetByID(ctx, inv.selfID)
		if err != nil || self.Container.Type != mud.ContainerInstance {
			return mud.Instance{}, "", false
		}
		id = self.Container.ID
	default:
		return mud.Instance{}, "", false
	}
	inst, err := e.Instances.GetByID(ctx, id)
	if err != nil || !inst.Live() {
		return mud.Instance{}, "", false
	}
	return inst, field, true
}

// ownerMay checks the escalation rule: effects that reach beyond self
// require the template owner to hold the given permission on the
// target at invocation time.
func (e Evaluator) ownerMay(ctx context.Context, inv *invocation, target mud.Instance, key string) bool {
	if target.ID == inv.selfID {
		return true
	}
	owner, err := e.Agents.GetByID(ctx, inv.ownerID)
	if err != nil {
		return false
	}
	return e.Perm.Allows(ctx, owner, target, key)
}

func (e Evaluator) effectSet(ctx context.Context, inv *invocation, eff mud.Effect) error {
	target, field, ok := e.writeTarget(ctx, inv, eff.Ref)
	if !ok || field == "" {
		return nil
	}
	if !e.ownerMay(ctx, inv, target, mud.PermEdit) {
		slog.Debug("rule set skipped", "target", target.ID, "field", field)
		return nil
	}
	switch field {
	case "short_description":
		target.ShortDescription = mud.Str(eff.Value)
	case "long_description":
		target.LongDescription = mud.Str(eff.Value)
	default:
		if target.Fields == nil {
			target.Fields = map[string]any{}
		}
		target.Fields[field] = eff.Value
	}
	return e.Instances.Update(ctx, target)
}

func (e Evaluator) effectAdd(ctx context.Context, inv *invocation, eff mud.Effect) error {
	target, field, ok := e.writeTarget(ctx, inv, eff.Ref)
	if !ok || field == "" || field == "short_description" || field == "long_description" {
		return nil
	}
	if !e.ownerMay(ctx, inv, target, mud.PermEdit) {
		return nil
	}
	delta, dok := mud.Num(eff.Value)
	if !dok {
		if ref, isRef := eff.Value.(string); isRef {
			if v, rok := e.resolveRef(ctx, inv, ref); rok {
				delta, dok = mud.Num(v)
			}
		}
		if !dok {
			return nil
		}
	}
	current, _ := mud.Num(target.Fields[field])
	if target.Fields == nil {
		target.Fields = map[string]any{}
	}
	target.Fields[field] = current + delta
	return e.Instances.Update(ctx, target)
}

var sayToken = regexp.MustCompile(`\{([A-Za-z0-9_.:]+)\}`)

func (e Evaluator) effectSay(ctx context.Context, inv *invocation, eff mud.Effect) error {
	text := sayToken.ReplaceAllStringFunc(eff.Text, func(tok string) string {
		ref := tok[1 : len(tok)-1]
		if v, ok := e.resolveRef(ctx, inv, ref); ok {
			return mud.Str(v)
		}
		return tok
	})
	self, err := e.Instances.GetByID(ctx, inv.selfID)
	if err != nil {
		return nil
	}
	nodeID, ok := e.Perm.ContainingNodeID(ctx, self)
	if !ok || nodeID == "" {
		return nil
	}
	_, err = e.Bus.BroadcastToNode(ctx, nodeID, mud.EventBroadcast, map[string]any{"message": text}, "")
	return err
}

// containerFromRef resolves a ref to a container: agent inventories and
// instances are auto-detected; node instances contain like any other.
func (e Evaluator) containerFromRef(ctx context.Context, inv *invocation, ref string) (mud.ContainerRef, bool) {
	v, ok := e.resolveRef(ctx, inv, ref)
	if !ok {
		return mud.ContainerRef{}, false
	}
	id, ok := v.(string)
	if !ok || id == "" {
		return mud.ContainerRef{}, false
	}
	if inst, err := e.Instances.GetByID(ctx, id); err == nil && inst.Live() {
		return mud.InInstance(inst.ID), true
	}
	if _, err := e.Agents.GetByID(ctx, id); err == nil {
		return mud.InAgent(id), true
	}
	return mud.ContainerRef{}, false
}

func (e Evaluator) effectTake(ctx context.Context, inv *invocation, eff mud.Effect) error {
	from, ok := e.containerFromRef(ctx, inv, eff.Ref)
	if !ok {
		return nil
	}
	item, err := e.Instances.FirstByTemplateInContainer(ctx, from, eff.TemplateID)
	if err != nil {
		return nil
	}
	if !e.ownerMay(ctx, inv, item, mud.PermContain) {
		return nil
	}
	if !e.Perm.ChildDepthOK(ctx, mud.InInstance(inv.selfID)) {
		return nil
	}
	item.Container = mud.InInstance(inv.selfID)
	return e.Instances.Update(ctx, item)
}

func (e Evaluator) effectGive(ctx context.Context, inv *invocation, eff mud.Effect) error {
	item, err := e.Instances.FirstByTemplateInContainer(ctx, mud.InInstance(inv.selfID), eff.TemplateID)
	if err != nil {
		return nil
	}
	to, ok := e.containerFromRef(ctx, inv, eff.Ref)
	if !ok {
		return nil
	}
	if !e.ownerMay(ctx, inv, item, mud.PermContain) {
		return nil
	}
	if !e.Perm.ChildDepthOK(ctx, to) {
		return nil
	}
	item.Container = to
	return e.Instances.Update(ctx, item)
}

// effectMove resolves its node operand as a reference first and falls
// back to a literal node id.
func (e Evaluator) effectMove(ctx context.Context, inv *invocation, eff mud.Effect) error {
	nodeID, _ := eff.Value.(string)
	if v, ok := e.resolveRef(ctx, inv, nodeID); ok {
		if s, ok := v.(string); ok && s != "" {
			nodeID = s
		}
	}
	node, err := e.Instances.GetByID(ctx, nodeID)
	if err != nil || node.Kind != mud.KindNode || !node.Live() {
		return nil
	}

	v, ok := e.resolveRef(ctx, inv, eff.Ref)
	if !ok {
		return nil
	}
	id, _ := v.(string)
	if agent, err := e.Agents.GetByID(ctx, id); err == nil {
		agent.CurrentNodeID = node.ID
		if err := e.Agents.Update(ctx, agent); err != nil {
			return err
		}
		return e.Bus.Emit(ctx, agent.ID, mud.EventSystem, map[string]any{
			"message": "you are moved to " + node.ShortDescription,
			"node_id": node.ID,
		})
	}
	target, err := e.Instances.GetByID(ctx, id)
	if err != nil || !target.Live() || target.Kind == mud.KindNode {
		return nil
	}
	target.Container = mud.InInstance(node.ID)
	return e.Instances.Update(ctx, target)
}

func (e Evaluator) effectCreate(ctx context.Context, inv *invocation, eff mud.Effect) error {
	tpl, err := e.Templates.GetByID(ctx, eff.TemplateID)
	if err != nil {
		return nil
	}
	at, ok := e.containerFromRef(ctx, inv, eff.Ref)
	if !ok {
		return nil
	}
	if tpl.Kind == mud.KindNode || !e.Perm.ChildDepthOK(ctx, at) {
		return nil
	}
	_, err = e.World.CreateFromTemplate(ctx, tpl, at, nil)
	return err
}

func (e Evaluator) effectDestroy(ctx context.Context, inv *invocation, eff mud.Effect) error {
	v, ok := e.resolveRef(ctx, inv, eff.Ref)
	if !ok {
		return nil
	}
	id, _ := v.(string)
	target, err := e.Instances.GetByID(ctx, id)
	if err != nil || !target.Live() {
		return nil
	}
	if !e.ownerMay(ctx, inv, target, mud.PermDelete) {
		slog.Debug("rule destroy skipped", "target", target.ID)
		return nil
	}
	return e.World.DestroyCascade(ctx, target)
}

// effectPerm writes a permission override. Beyond self the owner must
// hold perms on the target and also the permission being granted,
// which closes the escalation hole where a rule grants others more
// than the owner has.
func (e Evaluator) effectPerm(ctx context.Context, inv *invocation, eff mud.Effect) error {
	target, field, ok := e.writeTarget(ctx, inv, eff.Ref)
	if !ok || field != "" {
		return nil
	}
	if target.ID != inv.selfID {
		owner, err := e.Agents.GetByID(ctx, inv.ownerID)
		if err != nil {
			return nil
		}
		if !e.Perm.Allows(ctx, owner, target, mud.PermPerms) || !e.Perm.Allows(ctx, owner, target, eff.PermKey) {
			return nil
		}
	}
	if target.Permissions == nil {
		target.Permissions = map[string]mud.PermRule{}
	}
	target.Permissions[eff.PermKey] = eff.PermRule
	return e.Instances.Update(ctx, target)
}
