// Package world holds the mutation primitives shared by the action
// handlers and the rule evaluator: instantiation, destruction cascades,
// voiding, and agent eviction.
package world

import (
	"context"
	"time"

	"mash/internal/app/events"
	"mash/internal/app/perm"
	"mash/internal/app/ports"
	"mash/internal/domain/mud"
)

type World struct {
	Agents    ports.AgentRepository
	Templates ports.TemplateRepository
	Instances ports.InstanceRepository
	Perm      perm.Resolver
	Bus       events.Bus
	Now       func() time.Time
}

func (w World) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

// CreateFromTemplate instantiates a template into a container, copying
// descriptions and fields and overlaying extra fields.
func (w World) CreateFromTemplate(ctx context.Context, tpl mud.Template, container mud.ContainerRef, extraFields map[string]any) (mud.Instance, error) {
	inst := mud.Instance{
		ID:               mud.NewID(),
		TemplateID:       tpl.ID,
		Kind:             tpl.Kind,
		ShortDescription: tpl.ShortDescription,
		LongDescription:  tpl.LongDescription,
		Fields:           mud.MergeFields(tpl.Fields, extraFields),
		Container:        container,
	}
	if err := w.Instances.Create(ctx, inst); err != nil {
		return mud.Instance{}, err
	}
	return inst, nil
}

// DestroyCascade marks the instance destroyed, destroys everything it
// contains, and evicts agents if the instance is a node.
func (w World) DestroyCascade(ctx context.Context, inst mud.Instance) error {
	inst.IsDestroyed = true
	if err := w.Instances.Update(ctx, inst); err != nil {
		return err
	}
	return w.cascadeContents(ctx, inst)
}

// VoidCascade nulls the instance's template reference, destroys its
// contents, and evicts agents if it is a node. The voided row itself
// stays addressable for the remainder of the cascade.
func (w World) VoidCascade(ctx context.Context, inst mud.Instance) error {
	inst.IsVoid = true
	inst.TemplateID = ""
	if err := w.Instances.Update(ctx, inst); err != nil {
		return err
	}
	return w.cascadeContents(ctx, inst)
}

func (w World) cascadeContents(ctx context.Context, inst mud.Instance) error {
	contents, err := w.Instances.ListByContainer(ctx, mud.InInstance(inst.ID))
	if err != nil {
		return err
	}
	for _, child := range contents {
		if err := w.DestroyCascade(ctx, child); err != nil {
			return err
		}
	}
	if inst.Kind == mud.KindNode {
		return w.EvictAgents(ctx, inst.ID)
	}
	return nil
}

// EvictAgents sends every agent in the node back to its home node with
// a system event.
func (w World) EvictAgents(ctx context.Context, nodeID string) error {
	agents, err := w.Agents.ListByNode(ctx, nodeID)
	if err != nil {
		return err
	}
	for _, agent := range agents {
		if agent.HomeNodeID == nodeID {
			continue
		}
		agent.CurrentNodeID = agent.HomeNodeID
		if err := w.Agents.Update(ctx, agent); err != nil {
			return err
		}
		if err := w.Bus.Emit(ctx, agent.ID, mud.EventSystem, map[string]any{
			"message": "the place you were in ceased to exist; you are home",
		}); err != nil {
			return err
		}
	}
	return nil
}

// VoidTemplateInstances voids every live instance of a template. Used
// by template deletion; the whole sweep runs in the caller's
// transaction inside one tick.
func (w World) VoidTemplateInstances(ctx context.Context, templateID string) error {
	instances, err := w.Instances.ListByTemplate(ctx, templateID)
	if err != nil {
		return err
	}
	for _, inst := range instances {
		if err := w.VoidCascade(ctx, inst); err != nil {
			return err
		}
	}
	return nil
}
