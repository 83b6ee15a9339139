package ports

import (
	"context"

	"mash/internal/domain/mud"
)

// AgentRepository is keyed three ways: id for references, username for
// login and list rules, token for request authentication.
type AgentRepository interface {
	GetByID(ctx context.Context, id string) (mud.Agent, error)
	GetByUsername(ctx context.Context, username string) (mud.Agent, error)
	GetByToken(ctx context.Context, token string) (mud.Agent, error)
	Create(ctx context.Context, agent mud.Agent) error
	Update(ctx context.Context, agent mud.Agent) error
	ListByNode(ctx context.Context, nodeID string) ([]mud.Agent, error)
	// OccupiedNodes returns the distinct non-empty current node ids.
	OccupiedNodes(ctx context.Context) ([]string, error)
	// IsHomeNode reports whether any agent's home is the node.
	IsHomeNode(ctx context.Context, nodeID string) (bool, error)
	// ListIdleSince returns agents outside limbo whose last activity is
	// at or before the cutoff.
	ListIdleSince(ctx context.Context, cutoffMs int64) ([]mud.Agent, error)
	// ResetTickBudgets sets every agent's AP to maxAP and zeroes
	// purchased_ap_this_tick.
	ResetTickBudgets(ctx context.Context, maxAP int) error
}

type TemplateRepository interface {
	GetByID(ctx context.Context, id string) (mud.Template, error)
	Create(ctx context.Context, tpl mud.Template) error
	Update(ctx context.Context, tpl mud.Template) error
	Delete(ctx context.Context, id string) error
	ListByOwner(ctx context.Context, ownerID string) ([]mud.Template, error)
}

type InstanceRepository interface {
	GetByID(ctx context.Context, id string) (mud.Instance, error)
	Create(ctx context.Context, inst mud.Instance) error
	Update(ctx context.Context, inst mud.Instance) error
	// ListByContainer returns live instances directly inside the
	// container, in creation order.
	ListByContainer(ctx context.Context, c mud.ContainerRef) ([]mud.Instance, error)
	// ListByTemplate returns live instances of the template, in
	// creation order.
	ListByTemplate(ctx context.Context, templateID string) ([]mud.Instance, error)
	// FirstByTemplateInContainer returns the oldest live instance of the
	// template directly inside the container.
	FirstByTemplateInContainer(ctx context.Context, c mud.ContainerRef, templateID string) (mud.Instance, error)
	// ExistsByTemplateAndContainerID reports whether any live instance
	// of the template has the given container id, regardless of
	// container type.
	ExistsByTemplateAndContainerID(ctx context.Context, containerID, templateID string) (bool, error)
	// ListNodes returns every live node instance, in creation order.
	ListNodes(ctx context.Context) ([]mud.Instance, error)
	// ResetInteractionCounters zeroes interactions_used_this_tick on
	// every instance.
	ResetInteractionCounters(ctx context.Context) error
}

type QueueRepository interface {
	// Append assigns the next global ordinal and returns it.
	Append(ctx context.Context, entry mud.QueueEntry) (int64, error)
	// Due returns entries with tick_number <= tick, in ordinal order.
	Due(ctx context.Context, tick int64) ([]mud.QueueEntry, error)
	Delete(ctx context.Context, ordinal int64) error
}

type EventRepository interface {
	// Append assigns the next global ordinal and returns it.
	Append(ctx context.Context, event mud.Event) (int64, error)
	// Drain returns up to limit events for the agent in ordinal order
	// and deletes them. Each event is delivered at most once.
	Drain(ctx context.Context, agentID string, limit int) ([]mud.Event, error)
	DeleteOlderThan(ctx context.Context, cutoffMs int64) (int64, error)
}

type LinkUsageRepository interface {
	Append(ctx context.Context, usage mud.LinkUsage) error
	// ListRecent returns the agent's most recent usages, newest first.
	ListRecent(ctx context.Context, agentID string, limit int) ([]mud.LinkUsage, error)
}

type WorldStateRepository interface {
	Get(ctx context.Context) (mud.WorldState, error)
	Put(ctx context.Context, state mud.WorldState) error
}
