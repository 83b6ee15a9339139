package memory

import (
	"context"
	"sort"

	"mash/internal/app/ports"
	"mash/internal/domain/mud"
)

// AgentRepo

type AgentRepo struct {
	store *Store
}

func NewAgentRepo(store *Store) AgentRepo {
	return AgentRepo{store: store}
}

func (r AgentRepo) GetByID(_ context.Context, id string) (mud.Agent, error) {
	a, ok := r.store.agents[id]
	if !ok {
		return mud.Agent{}, ports.ErrNotFound
	}
	return cloneAgent(a), nil
}

func (r AgentRepo) GetByUsername(_ context.Context, username string) (mud.Agent, error) {
	for _, a := range r.store.agents {
		if a.Username == username {
			return cloneAgent(a), nil
		}
	}
	return mud.Agent{}, ports.ErrNotFound
}

func (r AgentRepo) GetByToken(_ context.Context, token string) (mud.Agent, error) {
	for _, a := range r.store.agents {
		if a.Token == token {
			return cloneAgent(a), nil
		}
	}
	return mud.Agent{}, ports.ErrNotFound
}

func (r AgentRepo) Create(_ context.Context, agent mud.Agent) error {
	if _, ok := r.store.agents[agent.ID]; ok {
		return ports.ErrConflict
	}
	r.store.agents[agent.ID] = cloneAgent(agent)
	return nil
}

func (r AgentRepo) Update(_ context.Context, agent mud.Agent) error {
	if _, ok := r.store.agents[agent.ID]; !ok {
		return ports.ErrNotFound
	}
	r.store.agents[agent.ID] = cloneAgent(agent)
	return nil
}

func (r AgentRepo) ListByNode(_ context.Context, nodeID string) ([]mud.Agent, error) {
	var out []mud.Agent
	for _, a := range r.store.agents {
		if a.CurrentNodeID == nodeID && nodeID != "" {
			out = append(out, cloneAgent(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r AgentRepo) OccupiedNodes(_ context.Context) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, a := range r.store.agents {
		if a.CurrentNodeID != "" && !seen[a.CurrentNodeID] {
			seen[a.CurrentNodeID] = true
			out = append(out, a.CurrentNodeID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r AgentRepo) IsHomeNode(_ context.Context, nodeID string) (bool, error) {
	for _, a := range r.store.agents {
		if a.HomeNodeID == nodeID {
			return true, nil
		}
	}
	return false, nil
}

func (r AgentRepo) ListIdleSince(_ context.Context, cutoffMs int64) ([]mud.Agent, error) {
	var out []mud.Agent
	for _, a := range r.store.agents {
		if a.CurrentNodeID != "" && a.LastActiveAt <= cutoffMs {
			out = append(out, cloneAgent(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r AgentRepo) ResetTickBudgets(_ context.Context, maxAP int) error {
	for id, a := range r.store.agents {
		a.AP = maxAP
		a.PurchasedAPThisTick = 0
		r.store.agents[id] = a
	}
	return nil
}

// TemplateRepo

type TemplateRepo struct {
	store *Store
}

func NewTemplateRepo(store *Store) TemplateRepo {
	return TemplateRepo{store: store}
}

func (r TemplateRepo) GetByID(_ context.Context, id string) (mud.Template, error) {
	t, ok := r.store.templates[id]
	if !ok {
		return mud.Template{}, ports.ErrNotFound
	}
	return cloneTemplate(t), nil
}

func (r TemplateRepo) Create(_ context.Context, tpl mud.Template) error {
	if _, ok := r.store.templates[tpl.ID]; ok {
		return ports.ErrConflict
	}
	r.store.templates[tpl.ID] = cloneTemplate(tpl)
	return nil
}

func (r TemplateRepo) Update(_ context.Context, tpl mud.Template) error {
	if _, ok := r.store.templates[tpl.ID]; !ok {
		return ports.ErrNotFound
	}
	r.store.templates[tpl.ID] = cloneTemplate(tpl)
	return nil
}

func (r TemplateRepo) Delete(_ context.Context, id string) error {
	delete(r.store.templates, id)
	return nil
}

func (r TemplateRepo) ListByOwner(_ context.Context, ownerID string) ([]mud.Template, error) {
	var out []mud.Template
	for _, t := range r.store.templates {
		if t.OwnerID == ownerID {
			out = append(out, cloneTemplate(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// InstanceRepo

type InstanceRepo struct {
	store *Store
}

func NewInstanceRepo(store *Store) InstanceRepo {
	return InstanceRepo{store: store}
}

func (r InstanceRepo) GetByID(_ context.Context, id string) (mud.Instance, error) {
	i, ok := r.store.instances[id]
	if !ok {
		return mud.Instance{}, ports.ErrNotFound
	}
	return cloneInstance(i), nil
}

func (r InstanceRepo) Create(_ context.Context, inst mud.Instance) error {
	if _, ok := r.store.instances[inst.ID]; ok {
		return ports.ErrConflict
	}
	r.store.instances[inst.ID] = cloneInstance(inst)
	return nil
}

func (r InstanceRepo) Update(_ context.Context, inst mud.Instance) error {
	if _, ok := r.store.instances[inst.ID]; !ok {
		return ports.ErrNotFound
	}
	r.store.instances[inst.ID] = cloneInstance(inst)
	return nil
}

func (r InstanceRepo) liveSorted(filter func(mud.Instance) bool) []mud.Instance {
	var out []mud.Instance
	for _, i := range r.store.instances {
		if i.Live() && filter(i) {
			out = append(out, cloneInstance(i))
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out
}

func (r InstanceRepo) ListByContainer(_ context.Context, c mud.ContainerRef) ([]mud.Instance, error) {
	return r.liveSorted(func(i mud.Instance) bool { return i.Container == c }), nil
}

func (r InstanceRepo) ListByTemplate(_ context.Context, templateID string) ([]mud.Instance, error) {
	return r.liveSorted(func(i mud.Instance) bool { return i.TemplateID == templateID }), nil
}

func (r InstanceRepo) FirstByTemplateInContainer(ctx context.Context, c mud.ContainerRef, templateID string) (mud.Instance, error) {
	matches := r.liveSorted(func(i mud.Instance) bool {
		return i.Container == c && i.TemplateID == templateID
	})
	if len(matches) == 0 {
		return mud.Instance{}, ports.ErrNotFound
	}
	return matches[0], nil
}

func (r InstanceRepo) ExistsByTemplateAndContainerID(_ context.Context, containerID, templateID string) (bool, error) {
	for _, i := range r.store.instances {
		if i.Live() && i.Container.ID == containerID && i.TemplateID == templateID {
			return true, nil
		}
	}
	return false, nil
}

func (r InstanceRepo) ListNodes(_ context.Context) ([]mud.Instance, error) {
	return r.liveSorted(func(i mud.Instance) bool { return i.Kind == mud.KindNode }), nil
}

func (r InstanceRepo) ResetInteractionCounters(_ context.Context) error {
	for id, i := range r.store.instances {
		i.InteractionsUsed = 0
		r.store.instances[id] = i
	}
	return nil
}

// QueueRepo

type QueueRepo struct {
	store *Store
}

func NewQueueRepo(store *Store) QueueRepo {
	return QueueRepo{store: store}
}

func (r QueueRepo) Append(_ context.Context, entry mud.QueueEntry) (int64, error) {
	entry.Ordinal = r.store.next("queue")
	r.store.queue[entry.Ordinal] = cloneEntry(entry)
	return entry.Ordinal, nil
}

func (r QueueRepo) Due(_ context.Context, tick int64) ([]mud.QueueEntry, error) {
	var out []mud.QueueEntry
	for _, e := range r.store.queue {
		if e.TickNumber <= tick {
			out = append(out, cloneEntry(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ordinal < out[j].Ordinal })
	return out, nil
}

func (r QueueRepo) Delete(_ context.Context, ordinal int64) error {
	delete(r.store.queue, ordinal)
	return nil
}

// EventRepo

type EventRepo struct {
	store *Store
}

func NewEventRepo(store *Store) EventRepo {
	return EventRepo{store: store}
}

func (r EventRepo) Append(_ context.Context, event mud.Event) (int64, error) {
	event.Ordinal = r.store.next("events")
	r.store.events[event.Ordinal] = cloneEvent(event)
	return event.Ordinal, nil
}

func (r EventRepo) Drain(_ context.Context, agentID string, limit int) ([]mud.Event, error) {
	var out []mud.Event
	for _, e := range r.store.events {
		if e.AgentID == agentID {
			out = append(out, cloneEvent(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ordinal < out[j].Ordinal })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	for _, e := range out {
		delete(r.store.events, e.Ordinal)
	}
	return out, nil
}

func (r EventRepo) DeleteOlderThan(_ context.Context, cutoffMs int64) (int64, error) {
	var n int64
	for ordinal, e := range r.store.events {
		if e.CreatedAt < cutoffMs {
			delete(r.store.events, ordinal)
			n++
		}
	}
	return n, nil
}

// LinkUsageRepo

type LinkUsageRepo struct {
	store *Store
}

func NewLinkUsageRepo(store *Store) LinkUsageRepo {
	return LinkUsageRepo{store: store}
}

func (r LinkUsageRepo) Append(_ context.Context, usage mud.LinkUsage) error {
	r.store.linkUsage = append(r.store.linkUsage, usage)
	return nil
}

func (r LinkUsageRepo) ListRecent(_ context.Context, agentID string, limit int) ([]mud.LinkUsage, error) {
	var out []mud.LinkUsage
	for _, u := range r.store.linkUsage {
		if u.AgentID == agentID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UsedAt != out[j].UsedAt {
			return out[i].UsedAt > out[j].UsedAt
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// WorldStateRepo

type WorldStateRepo struct {
	store *Store
}

func NewWorldStateRepo(store *Store) WorldStateRepo {
	return WorldStateRepo{store: store}
}

func (r WorldStateRepo) Get(_ context.Context) (mud.WorldState, error) {
	return r.store.world, nil
}

func (r WorldStateRepo) Put(_ context.Context, state mud.WorldState) error {
	r.store.world = state
	return nil
}
