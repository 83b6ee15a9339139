// Package mud contains the world model domain types: agents, templates,
// instances, permission rules, and the interaction rule language.
package mud

import "time"

type Kind string

const (
	KindNode  Kind = "node"
	KindLink  Kind = "link"
	KindThing Kind = "thing"
)

func (k Kind) Valid() bool {
	return k == KindNode || k == KindLink || k == KindThing
}

// SystemType marks instances whose behaviour is wired into the runtime
// rather than into a template.
type SystemType string

const (
	SystemNone       SystemType = ""
	SystemRandomLink SystemType = "random_link"
	SystemLinkIndex  SystemType = "link_index"
)

type ContainerType string

const (
	ContainerNone     ContainerType = ""
	ContainerAgent    ContainerType = "agent"
	ContainerInstance ContainerType = "instance"
)

// ContainerRef locates an instance: inside an agent's inventory, inside
// another instance, or top-level (nodes only).
type ContainerRef struct {
	Type ContainerType
	ID   string
}

func (c ContainerRef) IsTopLevel() bool { return c.Type == ContainerNone }

func InAgent(id string) ContainerRef    { return ContainerRef{Type: ContainerAgent, ID: id} }
func InInstance(id string) ContainerRef { return ContainerRef{Type: ContainerInstance, ID: id} }

type EventType string

const (
	EventActionResult EventType = "action_result"
	EventChat         EventType = "chat"
	EventBroadcast    EventType = "broadcast"
	EventSystem       EventType = "system"
)

// World limits. The timing and budget constants are defaults; the config
// package exposes them as tunables.
const (
	MaxAP                  = 4
	MaxBuyAPPerTick        = 20
	MaxBuyAPPerCall        = 10
	MaxContainmentDepth    = 5
	MaxInteractionsPerTick = 4
	MaxEventsPerEnvelope   = 200
	DefaultTickInterval    = 10 * time.Second
	DefaultIdleTimeout     = 5 * time.Minute
	DefaultEventTTL        = 10 * time.Minute
	DefaultPerceptionCap   = 20
	MinPerceptionCap       = 1
	MaxPerceptionCap       = 100
)

// Stock home-node copy, shared by signup and the home reset verb.
const (
	HomeShortDescription = "a quiet room"
	HomeLongDescription  = "A small private room. A shimmering portal hums in one corner, and a glowing directory floats at eye level."
)

// Agent is an authenticated world inhabitant. CurrentNodeID == "" means
// limbo; the agent re-enters at its home node on the next request.
type Agent struct {
	ID                  string
	Username            string
	PasswordHash        []byte
	Token               string
	CurrentNodeID       string
	HomeNodeID          string
	AP                  int
	PurchasedAPThisTick int
	ShortDescription    string
	LongDescription     string
	PerceptionAgents    int
	PerceptionLinks     int
	PerceptionThings    int
	SeeBroadcasts       bool
	LastActiveAt        int64 // unix ms
}

func (a Agent) InLimbo() bool { return a.CurrentNodeID == "" }

// Template is the user-authored blueprint instances are created from.
type Template struct {
	ID                 string
	OwnerID            string
	Name               string
	Kind               Kind
	ShortDescription   string
	LongDescription    string
	Fields             map[string]any
	DefaultPermissions map[string]PermRule
	Interactions       []Rule
}

// Instance is a live entity. TemplateID == "" together with IsVoid marks
// a voided instance (template deleted, kept only for cascades); system
// instances are templateless without being void.
type Instance struct {
	ID               string
	TemplateID       string
	Kind             Kind
	ShortDescription string
	LongDescription  string
	Fields           map[string]any
	Permissions      map[string]PermRule
	Container        ContainerRef
	IsVoid           bool
	IsDestroyed      bool
	SystemType       SystemType
	InteractionsUsed int
}

// Live reports whether the instance participates in queries: neither
// voided nor destroyed.
func (i Instance) Live() bool { return !i.IsVoid && !i.IsDestroyed }

// QueueEntry is one deferred action awaiting its target tick.
type QueueEntry struct {
	Ordinal    int64
	AgentID    string
	Verb       string
	Params     map[string]any
	TickNumber int64
	CreatedAt  int64 // unix ms
}

// Event is one row of an agent's undelivered backlog. Reads are
// destructive: an event is returned by at most one envelope.
type Event struct {
	Ordinal   int64
	AgentID   string
	Type      EventType
	Data      map[string]any
	CreatedAt int64 // unix ms
}

// LinkUsage records one successful travel hop, surfaced by the link
// index system thing.
type LinkUsage struct {
	ID       string
	AgentID  string
	LinkID   string
	NodeID   string
	NodeName string
	UsedAt   int64 // unix ms
}

type WorldState struct {
	TickNumber int64
	LastTickAt int64 // unix ms
}

func ClampPerception(n int) int {
	if n < MinPerceptionCap {
		return MinPerceptionCap
	}
	if n > MaxPerceptionCap {
		return MaxPerceptionCap
	}
	return n
}
