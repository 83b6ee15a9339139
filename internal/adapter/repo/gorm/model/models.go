// Package model holds the persisted row shapes. JSON-valued columns
// (fields, permissions, interactions, params, event data) are stored as
// jsonb bytes and decoded at the repo boundary.
package model

type Agent struct {
	ID                  string `gorm:"primaryKey"`
	Username            string `gorm:"uniqueIndex"`
	PasswordHash        []byte
	Token               string `gorm:"index"`
	CurrentNodeID       string `gorm:"index"`
	HomeNodeID          string `gorm:"index"`
	Ap                  int
	PurchasedApThisTick int
	ShortDescription    string
	LongDescription     string
	PerceptionAgents    int
	PerceptionLinks     int
	PerceptionThings    int
	SeeBroadcasts       bool
	LastActiveAt        int64
}

type Template struct {
	ID                 string `gorm:"primaryKey"`
	OwnerID            string `gorm:"index"`
	Name               string
	Kind               string
	ShortDescription   string
	LongDescription    string
	Fields             []byte `gorm:"type:jsonb"`
	DefaultPermissions []byte `gorm:"type:jsonb"`
	Interactions       []byte `gorm:"type:jsonb"`
}

type Instance struct {
	ID               string `gorm:"primaryKey"`
	TemplateID       string `gorm:"index"`
	Kind             string
	ShortDescription string
	LongDescription  string
	Fields           []byte `gorm:"type:jsonb"`
	Permissions      []byte `gorm:"type:jsonb"`
	ContainerType    string `gorm:"index:idx_instances_container"`
	ContainerID      string `gorm:"index:idx_instances_container"`
	IsVoid           bool
	IsDestroyed      bool
	SystemType       string
	InteractionsUsed int
}

type QueueEntry struct {
	Ordinal    int64 `gorm:"primaryKey;autoIncrement:false"`
	AgentID    string
	Verb       string
	Params     []byte `gorm:"type:jsonb"`
	TickNumber int64  `gorm:"index:idx_queue_tick_ordinal"`
	CreatedAt  int64
}

type Event struct {
	Ordinal   int64  `gorm:"primaryKey;autoIncrement:false"`
	AgentID   string `gorm:"index:idx_events_agent_ordinal"`
	Type      string
	Data      []byte `gorm:"type:jsonb"`
	CreatedAt int64
}

type LinkUsage struct {
	ID       string `gorm:"primaryKey"`
	AgentID  string `gorm:"index"`
	LinkID   string
	NodeID   string
	NodeName string
	UsedAt   int64
}

type WorldState struct {
	Key        string `gorm:"primaryKey"`
	TickNumber int64
	LastTickAt int64
}

type Sequence struct {
	Name  string `gorm:"primaryKey"`
	Value int64
}
