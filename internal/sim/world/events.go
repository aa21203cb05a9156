package world

type EventType string

const (
	EventSpawn       EventType = "SPAWN"
	EventDespawn     EventType = "DESPAWN"
	EventHit         EventType = "HIT"
	EventDeath       EventType = "DEATH"
	EventReward      EventType = "REWARD"
	EventTransaction EventType = "TRANSACTION"
	EventDenied      EventType = "DENIED"
	EventGather      EventType = "GATHER"
	EventAssign      EventType = "ASSIGN"
)

// Event is a discrete domain notification for the presentation layer and
// the audit log. Only the fields relevant to Type are set.
type Event struct {
	Type       EventType      `json:"type"`
	EntityID   string         `json:"entity_id,omitempty"`
	Kind       Kind           `json:"kind,omitempty"`
	EntityType string         `json:"entity_type,omitempty"`
	Pos        *Vec2          `json:"pos,omitempty"`
	SourceID   string         `json:"source_id,omitempty"`
	Amount     int            `json:"amount,omitempty"`
	Health     int            `json:"health,omitempty"`
	Blocked    bool           `json:"blocked,omitempty"`
	Delta      map[string]int `json:"delta,omitempty"`
	Experience int            `json:"experience,omitempty"`
	Reason     string         `json:"reason,omitempty"`
}
