package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Role            string `json:"role"`
	ClientName      string `json:"client_name,omitempty"`
	// MaxQueue bounds buffered STATE messages; older ones are replaced.
	MaxQueue int `json:"max_queue,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	SessionID       string      `json:"session_id"`
	ClientID        string      `json:"client_id"`
	Role            string      `json:"role"`
	Rules           RulesRef    `json:"rules"`
	WorldParams     WorldParams `json:"world_params"`
	Buildings       []string    `json:"buildings,omitempty"`
}

type RulesRef struct {
	Name   string `json:"name"`
	Digest string `json:"digest"`
}

type WorldParams struct {
	TickRateHz      int     `json:"tick_rate_hz"`
	AIIntervalMs    int     `json:"ai_interval_ms"`
	WorldHalfExtent float64 `json:"world_half_extent"`
	Seed            int64   `json:"seed"`
}

// INPUT (player -> server). One message carries the full held movement
// state plus at most one discrete action per kind.
type InputMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	Seq             uint64     `json:"seq,omitempty"`
	Movement        MovementIn `json:"movement"`
	Attack          bool       `json:"attack,omitempty"`
	Interact        string     `json:"interact,omitempty"`
	Build           *BuildIn   `json:"build,omitempty"`
	Assign          *AssignIn  `json:"assign,omitempty"`
	Gather          string     `json:"gather,omitempty"`
}

type MovementIn struct {
	Up    bool `json:"up,omitempty"`
	Down  bool `json:"down,omitempty"`
	Left  bool `json:"left,omitempty"`
	Right bool `json:"right,omitempty"`
}

type BuildIn struct {
	Type string  `json:"type"`
	X    float64 `json:"x"`
	Z    float64 `json:"z"`
}

type AssignIn struct {
	WorkerID   string `json:"worker_id"`
	BuildingID string `json:"building_id"`
}

// STATE (server -> client): the settled world after one tick.
type StateMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	Tick            uint64         `json:"tick"`
	NowMs           int64          `json:"now_ms"`
	Entities        []EntityState  `json:"entities"`
	Resources       map[string]int `json:"resources"`
	Player          PlayerState    `json:"player"`
	GameOver        bool           `json:"game_over,omitempty"`
	Events          []Event        `json:"events,omitempty"`
	Digest          string         `json:"digest,omitempty"`
}

type EntityState struct {
	ID        string     `json:"id"`
	Kind      string     `json:"kind"`
	Type      string     `json:"type,omitempty"`
	Pos       [2]float64 `json:"pos"`
	Facing    float64    `json:"facing"`
	Health    int        `json:"health"`
	MaxHealth int        `json:"max_health"`
	AIState   string     `json:"ai_state,omitempty"`
	// Workers is set for buildings, AssignedTo for workers.
	Workers    []string `json:"workers,omitempty"`
	AssignedTo string   `json:"assigned_to,omitempty"`
}

type PlayerState struct {
	EntityID     string `json:"entity_id,omitempty"`
	Health       int    `json:"health"`
	MaxHealth    int    `json:"max_health"`
	Experience   int    `json:"experience"`
	Invulnerable bool   `json:"invulnerable,omitempty"`
}

type Event struct {
	Type       string         `json:"type"`
	EntityID   string         `json:"entity_id,omitempty"`
	Kind       string         `json:"kind,omitempty"`
	EntityType string         `json:"entity_type,omitempty"`
	Pos        *[2]float64    `json:"pos,omitempty"`
	SourceID   string         `json:"source_id,omitempty"`
	Amount     int            `json:"amount,omitempty"`
	Health     int            `json:"health,omitempty"`
	Blocked    bool           `json:"blocked,omitempty"`
	Delta      map[string]int `json:"delta,omitempty"`
	Experience int            `json:"experience,omitempty"`
	Reason     string         `json:"reason,omitempty"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message,omitempty"`
	Seq             uint64 `json:"seq,omitempty"`
	CooldownTicks   uint64 `json:"cooldown_ticks,omitempty"`
}

func NewError(code, message string) ErrorMsg {
	return ErrorMsg{Type: TypeError, ProtocolVersion: Version, Code: code, Message: message}
}
