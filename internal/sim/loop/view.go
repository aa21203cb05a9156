package loop

import (
	"time"

	"whiteout.ai/internal/sim/world"
)

// Snapshot is the immutable, fully settled view published after each tick.
// Readers must not modify it.
type Snapshot struct {
	SessionID string        `json:"session_id"`
	Tick      uint64        `json:"tick"`
	Now       time.Duration `json:"now"`

	Entities  []world.Entity `json:"entities"`
	Resources map[string]int `json:"resources"`

	PlayerID         string `json:"player_id,omitempty"`
	PlayerHealth     int    `json:"player_health"`
	PlayerMaxHealth  int    `json:"player_max_health"`
	PlayerExperience int    `json:"player_experience"`
	Invulnerable     bool   `json:"invulnerable,omitempty"`
	GameOver         bool   `json:"game_over,omitempty"`

	Events []world.Event `json:"events,omitempty"`
	Digest string        `json:"digest"`
}

func (l *Loop) buildSnapshot(tick uint64, events []world.Event, digest string) *Snapshot {
	s := &Snapshot{
		SessionID:        l.cfg.ID,
		Tick:             tick,
		Now:              l.now,
		Entities:         l.state.Clones(),
		Resources:        l.ledger.Balances(),
		PlayerID:         l.state.Player.EntityID,
		PlayerExperience: l.state.Player.Experience,
		Invulnerable:     l.state.Player.Invulnerable(l.now),
		GameOver:         l.gameOver,
		Events:           events,
		Digest:           digest,
	}
	if p := l.state.PlayerEntity(); p != nil {
		s.PlayerHealth = p.Health
		s.PlayerMaxHealth = p.MaxHealth
	}
	return s
}

// Entity finds an entity in the snapshot by id.
func (s *Snapshot) Entity(id string) (world.Entity, bool) {
	for _, e := range s.Entities {
		if e.ID == id {
			return e, true
		}
	}
	return world.Entity{}, false
}
