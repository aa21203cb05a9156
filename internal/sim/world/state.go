package world

import (
	"fmt"
	"sort"

	"whiteout.ai/internal/sim/mathx"
)

// State is the authoritative set of live entities. It is owned by a single
// loop goroutine and is not safe for concurrent use.
type State struct {
	entities map[string]*Entity
	order    []string
	nextNum  uint64

	Player PlayerState

	events []Event
}

func NewState() *State {
	return &State{entities: map[string]*Entity{}}
}

var idPrefix = map[Kind]string{
	KindPlayer:      "P",
	KindHostile:     "H",
	KindFollower:    "F",
	KindWorker:      "W",
	KindHarvestable: "R",
	KindBuilding:    "B",
}

// Spawn assigns a fresh id to e, stores it and emits a SPAWN event.
func (s *State) Spawn(e Entity) *Entity {
	s.nextNum++
	e.Num = s.nextNum
	e.ID = fmt.Sprintf("%s%d", idPrefix[e.Kind], e.Num)
	e.Health = mathx.ClampInt(e.Health, 0, e.MaxHealth)
	p := &e
	s.entities[e.ID] = p
	s.order = append(s.order, e.ID)
	if e.Kind == KindPlayer {
		s.Player.EntityID = e.ID
		s.Player.Down = false
	}
	pos := e.Pos
	s.Emit(Event{Type: EventSpawn, EntityID: e.ID, Kind: e.Kind, EntityType: e.Type, Pos: &pos})
	return p
}

// Remove deletes the entity and emits DESPAWN. It returns false when the id
// is already gone, so a second removal is a no-op.
func (s *State) Remove(id string) bool {
	e, ok := s.entities[id]
	if !ok {
		return false
	}
	delete(s.entities, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if e.Kind == KindPlayer && s.Player.EntityID == id {
		s.Player.Down = true
	}
	s.Emit(Event{Type: EventDespawn, EntityID: id, Kind: e.Kind})
	return true
}

// Get returns the live entity or nil.
func (s *State) Get(id string) *Entity {
	return s.entities[id]
}

// PlayerEntity returns the live player or nil once it is down.
func (s *State) PlayerEntity() *Entity {
	if s.Player.EntityID == "" {
		return nil
	}
	return s.entities[s.Player.EntityID]
}

func (s *State) Len() int { return len(s.entities) }

// List returns live entities of the given kinds (all kinds when none are
// given) in creation order.
func (s *State) List(kinds ...Kind) []*Entity {
	out := make([]*Entity, 0, len(s.order))
	for _, id := range s.order {
		e := s.entities[id]
		if e == nil || !matchKind(e.Kind, kinds) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// IDs returns the ids of live entities of the given kinds in creation order.
func (s *State) IDs(kinds ...Kind) []string {
	out := make([]string, 0, len(s.order))
	for _, id := range s.order {
		if e := s.entities[id]; e != nil && matchKind(e.Kind, kinds) {
			out = append(out, id)
		}
	}
	return out
}

// Within returns live entities of the given kinds whose distance to p is at
// most radius, in creation order.
func (s *State) Within(p Vec2, radius float64, kinds ...Kind) []*Entity {
	var out []*Entity
	for _, id := range s.order {
		e := s.entities[id]
		if e == nil || e.Health <= 0 || !matchKind(e.Kind, kinds) {
			continue
		}
		if e.Pos.Dist(p) <= radius {
			out = append(out, e)
		}
	}
	return out
}

// NearestWithin returns the closest live entity of the given kinds within
// radius, or nil. Ties go to the older entity.
func (s *State) NearestWithin(p Vec2, radius float64, kinds ...Kind) *Entity {
	return s.NearestMatching(p, radius, func(e *Entity) bool { return matchKind(e.Kind, kinds) })
}

// NearestMatching is NearestWithin with an arbitrary filter.
func (s *State) NearestMatching(p Vec2, radius float64, keep func(*Entity) bool) *Entity {
	var best *Entity
	bestD := 0.0
	for _, id := range s.order {
		e := s.entities[id]
		if e == nil || e.Health <= 0 || (keep != nil && !keep(e)) {
			continue
		}
		d := e.Pos.Dist(p)
		if d > radius {
			continue
		}
		if best == nil || d < bestD {
			best, bestD = e, d
		}
	}
	return best
}

// CountByKind returns live entity counts per kind.
func (s *State) CountByKind() map[Kind]int {
	out := map[Kind]int{}
	for _, e := range s.entities {
		out[e.Kind]++
	}
	return out
}

func (s *State) Emit(ev Event) {
	s.events = append(s.events, ev)
}

// DrainEvents returns and clears the events emitted since the last drain.
func (s *State) DrainEvents() []Event {
	out := s.events
	s.events = nil
	return out
}

// Clones returns value copies of all live entities in creation order.
func (s *State) Clones() []Entity {
	out := make([]Entity, 0, len(s.order))
	for _, id := range s.order {
		if e := s.entities[id]; e != nil {
			out = append(out, e.clone())
		}
	}
	return out
}

// NextNum is the last assigned entity number (persisted in snapshots).
func (s *State) NextNum() uint64 { return s.nextNum }

// Restore replaces the state wholesale, e.g. from a snapshot. Entities keep
// their ids and numbers; no events are emitted. Health is clamped as in
// Spawn and entities restored at zero health are dropped.
func (s *State) Restore(ents []Entity, nextNum uint64, player PlayerState) {
	s.entities = make(map[string]*Entity, len(ents))
	s.order = s.order[:0]
	sorted := append([]Entity(nil), ents...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Num < sorted[j].Num })
	for i := range sorted {
		e := sorted[i].clone()
		if e.Num > nextNum {
			nextNum = e.Num
		}
		e.Health = mathx.ClampInt(e.Health, 0, e.MaxHealth)
		if e.Health <= 0 {
			continue
		}
		s.entities[e.ID] = &e
		s.order = append(s.order, e.ID)
	}
	s.nextNum = nextNum
	s.Player = player
	if _, ok := s.entities[player.EntityID]; player.EntityID != "" && !ok {
		s.Player.Down = true
	}
	s.events = nil
}

func matchKind(k Kind, kinds []Kind) bool {
	if len(kinds) == 0 {
		return true
	}
	for _, want := range kinds {
		if k == want {
			return true
		}
	}
	return false
}
