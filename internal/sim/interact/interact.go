// Package interact resolves player-initiated economy actions: building
// transactions, construction, worker assignment and manual gathering.
// Every action validates first and then mutates; a failure leaves the
// ledger and the world untouched.
package interact

import (
	"errors"
	"math"

	"github.com/sirupsen/logrus"

	"whiteout.ai/internal/logger"
	"whiteout.ai/internal/sim/ledger"
	"whiteout.ai/internal/sim/mathx"
	"whiteout.ai/internal/sim/rules"
	"whiteout.ai/internal/sim/world"
)

var (
	ErrOutOfRange       = errors.New("out of range")
	ErrUnknownBuilding  = errors.New("unknown building type")
	ErrNoTransaction    = errors.New("no transaction")
	ErrNotConstructible = errors.New("building cannot be constructed")
	ErrOutOfBounds      = errors.New("position outside the ground plane")
	ErrCapacity         = errors.New("building is at capacity")
	ErrUnknownEntity    = errors.New("unknown entity")
	ErrFullHealth       = errors.New("already at full health")
	ErrPlayerDown       = errors.New("player is down")
)

const (
	saltRecruitAngle uint64 = iota + 101
	saltFollowDistance

	recruitOffset = 2.0
)

type Resolver struct {
	state  *world.State
	ledger *ledger.Ledger
	rules  *rules.Rules
	seed   int64
	log    *logrus.Entry

	OK     uint64
	Denied uint64
}

func New(s *world.State, l *ledger.Ledger, r *rules.Rules, seed int64, log logrus.FieldLogger) *Resolver {
	return &Resolver{state: s, ledger: l, rules: r, seed: seed, log: logger.Component(log, "interact")}
}

// Outcome is what a successful action changed.
type Outcome struct {
	BuildingID string
	Delta      map[string]int
	SpawnedID  string
	Healed     int
}

// Interact runs the transaction of the nearest building of buildingType
// within the player's interaction radius.
func (r *Resolver) Interact(buildingType string, tick uint64) (Outcome, error) {
	out, err := r.interact(buildingType, tick)
	return r.finish("interact", buildingType, out, err)
}

func (r *Resolver) interact(buildingType string, tick uint64) (Outcome, error) {
	var out Outcome
	p := r.state.PlayerEntity()
	if !p.Alive() {
		return out, ErrPlayerDown
	}
	def, ok := r.rules.Buildings[buildingType]
	if !ok {
		return out, ErrUnknownBuilding
	}
	tx := def.Transaction
	if tx == nil {
		return out, ErrNoTransaction
	}
	b := r.state.NearestMatching(p.Pos, r.rules.Player.InteractionRadius, func(e *world.Entity) bool {
		return e.Kind == world.KindBuilding && e.Type == buildingType
	})
	if b == nil {
		return out, ErrOutOfRange
	}
	out.BuildingID = b.ID
	if !r.ledger.CanAfford(tx.Cost) {
		return out, ledger.ErrInsufficientResources
	}

	switch tx.Kind {
	case rules.TxTrade:
		out.Delta = ledger.Combine(ledger.Negate(tx.Cost), tx.Payout)
		if err := r.ledger.Apply(out.Delta); err != nil {
			return out, err
		}
	case rules.TxHeal:
		if p.Health >= p.MaxHealth {
			return out, ErrFullHealth
		}
		out.Delta = ledger.Negate(tx.Cost)
		if err := r.ledger.Apply(out.Delta); err != nil {
			return out, err
		}
		out.Healed = p.Heal(tx.Heal)
	case rules.TxRecruit:
		kind, _ := world.ParseKind(tx.Spawn)
		tmpl, err := r.rules.NewEntity(kind, "", world.Vec2{})
		if err != nil {
			return out, err
		}
		// The entity number the spawn will receive keys its rolls.
		key := r.state.NextNum() + 1
		angle := 2 * math.Pi * mathx.Roll(r.seed, tick, key, saltRecruitAngle)
		tmpl.Pos = r.clamp(world.Vec2{
			X: p.Pos.X + recruitOffset*math.Sin(angle),
			Z: p.Pos.Z + recruitOffset*math.Cos(angle),
		})
		if kind == world.KindFollower {
			f := r.rules.Follower
			tmpl.FollowDistance = mathx.Lerp(f.FollowDistanceMin, f.FollowDistanceMax,
				mathx.Roll(r.seed, tick, key, saltFollowDistance))
		}
		out.Delta = ledger.Negate(tx.Cost)
		if err := r.ledger.Apply(out.Delta); err != nil {
			return out, err
		}
		out.SpawnedID = r.state.Spawn(tmpl).ID
	default:
		return out, ErrNoTransaction
	}
	return out, nil
}

// Build places a new building at pos after deducting its construction cost.
func (r *Resolver) Build(buildingType string, pos world.Vec2) (Outcome, error) {
	out, err := r.build(buildingType, pos)
	return r.finish("build", buildingType, out, err)
}

func (r *Resolver) build(buildingType string, pos world.Vec2) (Outcome, error) {
	var out Outcome
	if !r.state.PlayerEntity().Alive() {
		return out, ErrPlayerDown
	}
	def, ok := r.rules.Buildings[buildingType]
	if !ok {
		return out, ErrUnknownBuilding
	}
	if !def.Constructible() {
		return out, ErrNotConstructible
	}
	if h := r.rules.WorldHalfExtent; h > 0 && (math.Abs(pos.X) > h || math.Abs(pos.Z) > h) {
		return out, ErrOutOfBounds
	}
	tmpl, err := r.rules.NewEntity(world.KindBuilding, buildingType, pos)
	if err != nil {
		return out, err
	}
	out.Delta = ledger.Negate(def.Cost)
	if err := r.ledger.Apply(out.Delta); err != nil {
		return Outcome{}, err
	}
	b := r.state.Spawn(tmpl)
	out.BuildingID, out.SpawnedID = b.ID, b.ID
	return out, nil
}

// Assign moves a worker into a building's slot, releasing its previous one.
func (r *Resolver) Assign(workerID, buildingID string) (Outcome, error) {
	out, err := r.assign(workerID, buildingID)
	if err == nil {
		r.state.Emit(world.Event{Type: world.EventAssign, EntityID: workerID, SourceID: buildingID})
	}
	return r.finish("assign", buildingID, out, err)
}

func (r *Resolver) assign(workerID, buildingID string) (Outcome, error) {
	out := Outcome{BuildingID: buildingID}
	w := r.state.Get(workerID)
	if !w.Alive() || w.Kind != world.KindWorker {
		return out, ErrUnknownEntity
	}
	b := r.state.Get(buildingID)
	if !b.Alive() || b.Kind != world.KindBuilding {
		return out, ErrUnknownEntity
	}
	if w.AssignedTo == b.ID {
		return out, nil
	}
	if len(b.Workers) >= r.rules.Buildings[b.Type].Capacity {
		return out, ErrCapacity
	}
	if old := r.state.Get(w.AssignedTo); old != nil {
		old.Workers = without(old.Workers, w.ID)
	}
	b.Workers = append(b.Workers, w.ID)
	w.AssignedTo = b.ID
	return out, nil
}

// Gather credits the fixed manual-gather amount for resource.
func (r *Resolver) Gather(resource string) (Outcome, error) {
	var out Outcome
	var err error
	p := r.state.PlayerEntity()
	amount := r.rules.ManualGather[resource]
	switch {
	case !p.Alive():
		err = ErrPlayerDown
	case amount <= 0:
		err = ErrNoTransaction
	default:
		out.Delta = map[string]int{resource: amount}
		err = r.ledger.Apply(out.Delta)
	}
	if err == nil {
		r.state.Emit(world.Event{Type: world.EventGather, EntityID: p.ID, Delta: out.Delta})
	}
	return r.finish("gather", resource, out, err)
}

func (r *Resolver) finish(action, target string, out Outcome, err error) (Outcome, error) {
	fields := logrus.Fields{"action": action, "target": target}
	if err != nil {
		r.Denied++
		r.state.Emit(world.Event{Type: world.EventDenied, SourceID: out.BuildingID, EntityType: target, Reason: Reason(err)})
		r.log.WithFields(fields).WithError(err).Debug("denied")
		return Outcome{}, err
	}
	r.OK++
	if action == "interact" || action == "build" {
		r.state.Emit(world.Event{Type: world.EventTransaction, SourceID: out.BuildingID, EntityType: target, Delta: out.Delta, Amount: out.Healed})
	}
	fields["delta"] = out.Delta
	r.log.WithFields(fields).Debug("ok")
	return out, nil
}

// Reason maps an action error to the stable code carried in DENIED events
// and protocol errors.
func Reason(err error) string {
	switch {
	case errors.Is(err, ledger.ErrInsufficientResources):
		return "E_NO_RESOURCE"
	case errors.Is(err, ErrOutOfRange), errors.Is(err, ErrOutOfBounds):
		return "E_OUT_OF_RANGE"
	case errors.Is(err, ErrPlayerDown):
		return "E_GAME_OVER"
	case errors.Is(err, ErrUnknownBuilding), errors.Is(err, ErrUnknownEntity),
		errors.Is(err, ErrNoTransaction), errors.Is(err, ErrNotConstructible),
		errors.Is(err, ErrCapacity), errors.Is(err, ErrFullHealth):
		return "E_INVALID_TARGET"
	default:
		return "E_INTERNAL"
	}
}

func (r *Resolver) clamp(v world.Vec2) world.Vec2 {
	h := r.rules.WorldHalfExtent
	if h <= 0 {
		return v
	}
	return world.Vec2{X: mathx.Clamp(v.X, -h, h), Z: mathx.Clamp(v.Z, -h, h)}
}

func without(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
