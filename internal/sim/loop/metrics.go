package loop

import "whiteout.ai/internal/sim/world"

// Metrics is a read-only view of runtime signals, stored by the loop
// goroutine after every tick and read from HTTP handlers.
type Metrics struct {
	Tick     uint64         `json:"tick"`
	Entities map[string]int `json:"entities"`
	Viewers  int            `json:"viewers"`
	StepMS   float64        `json:"step_ms"`
	GameOver bool           `json:"game_over"`

	Kills    uint64 `json:"kills_total"`
	Hits     uint64 `json:"hits_total"`
	Gathers  uint64 `json:"gathers_total"`
	TxOK     uint64 `json:"transactions_ok_total"`
	TxDenied uint64 `json:"transactions_denied_total"`

	QueueDepths QueueDepths `json:"queue_depths"`
}

type QueueDepths struct {
	Inputs int `json:"inputs"`
	Join   int `json:"join"`
	Leave  int `json:"leave"`
}

func (l *Loop) storeMetrics(stepMS float64) {
	counts := map[string]int{}
	for k, n := range l.state.CountByKind() {
		counts[string(k)] = n
	}
	for _, k := range []world.Kind{world.KindPlayer, world.KindHostile, world.KindFollower, world.KindWorker, world.KindHarvestable, world.KindBuilding} {
		if _, ok := counts[string(k)]; !ok {
			counts[string(k)] = 0
		}
	}
	l.metrics.Store(Metrics{
		Tick:     l.tick.Load(),
		Entities: counts,
		Viewers:  len(l.viewers),
		StepMS:   stepMS,
		GameOver: l.gameOver,
		Kills:    l.combat.Kills,
		Hits:     l.combat.Hits,
		Gathers:  l.ai.Gathers,
		TxOK:     l.interact.OK,
		TxDenied: l.interact.Denied,
		QueueDepths: QueueDepths{
			Inputs: len(l.inputs),
			Join:   len(l.join),
			Leave:  len(l.leave),
		},
	})
}

func (l *Loop) Metrics() Metrics {
	if l == nil {
		return Metrics{}
	}
	m, _ := l.metrics.Load().(Metrics)
	return m
}
