package loop

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
)

type hashWriter interface {
	Write(p []byte) (n int, err error)
}

func writeU64(h hashWriter, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func writeI64(h hashWriter, tmp *[8]byte, v int64) { writeU64(h, tmp, uint64(v)) }

func writeF64(h hashWriter, tmp *[8]byte, v float64) { writeU64(h, tmp, math.Float64bits(v)) }

func writeStr(h hashWriter, tmp *[8]byte, s string) {
	writeU64(h, tmp, uint64(len(s)))
	h.Write([]byte(s))
}

func writeBool(h hashWriter, b bool) {
	if b {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
}

// Digest is a SHA-256 over the simulated state: simulated time, entities in
// creation order, ledger balances and player bookkeeping. Two sessions with
// equal digests behave identically from here on.
func (l *Loop) Digest() string {
	h := sha256.New()
	var tmp [8]byte

	writeU64(h, &tmp, uint64(l.cfg.Seed))
	writeI64(h, &tmp, int64(l.now))
	writeBool(h, l.gameOver)
	writeU64(h, &tmp, l.state.NextNum())

	for _, e := range l.state.List() {
		writeStr(h, &tmp, e.ID)
		writeU64(h, &tmp, e.Num)
		writeStr(h, &tmp, string(e.Kind))
		writeStr(h, &tmp, e.Type)
		writeF64(h, &tmp, e.Pos.X)
		writeF64(h, &tmp, e.Pos.Z)
		writeF64(h, &tmp, e.Facing)
		writeI64(h, &tmp, int64(e.Health))
		writeI64(h, &tmp, int64(e.MaxHealth))
		writeStr(h, &tmp, string(e.AI))
		writeI64(h, &tmp, int64(e.LastAction))
		writeBool(h, e.Acted)
		writeI64(h, &tmp, int64(e.NextThink))
		writeF64(h, &tmp, e.WanderTarget.X)
		writeF64(h, &tmp, e.WanderTarget.Z)
		writeBool(h, e.HasWanderTarget)
		writeF64(h, &tmp, e.FollowDistance)
		writeStr(h, &tmp, e.AssignedTo)
		writeU64(h, &tmp, uint64(len(e.Workers)))
		for _, w := range e.Workers {
			writeStr(h, &tmp, w)
		}
	}

	for _, k := range l.ledger.Resources() {
		writeStr(h, &tmp, k)
		writeI64(h, &tmp, int64(l.ledger.Get(k)))
	}

	p := l.state.Player
	writeStr(h, &tmp, p.EntityID)
	writeI64(h, &tmp, int64(p.Experience))
	writeI64(h, &tmp, int64(p.InvulnerableUntil))
	writeBool(h, p.Down)

	return hex.EncodeToString(h.Sum(nil))
}
