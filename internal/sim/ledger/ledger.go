// Package ledger holds the player's named resource balances.
//
// Balances never go below zero: Apply is all-or-nothing and an overdraft
// leaves every balance untouched.
package ledger

import (
	"errors"
	"sort"
)

var ErrInsufficientResources = errors.New("insufficient resources")

type Ledger struct {
	balances map[string]int
}

func New(initial map[string]int) *Ledger {
	l := &Ledger{balances: map[string]int{}}
	for r, n := range initial {
		if r == "" || n <= 0 {
			continue
		}
		l.balances[r] = n
	}
	return l
}

func (l *Ledger) Get(resource string) int {
	return l.balances[resource]
}

// CanAfford reports whether every positive entry of cost is covered.
func (l *Ledger) CanAfford(cost map[string]int) bool {
	for r, c := range cost {
		if r == "" || c <= 0 {
			continue
		}
		if l.balances[r] < c {
			return false
		}
	}
	return true
}

// Apply adds every delta (positive or negative) or none of them.
func (l *Ledger) Apply(delta map[string]int) error {
	for r, d := range delta {
		if r == "" || d >= 0 {
			continue
		}
		if l.balances[r]+d < 0 {
			return ErrInsufficientResources
		}
	}
	for r, d := range delta {
		if r == "" || d == 0 {
			continue
		}
		l.balances[r] += d
		if l.balances[r] == 0 {
			delete(l.balances, r)
		}
	}
	return nil
}

// Balances returns a copy of all non-zero balances.
func (l *Ledger) Balances() map[string]int {
	out := make(map[string]int, len(l.balances))
	for r, n := range l.balances {
		out[r] = n
	}
	return out
}

// Resources lists resource names with a non-zero balance, sorted.
func (l *Ledger) Resources() []string {
	keys := make([]string, 0, len(l.balances))
	for r := range l.balances {
		keys = append(keys, r)
	}
	sort.Strings(keys)
	return keys
}

// Negate turns a cost table into a debit delta.
func Negate(cost map[string]int) map[string]int {
	out := make(map[string]int, len(cost))
	for r, c := range cost {
		if r == "" || c == 0 {
			continue
		}
		out[r] = -c
	}
	return out
}

// Combine sums several deltas into one.
func Combine(deltas ...map[string]int) map[string]int {
	out := map[string]int{}
	for _, d := range deltas {
		for r, n := range d {
			if r == "" {
				continue
			}
			out[r] += n
		}
	}
	for r, n := range out {
		if n == 0 {
			delete(out, r)
		}
	}
	return out
}
