// Package rates implements a fixed-window counter keyed on simulation ticks.
package rates

// Window tracks one fixed window of admitted requests.
type Window struct {
	Start uint64
	Count int
}

// Allow admits one request at nowTick. When the window is exhausted it
// returns false and the number of ticks until the window resets.
func (w *Window) Allow(nowTick uint64, window uint64, max int) (ok bool, cooldownTicks uint64) {
	if window == 0 || max <= 0 {
		return true, 0
	}
	if nowTick < w.Start || nowTick-w.Start >= window {
		w.Start = nowTick
		w.Count = 0
	}
	w.Count++
	if w.Count <= max {
		return true, 0
	}
	return false, (w.Start + window) - nowTick
}
