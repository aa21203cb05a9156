package command

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

type phrase struct {
	canonical string
	alias     string
	tokens    []string
}

type Registry struct {
	defs    map[string]Def
	phrases []phrase
}

func NewRegistry() *Registry {
	return &Registry{defs: map[string]Def{}}
}

func (r *Registry) Register(d Def) {
	d.Canonical = normalise(d.Canonical)
	if d.Canonical == "" {
		return
	}
	r.defs[d.Canonical] = d
	r.phrases = append(r.phrases, phrase{canonical: d.Canonical, alias: d.Canonical, tokens: tokenise(d.Canonical)})
	for _, a := range d.Aliases {
		n := normalise(a)
		if n == "" {
			continue
		}
		r.phrases = append(r.phrases, phrase{canonical: d.Canonical, alias: n, tokens: tokenise(n)})
	}
}

func (r *Registry) def(canonical string) (Def, bool) {
	d, ok := r.defs[canonical]
	return d, ok
}

type candidate struct {
	canonical string
	consumed  int
	score     float64
}

func (r *Registry) match(tokens []string) (candidate, []candidate) {
	if len(tokens) == 0 {
		return candidate{}, nil
	}
	var cands []candidate
	for _, p := range r.phrases {
		consumed := min(len(tokens), len(p.tokens))
		prefix := strings.Join(tokens[:consumed], " ")

		if consumed == len(p.tokens) && prefix == p.alias {
			score := 1.0
			if p.alias != p.canonical {
				score = 0.97
			}
			cands = append(cands, candidate{canonical: p.canonical, consumed: consumed, score: score})
			continue
		}
		if len(p.tokens) == 1 && len(tokens[0]) >= 2 && strings.HasPrefix(p.alias, tokens[0]) {
			cands = append(cands, candidate{canonical: p.canonical, consumed: 1, score: 0.9})
			continue
		}
		if len(prefix) < 3 {
			continue
		}
		dist := levenshtein.ComputeDistance(prefix, p.alias)
		if dist > distanceLimit(len(p.alias)) {
			continue
		}
		score := 0.72 - 0.08*float64(dist)
		if p.alias != p.canonical {
			score += 0.03
		}
		cands = append(cands, candidate{canonical: p.canonical, consumed: consumed, score: score})
	}
	if len(cands) == 0 {
		return candidate{}, nil
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].score == cands[j].score {
			if cands[i].consumed == cands[j].consumed {
				return cands[i].canonical < cands[j].canonical
			}
			return cands[i].consumed > cands[j].consumed
		}
		return cands[i].score > cands[j].score
	})
	best := cands[0]
	var alts []candidate
	seen := map[string]bool{best.canonical: true}
	for _, c := range cands[1:] {
		if seen[c.canonical] {
			continue
		}
		seen[c.canonical] = true
		alts = append(alts, c)
	}
	return best, alts
}

func distanceLimit(length int) int {
	switch {
	case length <= 4:
		return 1
	case length <= 8:
		return 2
	default:
		return 3
	}
}

// resolveName fuzzy-matches text against a vocabulary. It returns the
// original vocabulary entry, the match score and whether the best match
// is ambiguous.
func resolveName(text string, vocab []string) (string, float64, bool) {
	text = normalise(text)
	if text == "" {
		return "", 0, false
	}
	type hit struct {
		name  string
		score float64
	}
	var hits []hit
	for _, v := range vocab {
		n := normalise(v)
		switch {
		case n == text:
			hits = append(hits, hit{v, 1})
		case len(text) >= 2 && strings.HasPrefix(n, text):
			hits = append(hits, hit{v, 0.88})
		case len(text) >= 3:
			d := levenshtein.ComputeDistance(text, n)
			if d <= distanceLimit(len(n)) {
				hits = append(hits, hit{v, 0.75 - 0.08*float64(d)})
			}
		}
	}
	if len(hits) == 0 {
		return "", 0, false
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score == hits[j].score {
			return hits[i].name < hits[j].name
		}
		return hits[i].score > hits[j].score
	})
	tie := len(hits) > 1 && hits[0].score < 1 && hits[0].score-hits[1].score < 0.01
	return hits[0].name, hits[0].score, tie
}

func DefaultRegistry() *Registry {
	r := NewRegistry()
	defs := []Def{
		{Canonical: "help", Aliases: []string{"h", "?", "commands"}},
		{Canonical: "status", Aliases: []string{"look", "st", "where am i"}},
		{Canonical: "move", Aliases: []string{"go", "walk", "run", "head"}, Args: []argKind{argDirection}, MinArgs: 1},
		{Canonical: "stop", Aliases: []string{"halt", "stand"}},
		{Canonical: "attack", Aliases: []string{"hit", "swing", "fight", "strike", "shoot"}},
		{Canonical: "interact", Aliases: []string{"use", "trade", "buy", "recruit", "visit"}, Args: []argKind{argBuilding}, MinArgs: 1},
		{Canonical: "build", Aliases: []string{"construct", "place", "erect"}, Args: []argKind{argBuilding, argNumber, argNumber}, MinArgs: 1},
		{Canonical: "assign", Aliases: []string{"send", "put"}, Args: []argKind{argEntity, argEntity}, MinArgs: 2},
		{Canonical: "gather", Aliases: []string{"collect", "chop", "forage", "harvest"}, Args: []argKind{argResource}, MinArgs: 1},
		{Canonical: "quit", Aliases: []string{"exit", "bye"}},
	}
	for _, d := range defs {
		r.Register(d)
	}
	return r
}
