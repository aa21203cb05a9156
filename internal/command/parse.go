// Package command maps free text typed by a player onto game intents,
// tolerating typos in verbs and building names.
package command

import (
	"fmt"
	"strconv"
	"strings"
)

type Parser struct {
	registry *Registry
}

func New() *Parser {
	return &Parser{registry: DefaultRegistry()}
}

func (p *Parser) Parse(ctx Context, raw string) Command {
	cmd := Command{Raw: raw, Normalised: normalise(raw)}
	if cmd.Normalised == "" {
		cmd.Clarify = "Enter a command. Try help."
		return cmd
	}
	tokens := tokenise(cmd.Normalised)

	// A bare direction is a move.
	if len(tokens) == 1 {
		if d := mapDirection(tokens[0]); d != "" && d != "stop" {
			cmd.Verb, cmd.Args, cmd.Confidence = "move", []string{d}, 0.95
			return cmd
		}
	}

	best, alts := p.registry.match(tokens)
	if best.canonical == "" || best.score < 0.5 {
		cmd.Clarify = "Unknown command. Try: move, attack, interact, build, assign, gather, status, help."
		return cmd
	}
	if len(alts) > 0 && best.score-alts[0].score < 0.05 && alts[0].score > 0.65 {
		cmd.Verb = best.canonical
		cmd.Confidence = best.score
		cmd.Clarify = fmt.Sprintf("Did you mean %s or %s?", best.canonical, alts[0].canonical)
		return cmd
	}
	cmd.Verb = best.canonical
	cmd.Confidence = best.score

	def, _ := p.registry.def(cmd.Verb)
	args, argScore, clarify := resolveArgs(ctx, def, tokens[best.consumed:])
	if clarify != "" {
		cmd.Clarify = clarify
		cmd.Confidence = 0.45
		return cmd
	}
	cmd.Args = args
	if len(def.Args) > 0 && len(args) > 0 {
		cmd.Confidence = clamp(cmd.Confidence*0.75 + argScore*0.25)
	}
	if len(args) < def.MinArgs {
		cmd.Clarify = fmt.Sprintf("%s needs %d argument(s).", def.Canonical, def.MinArgs)
		cmd.Confidence = 0.42
	}
	return cmd
}

func resolveArgs(ctx Context, def Def, tokens []string) ([]string, float64, string) {
	if len(tokens) == 0 || len(def.Args) == 0 {
		return nil, 1, ""
	}
	var out []string
	score := 1.0
	i := 0
	for _, kind := range def.Args {
		if i >= len(tokens) {
			break
		}
		switch kind {
		case argDirection:
			d := mapDirection(tokens[i])
			if d == "" {
				return nil, 0, fmt.Sprintf("Which way is %q? Use up, down, left or right.", tokens[i])
			}
			out = append(out, d)
			i++

		case argNumber:
			v, ok := parseNumber(tokens[i])
			if !ok {
				return nil, 0, fmt.Sprintf("Expected a number, got %q.", tokens[i])
			}
			out = append(out, strconv.FormatFloat(v, 'f', -1, 64))
			i++

		case argEntity:
			id, ok := resolveEntity(tokens[i], ctx.Entities)
			if !ok {
				return nil, 0, fmt.Sprintf("No entity %q here.", tokens[i])
			}
			out = append(out, id)
			i++

		case argBuilding, argResource:
			vocab := ctx.Buildings
			what := "building"
			if kind == argResource {
				vocab, what = ctx.Resources, "resource"
			}
			// Names may span words ("lumber mill"); stop at the first number.
			end := i
			for end < len(tokens) {
				if _, isNum := parseNumber(tokens[end]); isNum {
					break
				}
				end++
			}
			if end == i {
				return nil, 0, fmt.Sprintf("Which %s?", what)
			}
			text := strings.Join(tokens[i:end], " ")
			name, s, tie := resolveName(text, vocab)
			if name == "" {
				return nil, 0, fmt.Sprintf("Unknown %s %q.", what, text)
			}
			if tie {
				return nil, 0, fmt.Sprintf("Which %s did you mean by %q?", what, text)
			}
			out = append(out, name)
			if s < score {
				score = s
			}
			i = end
		}
	}
	return out, score, ""
}

func resolveEntity(token string, ids []string) (string, bool) {
	for _, id := range ids {
		if strings.EqualFold(id, token) {
			return id, true
		}
	}
	return "", false
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
