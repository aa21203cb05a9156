package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"whiteout.ai/internal/command"
	"whiteout.ai/internal/protocol"
)

// session tracks what the typed-command parser needs from the server.
type session struct {
	mu        sync.Mutex
	buildings []string
	last      *protocol.StateMsg
	held      protocol.MovementIn
}

func (s *session) welcome(w protocol.WelcomeMsg) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buildings = append([]string(nil), w.Buildings...)
}

func (s *session) state(st *protocol.StateMsg) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = st
}

func (s *session) parseContext() command.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx := command.Context{Buildings: s.buildings}
	if s.last == nil {
		return ctx
	}
	for r := range s.last.Resources {
		ctx.Resources = append(ctx.Resources, r)
	}
	sort.Strings(ctx.Resources)
	for _, e := range s.last.Entities {
		if e.Kind == "worker" || e.Kind == "building" {
			ctx.Entities = append(ctx.Entities, e.ID)
		}
	}
	return ctx
}

func (s *session) status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return "no state yet"
	}
	st := s.last
	keys := make([]string, 0, len(st.Resources))
	for k := range st.Resources {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, st.Resources[k]))
	}
	return fmt.Sprintf("tick=%d hp=%d/%d xp=%d resources[%s] game_over=%v",
		st.Tick, st.Player.Health, st.Player.MaxHealth, st.Player.Experience, strings.Join(parts, " "), st.GameOver)
}

// readCommands turns typed lines into INPUT messages until in is exhausted,
// ctx ends, or the player types quit.
func readCommands(ctx context.Context, in io.Reader, out io.Writer, s *session, send func(protocol.InputMsg) error) error {
	p := command.New()
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		cmd := p.Parse(s.parseContext(), line)
		if cmd.Clarify != "" {
			fmt.Fprintln(out, cmd.Clarify)
			continue
		}
		switch cmd.Verb {
		case "quit":
			return nil
		case "help":
			fmt.Fprintln(out, "commands: move <dir>, stop, attack, interact <building>, build <type> [x z], assign <worker> <building>, gather <resource>, status, quit")
			continue
		case "status":
			fmt.Fprintln(out, s.status())
			continue
		}

		s.mu.Lock()
		held := s.held
		s.mu.Unlock()
		msg, ok := command.Apply(cmd, held)
		if !ok {
			continue
		}
		s.mu.Lock()
		s.held = msg.Movement
		s.mu.Unlock()
		if err := send(msg); err != nil {
			return err
		}
	}
	return sc.Err()
}
