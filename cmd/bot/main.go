package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"whiteout.ai/internal/logger"
	"whiteout.ai/internal/protocol"
)

func main() {
	var (
		url         = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name        = flag.String("name", "bot", "client name")
		interactive = flag.Bool("interactive", false, "read typed commands from stdin instead of autoplaying")
		attackRange = flag.Float64("attack_range", 2.5, "player attack range used by autoplay")
	)
	flag.Parse()

	log := logger.Component(logger.New(logger.Options{Output: os.Stderr}), "bot")

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		log.WithError(err).Fatal("dial")
	}
	defer conn.Close()

	c := &client{conn: conn, log: log}
	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		Role:            protocol.RolePlayer,
		ClientName:      *name,
		MaxQueue:        4,
	}
	if err := c.send(hello); err != nil {
		log.WithError(err).Fatal("send HELLO")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sess := &session{}
	var p *pilot
	if !*interactive {
		p = newPilot(*attackRange)
	}
	go func() {
		defer cancel()
		c.readLoop(ctx, sess, p)
	}()

	if *interactive {
		err := readCommands(ctx, os.Stdin, os.Stdout, sess, func(m protocol.InputMsg) error { return c.sendInput(m) })
		if err != nil {
			log.WithError(err).Warn("input")
		}
		cancel()
	}
	<-ctx.Done()
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
}

type client struct {
	conn *websocket.Conn
	log  *logrus.Entry

	mu   sync.Mutex
	seq  uint64
	last protocol.InputMsg
}

func (c *client) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *client) sendInput(m protocol.InputMsg) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	m.Seq = c.seq
	c.last = m
	return c.conn.WriteJSON(m)
}

// sendIfChanged keeps autoplay under the server's input rate limit.
func (c *client) sendIfChanged(m protocol.InputMsg) error {
	c.mu.Lock()
	same := c.seq > 0 && sameInput(c.last, m)
	c.mu.Unlock()
	if same && !m.Attack {
		return nil
	}
	return c.sendInput(m)
}

func (c *client) readLoop(ctx context.Context, sess *session, p *pilot) {
	for ctx.Err() == nil {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.log.WithError(err).Info("connection closed")
			return
		}
		base, err := protocol.DecodeBase(raw)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(raw, &w); err != nil {
				continue
			}
			sess.welcome(w)
			c.log.WithFields(logrus.Fields{
				"client_id": w.ClientID,
				"session":   w.SessionID,
				"rules":     w.Rules.Name,
				"tick_rate": w.WorldParams.TickRateHz,
			}).Info("WELCOME")

		case protocol.TypeState:
			var st protocol.StateMsg
			if err := json.Unmarshal(raw, &st); err != nil {
				continue
			}
			sess.state(&st)
			for _, ev := range st.Events {
				if ev.Type == "DENIED" || ev.Type == "DEATH" || ev.Type == "TRANSACTION" {
					c.log.WithFields(logrus.Fields{"tick": st.Tick, "event": ev.Type, "entity": ev.EntityID, "reason": ev.Reason}).Info("event")
				}
			}
			if st.GameOver {
				c.log.WithField("tick", st.Tick).Info("game over")
				return
			}
			if p != nil {
				if err := c.sendIfChanged(p.decide(&st)); err != nil {
					c.log.WithError(err).Warn("send INPUT")
					return
				}
			}

		case protocol.TypeError:
			var e protocol.ErrorMsg
			if err := json.Unmarshal(raw, &e); err == nil {
				c.log.WithFields(logrus.Fields{"code": e.Code, "seq": e.Seq}).Warn(e.Message)
			}
		}
	}
}
