package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"whiteout.ai/internal/logger"
	"whiteout.ai/internal/protocol"
	"whiteout.ai/internal/sim/loop"
	"whiteout.ai/internal/sim/rates"
)

type Options struct {
	// InputWindowTicks/InputMax bound INPUT messages per client.
	InputWindowTicks uint64
	InputMax         int
}

type Server struct {
	loop *loop.Loop
	log  *logrus.Entry
	opts Options

	upgrader websocket.Upgrader

	// playerTaken is set while a player client is connected; the session
	// has exactly one controllable player.
	playerTaken atomic.Bool
	clients     atomic.Int64
}

func NewServer(l *loop.Loop, opts Options, log logrus.FieldLogger) *Server {
	return &Server{
		loop: l,
		log:  logger.Component(log, "ws"),
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// Clients is the number of connected websocket clients.
func (s *Server) Clients() int64 { return s.clients.Load() }

type client struct {
	id   string
	role string
	out  chan *loop.Snapshot
	errs chan protocol.ErrorMsg
	log  *logrus.Entry
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		c := s.handshake(conn)
		if c == nil {
			return
		}
		s.clients.Add(1)
		defer s.clients.Add(-1)
		if c.role == protocol.RolePlayer {
			defer s.playerTaken.Store(false)
		}
		c.log.Info("client joined")

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		s.loop.Join() <- loop.ViewerJoin{ID: c.id, Out: c.out}

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case e := <-c.errs:
					if err := writeJSON(conn, e); err != nil {
						cancel()
						return
					}
				case snap, ok := <-c.out:
					if !ok {
						return
					}
					if err := writeJSON(conn, stateMessage(snap)); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		s.readLoop(ctx, conn, c)
		cancel()

		if c.role == protocol.RolePlayer {
			// Release held keys so the player stops when the client goes.
			s.send(s.loop.Inputs(), loop.Input{})
		}
		select {
		case s.loop.Leave() <- c.id:
		case <-time.After(time.Second):
		}
		c.log.Info("client left")
	}
}

func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, c *client) {
	var window rates.Window
	for {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if ctx.Err() != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			c.reject(protocol.ErrProtoBadRequest, "malformed json", 0)
			continue
		}
		if base.Type != protocol.TypeInput {
			c.reject(protocol.ErrProtoBadRequest, "unexpected message type "+base.Type, 0)
			continue
		}
		if c.role != protocol.RolePlayer {
			c.reject(protocol.ErrNoPermission, "viewers cannot send input", 0)
			continue
		}
		if base.ProtocolVersion != protocol.Version {
			c.reject(protocol.ErrProtoBadRequest, "bad protocol_version", 0)
			continue
		}
		if err := protocol.Validate(protocol.TypeInput, msg); err != nil {
			c.reject(protocol.ErrProtoBadRequest, err.Error(), 0)
			continue
		}
		var in protocol.InputMsg
		if err := json.Unmarshal(msg, &in); err != nil {
			c.reject(protocol.ErrProtoBadRequest, err.Error(), 0)
			continue
		}
		if ok, cd := window.Allow(s.loop.CurrentTick(), s.opts.InputWindowTicks, s.opts.InputMax); !ok {
			e := protocol.NewError(protocol.ErrRateLimit, "too many inputs")
			e.Seq = in.Seq
			e.CooldownTicks = cd
			c.push(e)
			continue
		}
		if !s.send(s.loop.Inputs(), inputFromMessage(in)) {
			return
		}
	}
}

func (s *Server) send(ch chan<- loop.Input, in loop.Input) bool {
	select {
	case ch <- in:
		return true
	case <-time.After(time.Second):
		s.log.Warn("input queue full, dropping input")
		return false
	}
}

func (c *client) reject(code, message string, seq uint64) {
	e := protocol.NewError(code, message)
	e.Seq = seq
	c.push(e)
}

func (c *client) push(e protocol.ErrorMsg) {
	select {
	case c.errs <- e:
	default:
		c.log.WithField("code", e.Code).Debug("error queue full")
	}
}

func (s *Server) handshake(conn *websocket.Conn) *client {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closeWith(conn, websocket.ClosePolicyViolation, "expected HELLO")
		return nil
	}
	if base.ProtocolVersion != protocol.Version {
		_ = writeJSON(conn, protocol.NewError(protocol.ErrProtoBadRequest, "bad protocol_version"))
		closeWith(conn, websocket.ClosePolicyViolation, "bad protocol_version")
		return nil
	}
	if err := protocol.Validate(protocol.TypeHello, msg); err != nil {
		_ = writeJSON(conn, protocol.NewError(protocol.ErrProtoBadRequest, err.Error()))
		closeWith(conn, websocket.ClosePolicyViolation, "invalid HELLO")
		return nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil
	}
	if hello.Role == protocol.RolePlayer && !s.playerTaken.CompareAndSwap(false, true) {
		_ = writeJSON(conn, protocol.NewError(protocol.ErrSessionBusy, "player slot taken"))
		closeWith(conn, websocket.CloseTryAgainLater, "player slot taken")
		return nil
	}

	maxQ := hello.MaxQueue
	if maxQ <= 0 {
		maxQ = 4
	}
	name := strings.TrimSpace(hello.ClientName)
	if name == "" {
		name = hello.Role
	}
	c := &client{
		id:   uuid.NewString(),
		role: hello.Role,
		out:  make(chan *loop.Snapshot, maxQ),
		errs: make(chan protocol.ErrorMsg, 16),
	}
	c.log = s.log.WithFields(logrus.Fields{"client": c.id, "role": c.role, "name": name})

	if err := writeJSON(conn, s.welcome(c)); err != nil {
		if c.role == protocol.RolePlayer {
			s.playerTaken.Store(false)
		}
		return nil
	}
	return c
}

func (s *Server) welcome(c *client) protocol.WelcomeMsg {
	cfg := s.loop.Config()
	r := s.loop.Rules()
	return protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       cfg.ID,
		ClientID:        c.id,
		Role:            c.role,
		Rules:           protocol.RulesRef{Name: r.Name, Digest: r.Digest()},
		WorldParams: protocol.WorldParams{
			TickRateHz:      cfg.TickRateHz,
			AIIntervalMs:    int(cfg.AIInterval.Milliseconds()),
			WorldHalfExtent: r.WorldHalfExtent,
			Seed:            cfg.Seed,
		},
		Buildings: r.BuildingTypes(),
	}
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
