package game

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/saltmere/server/internal/core/system"
	"github.com/saltmere/server/internal/errs"
	"github.com/saltmere/server/internal/net"
	"github.com/saltmere/server/internal/world"
)

// maxCommandsPerTick bounds how many queued lines one session can burn in
// a single tick, so a paste cannot starve everyone else.
const maxCommandsPerTick = 4

// inputSystem accepts new sessions, reaps dead ones, and drains command
// queues. Phase 0 (Input).
type inputSystem struct {
	g *Game
}

func newInputSystem(g *Game) *inputSystem { return &inputSystem{g: g} }

func (s *inputSystem) Phase() system.Phase { return system.PhaseInput }

func (s *inputSystem) Update(_ time.Duration) {
	g := s.g

	// Accept new sessions.
	for {
		select {
		case sess := <-g.server.NewSessions():
			g.sessions[sess.ID] = sess
			g.limiters[sess.ID] = newLimiter(g.cfg.Network.CommandsPerSecond)
		default:
			goto doneNew
		}
	}
doneNew:

	// Reap sessions the network layer reported dead.
	for {
		select {
		case id := <-g.server.DeadSessions():
			if sess, ok := g.sessions[id]; ok {
				g.handleDisconnect(sess)
			}
		default:
			goto doneDead
		}
	}
doneDead:

	for _, sess := range g.sessions {
		if sess.IsClosed() {
			// Drain whatever arrived before the close, then clean up.
			for i := 0; i < maxCommandsPerTick; i++ {
				select {
				case line := <-sess.InQueue:
					g.handleLine(sess, line)
				default:
					goto doneClosing
				}
			}
		doneClosing:
			sess.FlushOutput()
			g.handleDisconnect(sess)
			continue
		}

	drain:
		for i := 0; i < maxCommandsPerTick; i++ {
			select {
			case line := <-sess.InQueue:
				g.handleLine(sess, line)
			default:
				break drain
			}
		}
	}
}

// handleLine routes one inbound line by session state.
func (g *Game) handleLine(sess *net.Session, line string) {
	switch sess.State() {
	case net.StateAuth:
		g.handleAuth(sess, line)
	case net.StatePlaying:
		g.handleCommand(sess, line)
	default:
		// Disconnecting: command side effects only, no new state.
		g.handleCommand(sess, line)
	}
}

// handleAuth processes the mandatory first line of a session.
func (g *Game) handleAuth(sess *net.Session, line string) {
	frame, err := net.ParseAuthFrame(line)
	if err != nil {
		sess.Send("auth_failed " + errs.Message(err))
		sess.FlushOutput()
		sess.Close()
		return
	}

	normalized := world.NormalizeName(frame.Name)
	if normalized == "" || len(normalized) > 24 {
		sess.Send("auth_failed invalid name")
		sess.FlushOutput()
		sess.Close()
		return
	}
	// Canonical display form, so the persisted key is case-insensitive.
	name := upperFirst(normalized)

	if err := g.verifier.Verify(g.ctx, normalized, frame.Token); err != nil {
		if errors.Is(err, errs.ErrTransient) {
			sess.Send("auth_failed try again shortly")
		} else {
			sess.Send("auth_failed " + errs.Message(err))
		}
		sess.FlushOutput()
		sess.Close()
		return
	}

	if g.registry.ByName(name) != nil {
		sess.Send("auth_failed already connected")
		sess.FlushOutput()
		sess.Close()
		return
	}

	p, err := g.players.Load(g.ctx, name)
	if err != nil {
		g.log.Error("player load failed", zap.String("player", name), zap.Error(err))
		sess.Send("auth_failed try again shortly")
		sess.FlushOutput()
		sess.Close()
		return
	}
	fresh := p == nil
	if fresh {
		p = world.NewPlayer(name)
		p.Dirty = true
	}
	if g.catalog.Rooms.Get(p.RoomID) == nil {
		p.RoomID = world.StartRoom
	}
	p.SessionID = sess.ID
	p.Admin = g.isAdmin(normalized)

	if !g.registry.Add(p) {
		sess.Send("auth_failed already connected")
		sess.FlushOutput()
		sess.Close()
		return
	}

	sess.PlayerName = name
	sess.SetState(net.StatePlaying)
	sess.Send(net.EncodeAuthResult(name, fresh))
	if fresh {
		sess.Send("You wake in the common room of the Black Anchor, salt in your hair.")
	} else {
		sess.Send("Welcome back to " + g.cfg.Server.Name + ", " + name + ".")
	}
	g.log.Info("player authenticated",
		zap.Uint64("session", sess.ID), zap.String("player", name), zap.Bool("new", fresh))

	g.enterRoom(p, p.RoomID, "login")
}

// handleDisconnect saves and removes the session's player, then drops the
// session from the table. Safe against double calls.
func (g *Game) handleDisconnect(sess *net.Session) {
	if _, ok := g.sessions[sess.ID]; !ok {
		return
	}
	delete(g.sessions, sess.ID)
	delete(g.limiters, sess.ID)
	sess.Close()

	p := g.registry.BySession(sess.ID)
	if p == nil {
		return
	}
	g.combat.LeaveCombat(p.RoomID, p.Name)
	if err := g.players.Save(g.ctx, p); err != nil {
		g.log.Error("disconnect save failed", zap.String("player", p.Name), zap.Error(err))
	} else {
		p.Dirty = false
	}
	g.registry.Remove(p)
	g.broadcastRoom(p.RoomID, p.Name+" departs.")
	g.log.Info("player disconnected",
		zap.Uint64("session", sess.ID), zap.String("player", p.Name))
}

func (g *Game) isAdmin(name string) bool {
	for _, a := range g.cfg.Server.Admins {
		if world.NormalizeName(a) == name {
			return true
		}
	}
	return false
}
