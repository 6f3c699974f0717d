// Package net accepts TCP connections and turns them into line-oriented
// sessions. The first line of a session must be the JSON auth frame;
// everything after is plain text commands. Sessions talk to the game loop
// only through channels.
package net

import (
	"net"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/saltmere/server/internal/config"
)

// Server accepts TCP connections and creates Sessions.
// New/dead sessions are communicated to the game loop via channels.
type Server struct {
	listener net.Listener
	nextID   atomic.Uint64
	active   atomic.Int32
	newConns chan *Session
	deadCh   chan uint64 // session IDs of dead sessions
	cfg      config.NetworkConfig
	log      *zap.Logger
	closeCh  chan struct{}
}

func NewServer(cfg config.NetworkConfig, log *zap.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", cfg.BindAddress)
	if err != nil {
		return nil, err
	}
	s := &Server{
		listener: ln,
		newConns: make(chan *Session, 64),
		deadCh:   make(chan uint64, 64),
		cfg:      cfg,
		log:      log,
		closeCh:  make(chan struct{}),
	}
	return s, nil
}

// AcceptLoop runs in its own goroutine. It accepts connections, enforces
// the session cap, and pushes new sessions onto the newConns channel.
func (s *Server) AcceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closeCh:
				return // server shutting down
			default:
			}
			s.log.Error("accept failed", zap.Error(err))
			continue
		}

		if int(s.active.Load()) >= s.cfg.MaxSessions {
			s.log.Warn("session cap reached, refusing connection",
				zap.String("remote", conn.RemoteAddr().String()))
			conn.SetWriteDeadline(time.Now().Add(time.Second))
			conn.Write([]byte("The harbor is full. Try again shortly.\r\n"))
			conn.Close()
			continue
		}

		id := s.nextID.Add(1)
		sess := NewSession(conn, id, s.cfg.InQueueSize, s.cfg.OutQueueSize,
			s.cfg.AuthTimeout, s.cfg.IdleTimeout, s.cfg.WriteTimeout, s.log)
		s.active.Add(1)
		sess.onClose = func(id uint64) {
			s.active.Add(-1)
			s.NotifyDead(id)
		}
		sess.Start()

		s.log.Info("session connected",
			zap.Uint64("session", id), zap.String("remote", sess.IP))

		select {
		case s.newConns <- sess:
		default:
			s.log.Warn("new connection queue full, refusing connection")
			sess.Close()
		}
	}
}

// NewSessions returns the channel of newly connected sessions.
func (s *Server) NewSessions() <-chan *Session {
	return s.newConns
}

// NotifyDead reports a dead session ID to the game loop.
func (s *Server) NotifyDead(sessionID uint64) {
	select {
	case s.deadCh <- sessionID:
	default:
	}
}

// DeadSessions returns the channel of dead session IDs.
func (s *Server) DeadSessions() <-chan uint64 {
	return s.deadCh
}

// ActiveSessions returns the live connection count.
func (s *Server) ActiveSessions() int {
	return int(s.active.Load())
}

// Shutdown stops accepting new connections.
func (s *Server) Shutdown() {
	close(s.closeCh)
	s.listener.Close()
}

// Addr returns the listener's address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}
