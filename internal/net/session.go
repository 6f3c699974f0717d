package net

import (
	"bufio"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// SessionState tracks where a connection is in its lifecycle.
type SessionState int32

const (
	// StateAuth: connected, waiting for the auth frame.
	StateAuth SessionState = iota
	// StatePlaying: authenticated, commands flow to the game loop.
	StatePlaying
	// StateDisconnecting: closing down.
	StateDisconnecting
)

// maxLineLen caps one inbound line. Anything longer kills the session.
const maxLineLen = 4096

// Session is a single client connection. Network I/O runs in dedicated
// goroutines; game state is accessed only from the game loop.
type Session struct {
	ID   uint64
	conn net.Conn

	state atomic.Int32 // SessionState

	InQueue  chan string // game loop reads lines from here
	OutQueue chan string // writer goroutine reads from here

	IP         string
	PlayerName string // set by the game loop after auth

	outBuf []string // buffered lines, flushed once per tick (game loop only)

	authTimeout  time.Duration
	idleTimeout  time.Duration
	writeTimeout time.Duration

	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
	onClose   func(id uint64)

	log *zap.Logger
}

func NewSession(conn net.Conn, id uint64, inSize, outSize int, authTimeout, idleTimeout, writeTimeout time.Duration, log *zap.Logger) *Session {
	s := &Session{
		ID:           id,
		conn:         conn,
		InQueue:      make(chan string, inSize),
		OutQueue:     make(chan string, outSize),
		IP:           conn.RemoteAddr().String(),
		authTimeout:  authTimeout,
		idleTimeout:  idleTimeout,
		writeTimeout: writeTimeout,
		closeCh:      make(chan struct{}),
		log:          log.With(zap.Uint64("session", id)),
	}
	s.state.Store(int32(StateAuth))
	return s
}

func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

func (s *Session) SetState(st SessionState) {
	s.state.Store(int32(st))
}

// Start launches the reader and writer goroutines.
func (s *Session) Start() {
	go s.readLoop()
	go s.writeLoop()
}

// Send buffers a line for the client. Nothing is written to TCP until
// FlushOutput runs at the output phase of the tick.
// Called only from the game loop goroutine.
func (s *Session) Send(line string) {
	if s.closed.Load() {
		return
	}
	s.outBuf = append(s.outBuf, line)
}

// FlushOutput drains the output buffer to OutQueue for the writeLoop
// goroutine. Non-blocking: a full OutQueue disconnects the slow client.
func (s *Session) FlushOutput() {
	for _, line := range s.outBuf {
		select {
		case s.OutQueue <- line:
		default:
			s.log.Warn("output queue full, dropping slow session")
			s.Close()
			s.outBuf = s.outBuf[:0]
			return
		}
	}
	s.outBuf = s.outBuf[:0]
}

// Close shuts the session down. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.SetState(StateDisconnecting)
		close(s.closeCh)
		s.conn.Close()
		if s.onClose != nil {
			s.onClose(s.ID)
		}
	})
}

func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// readLoop reads lines from the connection and pushes them onto InQueue
// for the game loop. The read deadline is the auth timeout until the
// session authenticates, then the idle timeout.
func (s *Session) readLoop() {
	defer s.Close()

	scanner := bufio.NewScanner(s.conn)
	scanner.Buffer(make([]byte, 0, 512), maxLineLen)

	for {
		select {
		case <-s.closeCh:
			return
		default:
		}

		deadline := s.idleTimeout
		if s.State() == StateAuth {
			deadline = s.authTimeout
		}
		if deadline > 0 {
			s.conn.SetReadDeadline(time.Now().Add(deadline))
		}

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil && !s.closed.Load() {
				s.log.Debug("read error", zap.Error(err))
			}
			return
		}

		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" {
			continue
		}

		// Block until the game loop drains the queue. The goroutine is
		// per-session, so only this client waits.
		select {
		case s.InQueue <- line:
		case <-s.closeCh:
			return
		}
	}
}

// writeLoop reads lines from OutQueue and writes them to the connection.
func (s *Session) writeLoop() {
	defer s.Close()

	w := bufio.NewWriter(s.conn)
	for {
		select {
		case line := <-s.OutQueue:
			if !s.writeLine(w, line) {
				return
			}
			// Drain whatever else is queued before flushing once.
			for len(s.OutQueue) > 0 {
				select {
				case more := <-s.OutQueue:
					if !s.writeLine(w, more) {
						return
					}
				case <-s.closeCh:
					return
				}
			}
			if err := w.Flush(); err != nil {
				return
			}
		case <-s.closeCh:
			return
		}
	}
}

func (s *Session) writeLine(w *bufio.Writer, line string) bool {
	s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	if _, err := w.WriteString(line + "\r\n"); err != nil {
		if !s.closed.Load() {
			s.log.Debug("write error", zap.Error(err))
		}
		return false
	}
	return true
}
