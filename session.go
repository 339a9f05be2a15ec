package respkv

import (
	"context"
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/zeebo/xxh3"
)

// Session is the per-worker slot of a Client: it owns at most one connection,
// created on first use and replaced when a health check fails.
//
// A Session belongs to the goroutine that obtained it and is not safe for
// concurrent use. Workers that need to share results decode them out of the
// Reply first.
type Session struct {
	client *Client
	id     uint64

	conn    *Conn
	recheck bool
	checks  uint64
	closed  bool
}

// ID returns the identifier of the session, unique within its Client.
func (s *Session) ID() uint64 {
	return s.id
}

// Conn returns the session's connection, connecting on first use.
//
// When forceCheck is true, a health check is pending (see ScheduleCheck) or
// the connection has been idle longer than Config.CheckAfterIdle, the
// connection is verified with an ECHO round trip first. A connection failing
// the check is closed and replaced by a new one; the failure itself is not
// returned. Only a failure to connect is, as *ConnectionError.
func (s *Session) Conn(ctx context.Context, forceCheck bool) (*Conn, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}

	if s.conn == nil {
		conn, err := s.client.connect(ctx, s)
		if err != nil {
			return nil, err
		}
		s.conn = conn
	}

	if forceCheck || s.recheck || s.idleExpired() {
		s.recheck = false
		if err := s.healthCheck(ctx); err != nil {
			if err := s.replace(ctx, err); err != nil {
				return nil, err
			}
		}
	}

	return s.conn, nil
}

// ScheduleCheck makes the next Conn call health-check the connection.
// Receive failures schedule it automatically.
func (s *Session) ScheduleCheck() {
	s.recheck = true
}

// CheckScheduled reports whether the next Conn call runs a health check.
func (s *Session) CheckScheduled() bool {
	return s.recheck
}

// Do builds a command from args, sends it on the session's connection and
// waits for the reply.
//
//	reply, err := session.Do(ctx, "SET", "key", 123, "EX", 60)
func (s *Session) Do(ctx context.Context, args ...any) (*Reply, error) {
	argv, err := NewArgs(args...)
	if err != nil {
		return nil, err
	}
	return s.Exec(ctx, argv)
}

// Exec sends a prepared command and waits for the reply.
func (s *Session) Exec(ctx context.Context, argv Args) (*Reply, error) {
	conn, err := s.Conn(ctx, false)
	if err != nil {
		return nil, err
	}
	return conn.SendAndReceive(ctx, argv)
}

// Close closes the connection and removes the session from its client.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.client.removeSession(s)

	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

func (s *Session) idleExpired() bool {
	limit := s.client.checkAfterIdle
	return limit > 0 && s.conn.IdleDuration() > limit
}

// healthCheck sends ECHO with a token only this check can produce and expects
// the same integer back. Any error, nil reply or different value fails it.
func (s *Session) healthCheck(ctx context.Context) error {
	s.client.stats.recordHealthCheck()

	token := echoToken(s.id, s.checks)
	s.checks++

	reply, err := s.conn.SendAndReceive(ctx, Args{"ECHO", strconv.FormatUint(token, 10)})
	if err != nil {
		return err
	}
	defer reply.Release()

	got, err := As[uint64](reply)
	if err != nil {
		return err
	}
	if got != token {
		return fmt.Errorf("echo mismatch: got %d, want %d", got, token)
	}
	return nil
}

// replace discards the current connection and connects a new one.
// On connect failure the session is left without connection so that the
// next call connects afresh.
func (s *Session) replace(ctx context.Context, cause error) error {
	stats := s.client.stats
	stats.recordCheckFailure()

	old := s.conn
	s.conn = nil
	s.recheck = false
	_ = old.Close()

	s.client.logger.Warn("respkv: replacing connection after failed health check",
		"session", s.id, "addr", old.Addr(), "error", cause)

	conn, err := s.client.connect(ctx, s)
	if err != nil {
		return err
	}

	s.conn = conn
	stats.recordReplacement()
	return nil
}

// echoToken mixes the session ID with the check sequence, so a late ECHO
// reply left on the wire by an earlier failed check never matches.
func echoToken(sessionID, seq uint64) uint64 {
	var b [16]byte
	binary.LittleEndian.PutUint64(b[:8], sessionID)
	binary.LittleEndian.PutUint64(b[8:], seq)
	return xxh3.Hash(b[:])
}

type sessionKey struct{}

// ContextWithSession returns a context carrying s, for worker code that
// resolves its session from the context.
func ContextWithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the session carried by ctx, if any.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	return s, ok
}
