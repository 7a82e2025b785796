// Package session holds per-connection state: the access level granted at
// handshake, the frame cache, the keys held down, and the lifecycle that
// ends with every held key being released.
package session

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/lmittmann/tint"

	"remotedesk/internal/codec"
	"remotedesk/internal/frame"
	"remotedesk/internal/input"
	"remotedesk/internal/types"
)

var (
	// ErrUnauthorized is returned when the handshake secret grants no access
	// sufficient for the requested role.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidTransition is returned for lifecycle calls made out of order.
	ErrInvalidTransition = errors.New("invalid session transition")
)

// State is a point in the connection lifecycle.
type State int

const (
	StateConnecting State = iota
	StateAuthorized
	StateRejected
	StateStreaming
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthorized:
		return "authorized"
	case StateRejected:
		return "rejected"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Role is what a connection may carry.
type Role int

const (
	// RoleCombined carries frame and input packets on one connection.
	RoleCombined Role = iota
	// RoleInput carries input only and requires control access.
	RoleInput
	// RoleView carries frames only and accepts view or control access.
	RoleView
)

func (r Role) String() string {
	switch r {
	case RoleCombined:
		return "combined"
	case RoleInput:
		return "input"
	case RoleView:
		return "view"
	default:
		return "unknown"
	}
}

// Permits reports whether a connection of this role may be opened at level.
func (r Role) Permits(level types.AccessLevel) bool {
	if r == RoleInput {
		return level.CanControl()
	}
	return level.CanView()
}

// Frames reports whether the role serves frames.
func (r Role) Frames() bool { return r != RoleInput }

// Input reports whether the role accepts input packets.
func (r Role) Input() bool { return r != RoleView }

// Secrets are the configured shared secrets.
type Secrets struct {
	Control string
	View    string
}

// Authorize maps a client secret to an access level. Without a control
// secret every client gets control.
func Authorize(secret string, s Secrets) types.AccessLevel {
	if s.Control == "" {
		return types.AccessControl
	}
	if equal(secret, s.Control) {
		return types.AccessControl
	}
	if s.View != "" && equal(secret, s.View) {
		return types.AccessView
	}
	return types.AccessNone
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Session is one connection's state. It is created at accept and closed
// exactly once, at which point every key it still holds is released.
type Session struct {
	ID     string
	Role   Role
	Access types.AccessLevel

	// Frame is only touched by the goroutine producing frames.
	Frame frame.State

	log      *slog.Logger
	injector input.Injector

	mu       sync.Mutex
	state    State
	keys     map[types.KeyCode]struct{}
	geometry input.Geometry
	viewport codec.FrameRequest

	closeOnce sync.Once
	done      chan struct{}
}

// Handshake authorizes a connection for role. On success the session is in
// StateAuthorized; otherwise ErrUnauthorized is returned and no session exists.
func Handshake(secret string, secrets Secrets, role Role, inj input.Injector, log *slog.Logger) (*Session, error) {
	level := Authorize(secret, secrets)
	if !role.Permits(level) {
		return nil, fmt.Errorf("%s connection with %s access: %w", role, level, ErrUnauthorized)
	}
	return New(role, level, inj, log), nil
}

// New returns an authorized session. A nil logger discards.
func New(role Role, level types.AccessLevel, inj input.Injector, log *slog.Logger) *Session {
	id := uuid.NewString()
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Session{
		ID:       id,
		Role:     role,
		Access:   level,
		log:      log.With("session", id, "role", role.String(), "access", level.String()),
		injector: inj,
		state:    StateAuthorized,
		keys:     make(map[types.KeyCode]struct{}),
		done:     make(chan struct{}),
	}
}

// Log is the session-scoped logger.
func (s *Session) Log() *slog.Logger { return s.log }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start moves an authorized session to streaming.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAuthorized {
		return fmt.Errorf("start from %s: %w", s.state, ErrInvalidTransition)
	}
	s.state = StateStreaming
	s.log.Info("session streaming")
	return nil
}

// Done is closed once the session has closed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Close ends the session and releases every key still held. It is safe to
// call from several goroutines; only the first call has any effect.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = StateClosed
		held := make([]types.KeyCode, 0, len(s.keys))
		for code := range s.keys {
			held = append(held, code)
		}
		clear(s.keys)
		s.mu.Unlock()

		sort.Slice(held, func(i, j int) bool { return held[i] < held[j] })
		for _, code := range held {
			if err := s.injector.KeyUp(code); err != nil {
				s.log.Warn("releasing held key", "code", int(code), tint.Err(err))
			}
		}
		if len(held) > 0 {
			s.log.Info("released held keys", "count", len(held))
		}
		close(s.done)
		s.log.Info("session closed")
	})
}

// Press records code as held. Implements input.KeySet.
func (s *Session) Press(code types.KeyCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}
	s.keys[code] = struct{}{}
}

// Release records code as no longer held. Implements input.KeySet.
func (s *Session) Release(code types.KeyCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, code)
}

// HeldKeys returns the held keys in ascending order.
func (s *Session) HeldKeys() []types.KeyCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	held := make([]types.KeyCode, 0, len(s.keys))
	for code := range s.keys {
		held = append(held, code)
	}
	sort.Slice(held, func(i, j int) bool { return held[i] < held[j] })
	return held
}

// Geometry returns the coordinate mapping input events are applied with.
func (s *Session) Geometry() input.Geometry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.geometry
}

// SetGeometry replaces the coordinate mapping.
func (s *Session) SetGeometry(g input.Geometry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.geometry = g
}

// Viewport returns the last viewport the client asked for.
func (s *Session) Viewport() codec.FrameRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewport
}

// SetViewport records the viewport the client asked for.
func (s *Session) SetViewport(req codec.FrameRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewport = req
}
