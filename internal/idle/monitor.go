// Package idle tracks user activity and locks the session after a
// configurable quiet window. Locking only covers the UI; the token is
// never touched here. Activity notifications are plain method calls with
// no per-event fan-out, so feeding every pointer move through Touch stays
// cheap; observers hear only about actual state transitions.
package idle

import (
	"strconv"
	"sync"
	"time"

	"mediport.org/internal/obs"
	"mediport.org/internal/storage"
)

// DefaultTimeout is the inactivity window before the session locks.
const DefaultTimeout = 10 * time.Minute

// Scoped-tier keys. Persisting the flag means a soft reload while locked
// comes back locked instead of silently unlocking.
const (
	lockedKey   = "portal.locked"
	lockedAtKey = "portal.locked_at"
)

// Monitor is the ACTIVE/LOCKED state machine.
type Monitor struct {
	scoped       storage.KV
	timeout      time.Duration
	now          func() time.Time
	onTransition func(locked bool)

	mu           sync.Mutex
	started      bool
	locked       bool
	hiddenAt     time.Time
	lastActivity time.Time
	timer        *time.Timer
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithTimeout overrides the inactivity window.
func WithTimeout(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(fn func() time.Time) Option {
	return func(m *Monitor) {
		if fn != nil {
			m.now = fn
		}
	}
}

// OnTransition registers the shell's lock/unlock observer. It is invoked
// outside the monitor's internal lock.
func OnTransition(fn func(locked bool)) Option {
	return func(m *Monitor) { m.onTransition = fn }
}

// NewMonitor builds a monitor persisting its lock flag in the scoped
// storage tier.
func NewMonitor(scoped storage.KV, opts ...Option) *Monitor {
	m := &Monitor{
		scoped:  scoped,
		timeout: DefaultTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start arms the countdown, unless a persisted flag says the session was
// locked before a reload, in which case the monitor begins LOCKED with no
// countdown armed.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	if v, ok, err := m.scoped.Get(lockedKey); err == nil && ok && v == "1" {
		m.locked = true
		m.mu.Unlock()
		return
	}
	m.lastActivity = m.now()
	m.armLocked(m.timeout)
	m.mu.Unlock()
}

// Stop tears the monitor down: the countdown is cleared and later events
// are ignored. The persisted lock flag is left as is.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = false
	m.stopTimerLocked()
}

// Locked reports the current state.
func (m *Monitor) Locked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locked
}

// Touch records a qualifying input event. While LOCKED it is deliberately
// ignored: a stray click must not extend a session that requires
// re-authentication.
func (m *Monitor) Touch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started || m.locked {
		return
	}
	m.lastActivity = m.now()
	if m.hiddenAt.IsZero() {
		m.armLocked(m.timeout)
	}
}

// Hidden records the page going invisible. The countdown is suspended;
// the reckoning happens on Visible.
func (m *Monitor) Hidden() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started || m.locked {
		return
	}
	m.hiddenAt = m.now()
	m.stopTimerLocked()
}

// Visible restores the page. Hidden longer than the timeout locks
// immediately; otherwise the countdown resumes with only the remaining
// budget, so a hide/show cycle never stretches total allowed inactivity
// past the configured window.
func (m *Monitor) Visible() {
	m.mu.Lock()
	if !m.started || m.locked || m.hiddenAt.IsZero() {
		m.mu.Unlock()
		return
	}
	elapsed := m.now().Sub(m.hiddenAt)
	m.hiddenAt = time.Time{}
	if elapsed >= m.timeout {
		m.lockLocked()
		m.mu.Unlock()
		m.notify(true)
		return
	}
	m.armLocked(m.timeout - elapsed)
	m.mu.Unlock()
}

// Lock transitions to LOCKED explicitly, with the same persisted side
// effects as the automatic path.
func (m *Monitor) Lock() {
	m.mu.Lock()
	if !m.started || m.locked {
		m.mu.Unlock()
		return
	}
	m.lockLocked()
	m.mu.Unlock()
	m.notify(true)
}

// Unlock is the only way out of LOCKED. It is called after a successful
// password re-check and restarts the countdown from zero elapsed.
func (m *Monitor) Unlock() {
	m.mu.Lock()
	if !m.locked {
		m.mu.Unlock()
		return
	}
	m.locked = false
	_ = m.scoped.Delete(lockedKey)
	_ = m.scoped.Delete(lockedAtKey)
	m.lastActivity = m.now()
	m.hiddenAt = time.Time{}
	if m.started {
		m.armLocked(m.timeout)
	}
	m.mu.Unlock()
	m.notify(false)
}

// lockLocked flips the state and persists it. Persistence failures only
// cost the reload memory, never the transition itself.
func (m *Monitor) lockLocked() {
	m.locked = true
	m.stopTimerLocked()
	_ = m.scoped.Set(lockedKey, "1")
	_ = m.scoped.Set(lockedAtKey, strconv.FormatInt(m.now().Unix(), 10))
	obs.CountLock()
}

func (m *Monitor) armLocked(d time.Duration) {
	m.stopTimerLocked()
	m.timer = time.AfterFunc(d, m.expire)
}

func (m *Monitor) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Monitor) expire() {
	m.mu.Lock()
	if !m.started || m.locked || !m.hiddenAt.IsZero() {
		m.mu.Unlock()
		return
	}
	m.lockLocked()
	m.mu.Unlock()
	m.notify(true)
}

func (m *Monitor) notify(locked bool) {
	if m.onTransition != nil {
		m.onTransition(locked)
	}
}
