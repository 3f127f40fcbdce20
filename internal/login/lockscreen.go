package login

import "mediport.org/internal/idle"

// LockScreen is the collaborator the shell shows while the session is
// locked. Only a successful password re-check releases the monitor.
type LockScreen struct {
	auth    *Authenticator
	monitor *idle.Monitor
}

// NewLockScreen wires the authenticator to the idle monitor.
func NewLockScreen(auth *Authenticator, monitor *idle.Monitor) *LockScreen {
	return &LockScreen{auth: auth, monitor: monitor}
}

// Submit attempts to unlock with the given password. The monitor stays
// locked on a failed check.
func (l *LockScreen) Submit(password string) bool {
	if !l.auth.VerifyPassword(password) {
		return false
	}
	l.monitor.Unlock()
	return true
}
