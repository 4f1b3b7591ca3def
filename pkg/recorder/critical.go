package recorder

import "sync"

// Token is the opaque value returned by Enter and handed back to Exit.
// Implementations may use it to carry saved interrupt state.
type Token uintptr

// CriticalSection excludes concurrent writers and status readers for the
// duration of a check-and-copy. It must be cheap and must never block for
// longer than the section it guards.
type CriticalSection interface {
	Enter() Token
	Exit(Token)
}

// NoopSection performs no exclusion. It is only correct when a single
// goroutine drives the recorder.
type NoopSection struct{}

// Enter does nothing.
func (NoopSection) Enter() Token { return 0 }

// Exit does nothing.
func (NoopSection) Exit(Token) {}

// MutexSection excludes with a sync.Mutex.
type MutexSection struct {
	mu sync.Mutex
}

// Enter locks the section.
func (m *MutexSection) Enter() Token {
	m.mu.Lock()
	return 0
}

// Exit unlocks the section.
func (m *MutexSection) Exit(Token) {
	m.mu.Unlock()
}

// FuncSection adapts a pair of functions, for example a platform's interrupt
// mask and restore primitives.
type FuncSection struct {
	EnterFunc func() Token
	ExitFunc  func(Token)
}

// Enter calls EnterFunc.
func (f FuncSection) Enter() Token {
	if f.EnterFunc == nil {
		return 0
	}
	return f.EnterFunc()
}

// Exit calls ExitFunc.
func (f FuncSection) Exit(t Token) {
	if f.ExitFunc != nil {
		f.ExitFunc(t)
	}
}
