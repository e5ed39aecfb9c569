// Package loggingtest provides a logger for tests that records every entry
// and lets a test wait for entries written by other goroutines.
package loggingtest

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

type Logger struct {
	mu      sync.Mutex
	entries []string
	changed chan struct{}
	muted   bool
}

var ErrWaitTimeout = errors.New("timeout")

func New() *Logger {
	return &Logger{changed: make(chan struct{})}
}

func (l *Logger) save(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.muted {
		return
	}

	l.entries = append(l.entries, e)
	close(l.changed)
	l.changed = make(chan struct{})
}

func (l *Logger) count(exp string) (int, <-chan struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int
	for _, e := range l.entries {
		if strings.Contains(e, exp) {
			n++
		}
	}

	return n, l.changed
}

// Count returns how many entries contain exp.
func (l *Logger) Count(exp string) int {
	n, _ := l.count(exp)
	return n
}

// WaitForN blocks until at least n entries contain exp, or returns
// ErrWaitTimeout.
func (l *Logger) WaitForN(exp string, n int, to time.Duration) error {
	timeout := time.After(to)
	for {
		c, changed := l.count(exp)
		if c >= n {
			return nil
		}

		select {
		case <-changed:
		case <-timeout:
			return ErrWaitTimeout
		}
	}
}

func (l *Logger) WaitFor(exp string, to time.Duration) error {
	return l.WaitForN(exp, 1, to)
}

func (l *Logger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

func (l *Logger) Mute() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.muted = true
}

func (l *Logger) Unmute() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.muted = false
}

func (l *Logger) logf(f string, a ...any) { l.save(fmt.Sprintf(f, a...)) }
func (l *Logger) log(a ...any)            { l.save(fmt.Sprint(a...)) }

func (l *Logger) Error(a ...any)            { l.log(a...) }
func (l *Logger) Errorf(f string, a ...any) { l.logf(f, a...) }
func (l *Logger) Warn(a ...any)             { l.log(a...) }
func (l *Logger) Warnf(f string, a ...any)  { l.logf(f, a...) }
func (l *Logger) Info(a ...any)             { l.log(a...) }
func (l *Logger) Infof(f string, a ...any)  { l.logf(f, a...) }
func (l *Logger) Debug(a ...any)            { l.log(a...) }
func (l *Logger) Debugf(f string, a ...any) { l.logf(f, a...) }
