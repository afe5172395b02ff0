package app

import (
	"sync"
	"time"
)

// gestureToken bounds one pointer gesture; an expired token ends its gesture.
type gestureToken struct {
	id       uint64
	deadline time.Time
	timer    *time.Timer
}

// expired reports whether now is past the token deadline.
func (g *gestureToken) expired(now time.Time) bool {
	return g != nil && !now.Before(g.deadline)
}

func (g *gestureToken) stop() {
	if g != nil && g.timer != nil {
		g.timer.Stop()
	}
}

// gestureClock issues gesture tokens and fires expiry callbacks.
type gestureClock struct {
	mu      sync.Mutex
	clock   Clock
	timeout time.Duration
	next    uint64
}

// issue returns a new token whose timer calls onExpire with the token id.
func (g *gestureClock) issue(onExpire func(id uint64)) *gestureToken {
	g.mu.Lock()
	g.next++
	id := g.next
	g.mu.Unlock()

	token := &gestureToken{id: id, deadline: g.clock().Add(g.timeout)}
	token.timer = time.AfterFunc(g.timeout, func() { onExpire(id) })
	return token
}

func (g *gestureClock) now() time.Time {
	return g.clock()
}
