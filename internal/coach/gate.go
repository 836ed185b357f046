package coach

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/set-night/fitcoach/internal/domain"
)

// CooldownError rejects a message that arrived before the cooldown since
// the previous accepted message elapsed. It matches domain.ErrCooldown.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%v: retry in %s", domain.ErrCooldown, e.Remaining.Round(time.Millisecond))
}

func (e *CooldownError) Unwrap() error { return domain.ErrCooldown }

// Seconds rounds the remaining wait up for display.
func (e *CooldownError) Seconds() int {
	s := int(e.Remaining / time.Second)
	if e.Remaining%time.Second > 0 {
		s++
	}
	return s
}

const gateSweepThreshold = 1024

// gate admits at most one in-flight message per conversation and enforces
// the minimum interval between accepted messages. Rejections are final;
// nothing is queued.
type gate struct {
	cooldown time.Duration

	mu    sync.Mutex
	convs map[uuid.UUID]*convState
}

type convState struct {
	busy         bool
	lastAccepted time.Time
}

func newGate(cooldown time.Duration) *gate {
	return &gate{cooldown: cooldown, convs: make(map[uuid.UUID]*convState)}
}

func (g *gate) acquire(userID uuid.UUID, now time.Time) (release func(), err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.convs) > gateSweepThreshold {
		g.sweep(now)
	}

	st, ok := g.convs[userID]
	if !ok {
		st = &convState{}
		g.convs[userID] = st
	}
	if st.busy {
		return nil, domain.ErrBusy
	}
	if !st.lastAccepted.IsZero() {
		if elapsed := now.Sub(st.lastAccepted); elapsed < g.cooldown {
			return nil, &CooldownError{Remaining: g.cooldown - elapsed}
		}
	}

	st.busy = true
	st.lastAccepted = now
	return g.releaser(st), nil
}

// exclusive marks the conversation busy without touching the cooldown.
func (g *gate) exclusive(userID uuid.UUID) (release func(), err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	st, ok := g.convs[userID]
	if !ok {
		st = &convState{}
		g.convs[userID] = st
	}
	if st.busy {
		return nil, domain.ErrBusy
	}
	st.busy = true
	return g.releaser(st), nil
}

func (g *gate) releaser(st *convState) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			st.busy = false
			g.mu.Unlock()
		})
	}
}

// sweep drops idle conversations whose cooldown has passed. Callers hold mu.
func (g *gate) sweep(now time.Time) {
	for id, st := range g.convs {
		if !st.busy && now.Sub(st.lastAccepted) >= g.cooldown {
			delete(g.convs, id)
		}
	}
}
