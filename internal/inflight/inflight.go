package inflight

import (
	"sync"
	"time"
)

// Guard - не более одной генерации на юзера одновременно
type Guard struct {
	mu     sync.Mutex
	active map[int64]time.Time
}

func New() *Guard {
	return &Guard{
		active: make(map[int64]time.Time),
	}
}

// TryAcquire marks userID busy. The returned release is safe to call more than once.
func (g *Guard) TryAcquire(userID int64) (release func(), ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.active[userID]; busy {
		return func() {}, false
	}

	started := time.Now()
	g.active[userID] = started

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			// only drop our own entry
			if t, ok := g.active[userID]; ok && t.Equal(started) {
				delete(g.active, userID)
			}
			g.mu.Unlock()
		})
	}, true
}

func (g *Guard) InFlight(userID int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	_, ok := g.active[userID]
	return ok
}

// StartedAt - когда началась текущая генерация юзера
func (g *Guard) StartedAt(userID int64) (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	t, ok := g.active[userID]
	return t, ok
}

func (g *Guard) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.active)
}
