// Package queue holds the round-robin list of cities waiting to be
// checked. The refill ticker appends while the session driver pops, so
// every operation takes the lock.
package queue

import (
	"sync"

	"go.uber.org/zap"

	"github.com/example/visa-checker/internal/city"
)

type Queue struct {
	mu     sync.Mutex
	items  []city.City
	cities city.List
	log    *zap.Logger
}

func New(cities city.List, log *zap.Logger) *Queue {
	if log == nil {
		log = zap.NewNop()
	}
	return &Queue{cities: cities, log: log}
}

// Refill appends every non-skip city in table order. It does not dedupe:
// a slow drain simply sees cities queued more than once, which is
// harmless for an idempotent check.
func (q *Queue) Refill() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, c := range q.cities.Eligible() {
		q.log.Info("queueing city", zap.String("city", c.Name))
		q.items = append(q.items, c)
	}
}

// Pop removes and returns the head of the queue.
func (q *Queue) Pop() (city.City, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return city.City{}, false
	}
	c := q.items[0]
	q.items = q.items[1:]
	return c, true
}

// Requeue appends a city whose check failed back to the tail.
func (q *Queue) Requeue(c city.City) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, c)
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
