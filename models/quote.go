package models

import "sync"

// Quote is a live scalar market input. Observers registered with Observe
// are called synchronously whenever the value changes.
type Quote interface {
	Value() float64
	Observe(fn func()) (cancel func())
}

// SimpleQuote is a settable Quote.
type SimpleQuote struct {
	mu        sync.Mutex
	value     float64
	nextID    int
	observers map[int]func()
}

func NewSimpleQuote(value float64) *SimpleQuote {
	return &SimpleQuote{value: value, observers: make(map[int]func())}
}

func (q *SimpleQuote) Value() float64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.value
}

// SetValue stores v and notifies observers if it differs from the current
// value. Observers run after the lock is released.
func (q *SimpleQuote) SetValue(v float64) {
	q.mu.Lock()
	if q.value == v {
		q.mu.Unlock()
		return
	}
	q.value = v
	fns := make([]func(), 0, len(q.observers))
	for _, fn := range q.observers {
		fns = append(fns, fn)
	}
	q.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func (q *SimpleQuote) Observe(fn func()) func() {
	q.mu.Lock()
	defer q.mu.Unlock()
	id := q.nextID
	q.nextID++
	q.observers[id] = fn
	return func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		delete(q.observers, id)
	}
}
