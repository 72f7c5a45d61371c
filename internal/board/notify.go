package board

import "sync"

// Level of a notification
type Level int

const (
	Info Level = iota
	Success
	Failure
)

func (l Level) String() string {
	switch l {
	case Success:
		return "success"
	case Failure:
		return "error"
	}
	return "info"
}

// Notification is a transient message for the user
type Notification struct {
	Level   Level
	Message string
}

// Notifier shows notifications. Implementations must be safe for concurrent use.
type Notifier interface {
	Notify(Notification)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// Recorder keeps every notification. Useful in tests and for headless runs.
type Recorder struct {
	mu  sync.Mutex
	all []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = append(r.all, n)
}

// All returns the notifications received so far
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.all...)
}

// Count returns how many notifications had the given level
func (r *Recorder) Count(l Level) int {
	n := 0
	for _, x := range r.All() {
		if x.Level == l {
			n++
		}
	}
	return n
}

// Reset forgets recorded notifications
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = nil
}
