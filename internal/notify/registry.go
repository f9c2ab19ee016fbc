package notify

import (
	"slices"

	"github.com/gosuda/tally/internal/messenger"
)

// Registry is a map-based MessengerRegistry keyed by Messenger.Platform.
type Registry struct {
	messengers map[string]messenger.Messenger
}

func NewRegistry(ms ...messenger.Messenger) *Registry {
	r := &Registry{messengers: make(map[string]messenger.Messenger, len(ms))}
	for _, m := range ms {
		r.Register(m)
	}
	return r
}

// Register adds m under its platform name, replacing any previous one.
func (r *Registry) Register(m messenger.Messenger) {
	r.messengers[m.Platform()] = m
}

func (r *Registry) Get(platform string) (messenger.Messenger, bool) {
	m, ok := r.messengers[platform]
	return m, ok
}

// Has reports whether reminders can be delivered on platform.
func (r *Registry) Has(platform string) bool {
	_, ok := r.messengers[platform]
	return ok
}

// Platforms returns the registered platform names in sorted order.
func (r *Registry) Platforms() []string {
	names := make([]string, 0, len(r.messengers))
	for name := range r.messengers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
