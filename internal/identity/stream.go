package identity

import (
	"context"
	"sync"

	"github.com/acaifrutal/storefront-backend/pkg/logger"
)

const streamBuffer = 16

// Stream fans identity transitions out to every subscriber. A subscriber whose
// buffer is full misses the transition.
type Stream struct {
	mu     sync.Mutex
	subs   map[int]chan Transition
	nextID int
	logg   *logger.Logger
}

// NewStream builds an empty stream.
func NewStream(logg *logger.Logger) *Stream {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Stream{subs: map[int]chan Transition{}, logg: logg}
}

// Subscribe returns a channel of transitions that closes when ctx is done.
func (s *Stream) Subscribe(ctx context.Context) <-chan Transition {
	ch := make(chan Transition, streamBuffer)
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()
	return ch
}

// Publish delivers t to every subscriber without blocking.
func (s *Stream) Publish(t Transition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- t:
		default:
			ctx := s.logg.WithFields(context.Background(), map[string]any{"from": t.From, "to": t.To})
			s.logg.Warn(ctx, "identity.transition_dropped")
		}
	}
}
