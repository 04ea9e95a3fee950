// Package session holds the process-wide storefront state: the live catalog
// snapshot and the bookkeeping that merges an anonymous cart into the account
// cart exactly once per sign-in.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/acaifrutal/storefront-backend/internal/catalog"
	"github.com/acaifrutal/storefront-backend/internal/identity"
	"github.com/acaifrutal/storefront-backend/pkg/logger"
)

const handledRetention = 30 * time.Minute

type cartReconciler interface {
	Reconcile(ctx context.Context, scope, anonID, authID string)
}

type catalogWatcher interface {
	Watch(ctx context.Context, onChange func(catalog.Snapshot)) error
}

// State is the explicit application state shared by request handlers.
type State struct {
	mu          sync.RWMutex
	catalog     catalog.Snapshot
	catalogSeen bool
	handled     map[identity.Transition]time.Time

	reconciler cartReconciler
	scope      string
	logg       *logger.Logger
	now        func() time.Time
}

// NewState builds an empty state.
func NewState(reconciler cartReconciler, scope string, logg *logger.Logger) (*State, error) {
	if reconciler == nil {
		return nil, fmt.Errorf("cart reconciler required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &State{
		handled:    map[identity.Transition]time.Time{},
		reconciler: reconciler,
		scope:      scope,
		logg:       logg,
		now:        time.Now,
	}, nil
}

// Catalog returns the latest catalog snapshot and whether one has arrived yet.
func (s *State) Catalog() (catalog.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalog, s.catalogSeen
}

func (s *State) setCatalog(snap catalog.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog = snap
	s.catalogSeen = true
}

// HandleTransition merges the anonymous cart of t into the account cart. A
// transition already handled is ignored; it reports whether a merge was attempted.
func (s *State) HandleTransition(ctx context.Context, t identity.Transition) bool {
	if t.From == "" || t.To == "" || t.From == t.To {
		return false
	}
	if t.Scope == "" {
		t.Scope = s.scope
	}

	s.mu.Lock()
	now := s.now()
	for seen, at := range s.handled {
		if now.Sub(at) > handledRetention {
			delete(s.handled, seen)
		}
	}
	if _, done := s.handled[t]; done {
		s.mu.Unlock()
		return false
	}
	s.handled[t] = now
	s.mu.Unlock()

	s.reconciler.Reconcile(ctx, t.Scope, t.From, t.To)
	return true
}

// Run consumes identity transitions and keeps the catalog snapshot fresh until
// ctx is done.
func (s *State) Run(ctx context.Context, transitions <-chan identity.Transition, catalogSvc catalogWatcher) {
	var wg sync.WaitGroup
	if catalogSvc != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := catalogSvc.Watch(ctx, s.setCatalog); err != nil {
				s.logg.Error(ctx, "session.catalog_watch_failed", err)
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case t, ok := <-transitions:
			if !ok {
				transitions = nil
				continue
			}
			s.HandleTransition(context.WithoutCancel(ctx), t)
		}
	}
}
