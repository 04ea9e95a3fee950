package docstore

import (
	"context"
	"sync"
)

type loader func(ctx context.Context) Snapshot

type subscription struct {
	ctx        context.Context
	path       string
	collection bool
	load       loader

	mu     sync.Mutex
	closed bool
	ch     chan Snapshot
}

// push keeps only the newest snapshot buffered so slow readers never block writers.
func (s *subscription) push(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case <-s.ch:
	default:
	}
	s.ch <- snap
}

func (s *subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

func (s *subscription) interested(changed string) bool {
	if s.collection {
		parent, _ := Split(changed)
		return parent == s.path
	}
	return changed == s.path
}

// hub fans document changes out to live subscriptions.
type hub struct {
	mu   sync.Mutex
	subs map[*subscription]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[*subscription]struct{})}
}

func (h *hub) subscribe(ctx context.Context, path string, collection bool, load loader) <-chan Snapshot {
	sub := &subscription{
		ctx:        ctx,
		path:       path,
		collection: collection,
		load:       load,
		ch:         make(chan Snapshot, 1),
	}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	sub.push(load(ctx))

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, sub)
		h.mu.Unlock()
		sub.close()
	}()

	return sub.ch
}

func (h *hub) changed(path string) {
	h.mu.Lock()
	targets := make([]*subscription, 0, len(h.subs))
	for sub := range h.subs {
		if sub.interested(path) {
			targets = append(targets, sub)
		}
	}
	h.mu.Unlock()

	for _, sub := range targets {
		if sub.ctx.Err() != nil {
			continue
		}
		sub.push(sub.load(sub.ctx))
	}
}

func (h *hub) size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func docLoader(get func(context.Context, string) (Document, error), path string) loader {
	return func(ctx context.Context) Snapshot {
		doc, err := get(ctx, path)
		switch {
		case err == nil:
			return Snapshot{Path: path, Doc: &doc}
		case err == ErrNotFound:
			return Snapshot{Path: path}
		default:
			return Snapshot{Path: path, Err: err}
		}
	}
}

func collectionLoader(list func(context.Context, string, Query) ([]Document, error), collection string, q Query) loader {
	return func(ctx context.Context) Snapshot {
		docs, err := list(ctx, collection, q)
		if err != nil {
			return Snapshot{Path: collection, Err: err}
		}
		return Snapshot{Path: collection, Docs: docs}
	}
}
