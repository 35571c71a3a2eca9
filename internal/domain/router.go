package domain

import (
	"context"
	"sync"
)

type Handler func(Event)

// Router dispatches events to handlers registered for an exact channel, for a
// whole channel kind, or for everything. Handlers for one event run in
// registration order: exact, then kind, then catch-all.
type Router struct {
	mu     sync.RWMutex
	exact  map[Channel][]Handler
	byKind map[ChannelKind][]Handler
	all    []Handler
}

func NewRouter() *Router {
	return &Router{
		exact:  map[Channel][]Handler{},
		byKind: map[ChannelKind][]Handler{},
	}
}

// On registers h for ch. A dynamic channel with an empty label matches every
// label of that kind.
func (r *Router) On(ch Channel, h Handler) {
	if ch.Kind.Dynamic() && ch.Label == "" {
		r.OnKind(ch.Kind, h)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.exact[ch] = append(r.exact[ch], h)
}

func (r *Router) OnKind(kind ChannelKind, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byKind[kind] = append(r.byKind[kind], h)
}

func (r *Router) OnAny(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = append(r.all, h)
}

func (r *Router) Dispatch(ev Event) {
	r.mu.RLock()
	handlers := make([]Handler, 0, len(r.exact[ev.Channel])+len(r.byKind[ev.Channel.Kind])+len(r.all))
	handlers = append(handlers, r.exact[ev.Channel]...)
	handlers = append(handlers, r.byKind[ev.Channel.Kind]...)
	handlers = append(handlers, r.all...)
	r.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}

// Run dispatches events until the channel is closed or ctx is done.
func (r *Router) Run(ctx context.Context, events <-chan Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			r.Dispatch(ev)
		}
	}
}
