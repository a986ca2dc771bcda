package sse

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/broadcastqueue/eventsubd/pkg/domain"
)

// subscriberBuffer bounds how many patches a subscriber may lag behind before
// it is disconnected. A disconnected client reconnects with since_version set
// to its last seen version; the ring (or a state.replace fallback) makes it
// whole again, so dropping a slow subscriber loses nothing it can't recover.
const subscriberBuffer = 256

// StateSnapshotter builds a full-state patch for a tenant, used when a
// subscriber's cursor falls outside the ring. Implemented by the state store
// via a single consistent read transaction taken outside the per-tenant
// writer lease, so building and shipping a snapshot never blocks a write.
type StateSnapshotter interface {
	Snapshot(ctx context.Context, tenant string) (domain.StateReplaceData, error)
}

// Subscription is a live handle to a tenant's patch stream. Patches arrives
// in version order; Close stops delivery and releases hub-held resources.
type Subscription struct {
	ID      string
	Tenant  string
	Patches <-chan domain.Patch

	hub *Hub
}

// Close unsubscribes; patches already buffered on Patches are not drained.
func (s *Subscription) Close() {
	s.hub.unsubscribe(s.Tenant, s.ID)
}

type subscriber struct {
	id   string
	ch   chan domain.Patch
	done chan struct{}
}

// Hub is the per-process SSE fan-out: one bounded Ring and one subscriber
// registry per tenant. Adapted from the WebSocket ConnectionManager's
// register/broadcast discipline, but one-way (server → client) and backed by
// a bounded ring instead of a durable catchup query.
type Hub struct {
	mu          sync.RWMutex
	rings       map[string]*Ring
	subscribers map[string]map[string]*subscriber

	snapshotter    StateSnapshotter
	ringMaxEntries int
	ringTTL        time.Duration
	now            func() time.Time
}

// NewHub constructs a Hub. snapshotter may be nil only in tests that never
// trigger a ring miss.
func NewHub(snapshotter StateSnapshotter, ringMaxEntries int, ringTTL time.Duration) *Hub {
	return &Hub{
		rings:          make(map[string]*Ring),
		subscribers:    make(map[string]map[string]*subscriber),
		snapshotter:    snapshotter,
		ringMaxEntries: ringMaxEntries,
		ringTTL:        ringTTL,
		now:            time.Now,
	}
}

func (h *Hub) ringFor(tenant string) *Ring {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rings[tenant]
	if !ok {
		r = NewRing(h.ringMaxEntries, h.ringTTL, h.now)
		h.rings[tenant] = r
	}
	return r
}

// Publish pushes patches into the tenant's ring (in order) and fans each out
// to every current subscriber. Called by the Command Executor after commit,
// outside its transaction and outside the per-tenant writer lease.
func (h *Hub) Publish(tenant string, patches []domain.Patch) {
	if len(patches) == 0 {
		return
	}
	ring := h.ringFor(tenant)
	for _, p := range patches {
		ring.Push(p)
	}

	h.mu.RLock()
	subs := make([]*subscriber, 0, len(h.subscribers[tenant]))
	for _, s := range h.subscribers[tenant] {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	for _, s := range subs {
		for _, p := range patches {
			h.deliver(tenant, s, p)
		}
	}
}

// deliver sends a single patch to a subscriber, disconnecting it (rather than
// blocking the publisher) if its buffer is full.
func (h *Hub) deliver(tenant string, s *subscriber, p domain.Patch) {
	select {
	case s.ch <- p:
	case <-s.done:
	default:
		slog.Warn("sse subscriber too slow, disconnecting", "tenant", tenant, "subscriber_id", s.id)
		h.unsubscribe(tenant, s.id)
	}
}

// Subscribe registers a new subscriber for tenant and returns its stream.
// sinceVersion is the client's last-seen version (0 for a fresh connection).
// If the ring still covers sinceVersion, only the missed incremental patches
// are replayed. Otherwise a single state.replace patch (version 0 per
// convention) is emitted first, built from a consistent snapshot read.
func (h *Hub) Subscribe(ctx context.Context, tenant string, sinceVersion int64) (*Subscription, error) {
	ring := h.ringFor(tenant)
	id := uuid.NewString()
	sub := &subscriber{
		id:   id,
		ch:   make(chan domain.Patch, subscriberBuffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if h.subscribers[tenant] == nil {
		h.subscribers[tenant] = make(map[string]*subscriber)
	}
	h.subscribers[tenant][id] = sub
	h.mu.Unlock()

	replay, hit := ring.Since(sinceVersion)
	if !hit {
		if h.snapshotter == nil {
			h.unsubscribe(tenant, id)
			return nil, fmt.Errorf("sse: ring miss for tenant %s and no snapshotter configured", tenant)
		}
		snap, err := h.snapshotter.Snapshot(ctx, tenant)
		if err != nil {
			h.unsubscribe(tenant, id)
			return nil, fmt.Errorf("sse: build state.replace snapshot: %w", err)
		}
		sub.ch <- domain.Patch{
			Tenant: tenant,
			Type:   domain.PatchStateReplace,
			At:     h.now(),
			Data:   snap,
		}
	} else {
		for _, p := range replay {
			sub.ch <- p
		}
	}

	return &Subscription{
		ID:      id,
		Tenant:  tenant,
		Patches: sub.ch,
		hub:     h,
	}, nil
}

// ingestRemote applies a patch received via cross-process NOTIFY: push into
// the local ring and fan out to local subscribers, without re-publishing
// (this process did not commit the transaction that produced it).
func (h *Hub) ingestRemote(tenant string, p domain.Patch) {
	h.ringFor(tenant).Push(p)

	h.mu.RLock()
	subs := make([]*subscriber, 0, len(h.subscribers[tenant]))
	for _, s := range h.subscribers[tenant] {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	for _, s := range subs {
		h.deliver(tenant, s, p)
	}
}

func (h *Hub) unsubscribe(tenant, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.subscribers[tenant]
	if !ok {
		return
	}
	if s, ok := subs[id]; ok {
		close(s.done)
		delete(subs, id)
	}
	if len(subs) == 0 {
		delete(h.subscribers, tenant)
	}
}

// SubscriberCount reports the number of active subscribers for a tenant.
// Exported (unlike the teacher's unexported subscriberCount) because admin
// debug endpoints surface it.
func (h *Hub) SubscriberCount(tenant string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[tenant])
}
