package ticket

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/shadowdev/shadowbot/internal/database/types"
	"go.uber.org/zap"
)

// readThroughAttempts bounds how often Get refetches a row that changed while it was read.
const readThroughAttempts = 3

// Registry is the in-memory view of open tickets, read through to the store on a miss.
// Closed tickets are never cached and never returned by Get.
type Registry struct {
	store     Store
	scheduler *Scheduler
	clock     Clock
	logger    *zap.Logger

	mu      sync.RWMutex
	tickets map[snowflake.ID]*Ticket
	// seq counts mutations; marks holds the seq of each channel's latest one.
	// A row read from the store is only cached if its channel was not mutated
	// after the read started.
	seq   uint64
	marks map[snowflake.ID]uint64
}

// NewRegistry creates an empty Registry.
func NewRegistry(store Store, scheduler *Scheduler, clock Clock, logger *zap.Logger) *Registry {
	return &Registry{
		store:     store,
		scheduler: scheduler,
		clock:     clock,
		logger:    logger.Named("ticket_registry"),
		tickets:   make(map[snowflake.ID]*Ticket),
		marks:     make(map[snowflake.ID]uint64),
	}
}

// Load caches every open ticket of a server and returns how many were loaded.
// Cached entries and rows mutated during the load are left alone.
func (r *Registry) Load(ctx context.Context, serverID snowflake.ID) (int, error) {
	start := r.sequence()

	tickets, err := r.store.GetAllTickets(ctx, serverID, false)
	if err != nil {
		r.logger.Error("Failed to load tickets",
			zap.Uint64("serverID", uint64(serverID)),
			zap.Error(err))

		return 0, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	r.mu.Lock()
	for _, t := range tickets {
		if _, cached := r.tickets[t.ChannelID]; cached || r.marks[t.ChannelID] > start {
			continue
		}
		r.tickets[t.ChannelID] = t
	}
	r.mu.Unlock()

	r.logger.Info("Loaded open tickets",
		zap.Uint64("serverID", uint64(serverID)),
		zap.Int("count", len(tickets)))

	return len(tickets), nil
}

// Get returns a copy of the open ticket bound to the channel.
// Store failures are logged and reported as not found.
func (r *Registry) Get(ctx context.Context, channelID snowflake.ID) (*Ticket, bool) {
	for range readThroughAttempts {
		r.mu.RLock()
		cached, ok := r.tickets[channelID]
		start := r.seq
		t := clone(cached)
		r.mu.RUnlock()

		if ok {
			return t, true
		}

		stored, ok := r.fetch(ctx, channelID)
		if !ok || stored.IsClosed {
			return nil, false
		}

		r.mu.Lock()
		if existing, ok := r.tickets[channelID]; ok {
			t = clone(existing)
			r.mu.Unlock()

			return t, true
		}

		// Closed, deleted or changed since the read began; the row may be stale
		if r.marks[channelID] > start {
			r.mu.Unlock()
			continue
		}

		r.tickets[channelID] = stored
		t = clone(stored)
		r.mu.Unlock()

		return t, true
	}

	r.logger.Warn("Ticket kept changing during read-through",
		zap.Uint64("channelID", uint64(channelID)))

	return nil, false
}

// Lookup returns the ticket bound to the channel whether open or closed.
func (r *Registry) Lookup(ctx context.Context, channelID snowflake.ID) (*Ticket, bool) {
	r.mu.RLock()
	cached, ok := r.tickets[channelID]
	t := clone(cached)
	r.mu.RUnlock()

	if ok {
		return t, true
	}

	return r.fetch(ctx, channelID)
}

// Create persists a new ticket whose only member is its owner and caches it.
func (r *Registry) Create(
	ctx context.Context, serverID, channelID, ownerID snowflake.ID, typeKey string,
) (*Ticket, error) {
	now := r.clock.Now()
	t := &Ticket{
		ChannelID:        channelID,
		ServerID:         serverID,
		OwnerID:          ownerID,
		TypeKey:          typeKey,
		CreatedAt:        now,
		LastOwnerMessage: now,
		Members:          []snowflake.ID{ownerID},
	}

	if _, err := r.store.CreateTicket(ctx, t); err != nil {
		r.logger.Error("Failed to create ticket",
			zap.Uint64("channelID", uint64(channelID)),
			zap.Uint64("ownerID", uint64(ownerID)),
			zap.Error(err))

		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	r.mu.Lock()
	r.tickets[channelID] = t
	created := clone(t)
	r.mu.Unlock()

	r.logger.Info("Created ticket",
		zap.Uint64("channelID", uint64(channelID)),
		zap.Uint64("ownerID", uint64(ownerID)),
		zap.String("typeKey", typeKey))

	return created, nil
}

// Close persists the closed state and evicts the ticket from the cache.
// Callers must check that the ticket is open first.
func (r *Registry) Close(ctx context.Context, channelID, closedByID snowflake.ID, reason string) error {
	now := r.clock.Now()
	if err := r.store.CloseTicket(ctx, channelID, closedByID, reason, now); err != nil {
		return r.storeError("close", channelID, err)
	}

	r.evict(channelID)

	r.logger.Info("Closed ticket",
		zap.Uint64("channelID", uint64(channelID)),
		zap.Uint64("closedByID", uint64(closedByID)),
		zap.String("reason", reason))

	return nil
}

// Delete cancels any pending autoclose, removes the stored row and evicts the ticket.
func (r *Registry) Delete(ctx context.Context, channelID snowflake.ID) error {
	r.scheduler.Cancel(channelID)

	if err := r.store.DeleteTicket(ctx, channelID); err != nil {
		return r.storeError("delete", channelID, err)
	}

	r.evict(channelID)

	r.logger.Info("Deleted ticket", zap.Uint64("channelID", uint64(channelID)))

	return nil
}

// Claim records the staff member responding to the ticket without checking the current claim.
func (r *Registry) Claim(ctx context.Context, channelID, staffID snowflake.ID) error {
	if err := r.store.ClaimTicket(ctx, channelID, staffID); err != nil {
		return r.storeError("claim", channelID, err)
	}

	r.update(channelID, func(t *Ticket) {
		t.ClaimedByID = staffID
	})

	return nil
}

// Unclaim clears the ticket's responder.
func (r *Registry) Unclaim(ctx context.Context, channelID snowflake.ID) error {
	if err := r.store.UnclaimTicket(ctx, channelID); err != nil {
		return r.storeError("unclaim", channelID, err)
	}

	r.update(channelID, func(t *Ticket) {
		t.ClaimedByID = 0
	})

	return nil
}

// AddMember adds a user to the member set.
func (r *Registry) AddMember(ctx context.Context, channelID, memberID snowflake.ID) error {
	if err := r.store.AddMember(ctx, channelID, memberID); err != nil {
		return r.storeError("add member to", channelID, err)
	}

	r.update(channelID, func(t *Ticket) {
		if !t.HasMember(memberID) {
			t.Members = append(t.Members, memberID)
		}
	})

	return nil
}

// RemoveMember removes a user from the member set. Protecting the owner is the caller's job.
func (r *Registry) RemoveMember(ctx context.Context, channelID, memberID snowflake.ID) error {
	if err := r.store.RemoveMember(ctx, channelID, memberID); err != nil {
		return r.storeError("remove member from", channelID, err)
	}

	r.update(channelID, func(t *Ticket) {
		t.Members = slices.DeleteFunc(t.Members, func(id snowflake.ID) bool {
			return id == memberID
		})
	})

	return nil
}

// TouchOwnerActivity sets the owner's last message time to at, or to now when at is zero.
func (r *Registry) TouchOwnerActivity(ctx context.Context, channelID snowflake.ID, at time.Time) (time.Time, error) {
	if at.IsZero() {
		at = r.clock.Now()
	}

	if err := r.store.UpdateOwnerMessageTime(ctx, channelID, at); err != nil {
		return time.Time{}, r.storeError("touch owner activity of", channelID, err)
	}

	r.update(channelID, func(t *Ticket) {
		t.LastOwnerMessage = at
	})

	return at, nil
}

// TouchStaffActivity sets the last staff message time to at, or to now when at is zero.
func (r *Registry) TouchStaffActivity(ctx context.Context, channelID snowflake.ID, at time.Time) (time.Time, error) {
	if at.IsZero() {
		at = r.clock.Now()
	}

	if err := r.store.UpdateStaffMessageTime(ctx, channelID, at); err != nil {
		return time.Time{}, r.storeError("touch staff activity of", channelID, err)
	}

	r.update(channelID, func(t *Ticket) {
		t.LastStaffMessage = at
	})

	return at, nil
}

// OpenTicketsForUser returns the user's open tickets in a server.
// Store failures are logged and yield an empty result.
func (r *Registry) OpenTicketsForUser(ctx context.Context, serverID, userID snowflake.ID) []*Ticket {
	tickets, err := r.store.GetUserTickets(ctx, serverID, userID, false)
	if err != nil {
		r.logger.Error("Failed to get user tickets",
			zap.Uint64("serverID", uint64(serverID)),
			zap.Uint64("userID", uint64(userID)),
			zap.Error(err))

		return nil
	}

	return tickets
}

// All returns copies of every cached open ticket.
func (r *Registry) All() []*Ticket {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tickets := make([]*Ticket, 0, len(r.tickets))
	for _, t := range r.tickets {
		tickets = append(tickets, clone(t))
	}

	slices.SortFunc(tickets, func(a, b *Ticket) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	return tickets
}

// fetch reads a ticket from the store, degrading failures to not found.
func (r *Registry) fetch(ctx context.Context, channelID snowflake.ID) (*Ticket, bool) {
	t, err := r.store.GetTicketByChannel(ctx, channelID)
	if err != nil {
		if !errors.Is(err, types.ErrTicketNotFound) {
			r.logger.Error("Failed to get ticket",
				zap.Uint64("channelID", uint64(channelID)),
				zap.Error(err))
		}

		return nil, false
	}

	return t, true
}

// update applies fn to the cached ticket, if cached, and marks the channel mutated.
func (r *Registry) update(channelID snowflake.ID, fn func(*Ticket)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.markLocked(channelID)

	if t, ok := r.tickets[channelID]; ok {
		fn(t)
	}
}

// evict drops the ticket from the cache and marks the channel mutated.
func (r *Registry) evict(channelID snowflake.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.markLocked(channelID)
	delete(r.tickets, channelID)
}

// markLocked must be called after the store write it records.
func (r *Registry) markLocked(channelID snowflake.ID) {
	r.seq++
	r.marks[channelID] = r.seq
}

func (r *Registry) sequence() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.seq
}

// storeError logs a failed mutation and classifies it.
func (r *Registry) storeError(action string, channelID snowflake.ID, err error) error {
	if errors.Is(err, types.ErrTicketNotFound) {
		return fmt.Errorf("%w: ticket %d", ErrNotFound, channelID)
	}

	r.logger.Error("Failed to "+action+" ticket",
		zap.Uint64("channelID", uint64(channelID)),
		zap.Error(err))

	return fmt.Errorf("%w: %w", ErrPersistence, err)
}
