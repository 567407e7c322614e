package ticket_test

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/google/uuid"
	"github.com/shadowdev/shadowbot/internal/database/types"
	"github.com/shadowdev/shadowbot/internal/setup/config"
	"github.com/shadowdev/shadowbot/internal/ticket"
	"github.com/shadowdev/shadowbot/pkg/utils"
	"go.uber.org/zap"
)

const (
	serverID   = snowflake.ID(1)
	categoryID = snowflake.ID(100)
	staffRole  = snowflake.ID(200)
	pingRole   = snowflake.ID(300)
	panelID    = snowflake.ID(500)
	closeLogID = snowflake.ID(600)
	autoLogID  = snowflake.ID(601)
	selfID     = snowflake.ID(999)
	ownerID    = snowflake.ID(11)
	staffID    = snowflake.ID(22)
	otherID    = snowflake.ID(33)
)

var errStore = errors.New("store unavailable")

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// manualClock fires timers only when advanced.
type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
	// ignoreStop makes Stop report success without stopping the timer.
	ignoreStop bool
}

type manualTimer struct {
	clock   *manualClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newManualClock() *manualClock {
	return &manualClock{now: epoch}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) ticket.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &manualTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)

	return t
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	if t.fired || t.stopped {
		return false
	}

	if !t.clock.ignoreStop {
		t.stopped = true
	}

	return true
}

// Advance moves time forward, running due timers in order on the caller's goroutine.
func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)

	for {
		var next *manualTimer
		for _, t := range c.timers {
			if t.fired || t.stopped || t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}

		if next == nil {
			break
		}

		next.fired = true
		if next.at.After(c.now) {
			c.now = next.at
		}

		c.mu.Unlock()
		next.f()
		c.mu.Lock()
	}

	c.now = target
	c.mu.Unlock()
}

// memoryStore is an in-memory ticket.Store.
type memoryStore struct {
	mu       sync.Mutex
	tickets  map[snowflake.ID]*types.Ticket
	configs  map[string]string
	failures map[string]error
	calls    map[string]int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		tickets:  make(map[snowflake.ID]*types.Ticket),
		configs:  make(map[string]string),
		failures: make(map[string]error),
		calls:    make(map[string]int),
	}
}

func (s *memoryStore) fail(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures[method] = err
}

func (s *memoryStore) count(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls[method]
}

func (s *memoryStore) enter(method string) error {
	s.calls[method]++
	return s.failures[method]
}

func (s *memoryStore) put(t *types.Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tickets[t.ChannelID] = copyTicket(t)
}

func (s *memoryStore) row(channelID snowflake.ID) (*types.Ticket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[channelID]

	return copyTicket(t), ok
}

func copyTicket(t *types.Ticket) *types.Ticket {
	if t == nil {
		return nil
	}

	c := *t
	c.Members = slices.Clone(t.Members)

	return &c
}

func (s *memoryStore) CreateTicket(_ context.Context, t *types.Ticket) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter("CreateTicket"); err != nil {
		return uuid.Nil, err
	}

	if _, exists := s.tickets[t.ChannelID]; exists {
		return uuid.Nil, errors.New("duplicate key value violates unique constraint")
	}

	t.ID = uuid.New()
	s.tickets[t.ChannelID] = copyTicket(t)

	return t.ID, nil
}

func (s *memoryStore) GetTicketByChannel(_ context.Context, channelID snowflake.ID) (*types.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter("GetTicketByChannel"); err != nil {
		return nil, err
	}

	t, ok := s.tickets[channelID]
	if !ok {
		return nil, types.ErrTicketNotFound
	}

	return copyTicket(t), nil
}

func (s *memoryStore) GetAllTickets(_ context.Context, server snowflake.ID, isClosed bool) ([]*types.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter("GetAllTickets"); err != nil {
		return nil, err
	}

	return s.filter(func(t *types.Ticket) bool {
		return t.ServerID == server && t.IsClosed == isClosed
	}), nil
}

func (s *memoryStore) GetUserTickets(
	_ context.Context, server, owner snowflake.ID, isClosed bool,
) ([]*types.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter("GetUserTickets"); err != nil {
		return nil, err
	}

	return s.filter(func(t *types.Ticket) bool {
		return t.ServerID == server && t.OwnerID == owner && t.IsClosed == isClosed
	}), nil
}

func (s *memoryStore) filter(keep func(*types.Ticket) bool) []*types.Ticket {
	var result []*types.Ticket
	for _, t := range s.tickets {
		if keep(t) {
			result = append(result, copyTicket(t))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ChannelID < result[j].ChannelID
	})

	return result
}

func (s *memoryStore) mutate(method string, channelID snowflake.ID, fn func(*types.Ticket)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(method); err != nil {
		return err
	}

	t, ok := s.tickets[channelID]
	if !ok {
		return types.ErrTicketNotFound
	}

	fn(t)

	return nil
}

func (s *memoryStore) UpdateOwnerMessageTime(_ context.Context, channelID snowflake.ID, at time.Time) error {
	return s.mutate("UpdateOwnerMessageTime", channelID, func(t *types.Ticket) {
		t.LastOwnerMessage = at
	})
}

func (s *memoryStore) UpdateStaffMessageTime(_ context.Context, channelID snowflake.ID, at time.Time) error {
	return s.mutate("UpdateStaffMessageTime", channelID, func(t *types.Ticket) {
		t.LastStaffMessage = at
	})
}

func (s *memoryStore) ClaimTicket(_ context.Context, channelID, staff snowflake.ID) error {
	return s.mutate("ClaimTicket", channelID, func(t *types.Ticket) {
		t.ClaimedByID = staff
	})
}

func (s *memoryStore) UnclaimTicket(_ context.Context, channelID snowflake.ID) error {
	return s.mutate("UnclaimTicket", channelID, func(t *types.Ticket) {
		t.ClaimedByID = 0
	})
}

func (s *memoryStore) AddMember(_ context.Context, channelID, memberID snowflake.ID) error {
	return s.mutate("AddMember", channelID, func(t *types.Ticket) {
		if !t.HasMember(memberID) {
			t.Members = append(t.Members, memberID)
		}
	})
}

func (s *memoryStore) RemoveMember(_ context.Context, channelID, memberID snowflake.ID) error {
	return s.mutate("RemoveMember", channelID, func(t *types.Ticket) {
		t.Members = slices.DeleteFunc(t.Members, func(id snowflake.ID) bool {
			return id == memberID
		})
	})
}

func (s *memoryStore) CloseTicket(
	_ context.Context, channelID, closedByID snowflake.ID, reason string, at time.Time,
) error {
	return s.mutate("CloseTicket", channelID, func(t *types.Ticket) {
		t.IsClosed = true
		t.ClosedByID = closedByID
		t.CloseReason = reason
		t.ClosedAt = at
	})
}

func (s *memoryStore) DeleteTicket(_ context.Context, channelID snowflake.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter("DeleteTicket"); err != nil {
		return err
	}

	if _, ok := s.tickets[channelID]; !ok {
		return types.ErrTicketNotFound
	}

	delete(s.tickets, channelID)

	return nil
}

func configKey(server snowflake.ID, key types.ConfigKey) string {
	return server.String() + "/" + string(key)
}

func (s *memoryStore) SetConfig(_ context.Context, server snowflake.ID, key types.ConfigKey, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter("SetConfig"); err != nil {
		return err
	}

	s.configs[configKey(server, key)] = value

	return nil
}

func (s *memoryStore) GetConfig(_ context.Context, server snowflake.ID, key types.ConfigKey) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter("GetConfig"); err != nil {
		return "", err
	}

	value, ok := s.configs[configKey(server, key)]
	if !ok {
		return "", types.ErrConfigNotFound
	}

	return value, nil
}

// sentMessage is a message recorded by fakeGateway.
type sentMessage struct {
	ID      snowflake.ID
	Channel snowflake.ID
	Message ticket.Message
}

type surfaceEdit struct {
	Channel snowflake.ID
	Message snowflake.ID
	Surface ticket.Surface
}

// fakeGateway records every call.
type fakeGateway struct {
	mu        sync.Mutex
	nextID    snowflake.ID
	channels  map[snowflake.ID]*ticket.ChannelInfo
	access    map[snowflake.ID]map[snowflake.ID]ticket.Grant
	sent      []sentMessage
	direct    []sentMessage
	edits     []surfaceEdit
	history   map[snowflake.ID][]ticket.HistoryMessage
	deleted   []snowflake.ID
	revoked   map[snowflake.ID]int
	failures  map[string]error
	failCount map[string]int
}

func newFakeGateway() *fakeGateway {
	g := &fakeGateway{
		nextID:    1000,
		channels:  make(map[snowflake.ID]*ticket.ChannelInfo),
		access:    make(map[snowflake.ID]map[snowflake.ID]ticket.Grant),
		history:   make(map[snowflake.ID][]ticket.HistoryMessage),
		revoked:   make(map[snowflake.ID]int),
		failures:  make(map[string]error),
		failCount: make(map[string]int),
	}

	g.channels[categoryID] = &ticket.ChannelInfo{ID: categoryID, ServerID: serverID, Name: "Tickets", Category: true}
	g.channels[panelID] = &ticket.ChannelInfo{ID: panelID, ServerID: serverID, Name: "open-a-ticket"}

	return g
}

// fail makes the next n calls of method return err; n < 0 fails forever.
func (g *fakeGateway) fail(method string, err error, n int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.failures[method] = err
	g.failCount[method] = n
}

func (g *fakeGateway) check(method string) error {
	err, ok := g.failures[method]
	if !ok {
		return nil
	}

	switch n := g.failCount[method]; {
	case n < 0:
		return err
	case n == 0:
		return nil
	default:
		g.failCount[method] = n - 1
		return err
	}
}

func (g *fakeGateway) newID() snowflake.ID {
	g.nextID++
	return g.nextID
}

func (g *fakeGateway) SelfID() snowflake.ID {
	return selfID
}

func (g *fakeGateway) Channel(_ context.Context, channelID snowflake.ID) (*ticket.ChannelInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.check("Channel"); err != nil {
		return nil, err
	}

	ch, ok := g.channels[channelID]
	if !ok {
		return nil, ticket.ErrUnknownTarget
	}

	c := *ch

	return &c, nil
}

func (g *fakeGateway) CreateChannel(_ context.Context, spec ticket.ChannelSpec) (*ticket.ChannelInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.check("CreateChannel"); err != nil {
		return nil, err
	}

	ch := &ticket.ChannelInfo{ID: g.newID(), ServerID: spec.ServerID, ParentID: spec.CategoryID, Name: spec.Name}
	g.channels[ch.ID] = ch
	g.access[ch.ID] = make(map[snowflake.ID]ticket.Grant)

	for _, grant := range spec.Grants {
		g.access[ch.ID][grant.TargetID] = grant
	}

	c := *ch

	return &c, nil
}

func (g *fakeGateway) RenameChannel(_ context.Context, channelID snowflake.ID, name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.check("RenameChannel"); err != nil {
		return err
	}

	ch, ok := g.channels[channelID]
	if !ok {
		return ticket.ErrUnknownTarget
	}
	ch.Name = name

	return nil
}

func (g *fakeGateway) DeleteChannel(_ context.Context, channelID snowflake.ID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.check("DeleteChannel"); err != nil {
		return err
	}

	if _, ok := g.channels[channelID]; !ok {
		return ticket.ErrUnknownTarget
	}

	delete(g.channels, channelID)
	g.deleted = append(g.deleted, channelID)

	return nil
}

func (g *fakeGateway) SetAccess(_ context.Context, channelID snowflake.ID, grant ticket.Grant) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.check("SetAccess"); err != nil {
		return err
	}

	if g.access[channelID] == nil {
		g.access[channelID] = make(map[snowflake.ID]ticket.Grant)
	}
	g.access[channelID][grant.TargetID] = grant

	return nil
}

func (g *fakeGateway) RemoveAccess(_ context.Context, channelID, targetID snowflake.ID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.check("RemoveAccess"); err != nil {
		return err
	}

	delete(g.access[channelID], targetID)

	return nil
}

func (g *fakeGateway) RevokeSend(_ context.Context, channelID snowflake.ID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.revoked[channelID]++

	if err := g.check("RevokeSend"); err != nil {
		return err
	}

	for id, grant := range g.access[channelID] {
		grant.Send = false
		g.access[channelID][id] = grant
	}

	return nil
}

func (g *fakeGateway) SendMessage(_ context.Context, channelID snowflake.ID, msg ticket.Message) (snowflake.ID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.check("SendMessage"); err != nil {
		return 0, err
	}

	id := g.newID()
	g.sent = append(g.sent, sentMessage{ID: id, Channel: channelID, Message: msg})

	titles := make([]string, 0, len(msg.Embeds))
	for _, e := range msg.Embeds {
		titles = append(titles, e.Title)
	}

	g.history[channelID] = append([]ticket.HistoryMessage{{
		ID:          id,
		AuthorID:    selfID,
		AuthorName:  "shadowbot",
		Content:     msg.Content,
		EmbedTitles: titles,
	}}, g.history[channelID]...)

	return id, nil
}

func (g *fakeGateway) EditSurface(_ context.Context, channelID, messageID snowflake.ID, surface ticket.Surface) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.check("EditSurface"); err != nil {
		return err
	}

	g.edits = append(g.edits, surfaceEdit{Channel: channelID, Message: messageID, Surface: surface})

	return nil
}

func (g *fakeGateway) SendDirect(_ context.Context, userID snowflake.ID, msg ticket.Message) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.check("SendDirect"); err != nil {
		return err
	}

	g.direct = append(g.direct, sentMessage{Channel: userID, Message: msg})

	return nil
}

func (g *fakeGateway) History(_ context.Context, channelID snowflake.ID, limit int) ([]ticket.HistoryMessage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.check("History"); err != nil {
		return nil, err
	}

	history := g.history[channelID]
	if len(history) > limit {
		history = history[:limit]
	}

	return slices.Clone(history), nil
}

// messagesIn returns the messages sent to a channel in order.
func (g *fakeGateway) messagesIn(channelID snowflake.ID) []ticket.Message {
	g.mu.Lock()
	defer g.mu.Unlock()

	var result []ticket.Message
	for _, m := range g.sent {
		if m.Channel == channelID {
			result = append(result, m.Message)
		}
	}

	return result
}

func (g *fakeGateway) channelName(channelID snowflake.ID) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if ch, ok := g.channels[channelID]; ok {
		return ch.Name
	}

	return ""
}

func (g *fakeGateway) grant(channelID, targetID snowflake.ID) (ticket.Grant, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	grant, ok := g.access[channelID][targetID]

	return grant, ok
}

// fakeCooldown grants each key once.
type fakeCooldown struct {
	mu   sync.Mutex
	held map[string]bool
}

func (c *fakeCooldown) Acquire(_ context.Context, key string, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.held == nil {
		c.held = make(map[string]bool)
	}

	if c.held[key] {
		return false, nil
	}
	c.held[key] = true

	return true, nil
}

func testConfig() *config.BotConfig {
	return &config.BotConfig{
		Tickets: config.Tickets{
			PanelChannelID:      panelID,
			AutoCloseDelayHours: 12,
			PingCooldownSeconds: 30,
			Types: map[string]config.TicketType{
				"test1": {
					Name:         "Test",
					Description:  "Test tickets",
					CategoryID:   categoryID,
					StaffRoleIDs: []snowflake.ID{staffRole},
					PingRoleIDs:  []snowflake.ID{pingRole},
				},
			},
		},
		Logs: config.Logs{
			config.LogTicketClose:     {Enabled: true, ChannelID: closeLogID},
			config.LogTicketAutoClose: {Enabled: true, ChannelID: autoLogID},
		},
	}
}

type harness struct {
	controller *ticket.Controller
	registry   *ticket.Registry
	scheduler  *ticket.Scheduler
	store      *memoryStore
	gateway    *fakeGateway
	clock      *manualClock
	cooldown   *fakeCooldown
	config     *config.BotConfig
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		store:    newMemoryStore(),
		gateway:  newFakeGateway(),
		clock:    newManualClock(),
		cooldown: &fakeCooldown{},
		config:   testConfig(),
	}

	h.controller = ticket.NewController(h.store, h.gateway, h.cooldown, h.config, h.clock, zap.NewNop())
	h.controller.SetCleanupRetry(utils.RetryOptions{
		MaxElapsedTime:  time.Second,
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
		MaxRetries:      1,
	})
	h.registry = h.controller.Registry()
	h.scheduler = h.controller.Scheduler()

	t.Cleanup(h.controller.Shutdown)

	return h
}

func owner() ticket.Actor {
	return ticket.Actor{ID: ownerID, Name: "Owner User"}
}

func staff() ticket.Actor {
	return ticket.Actor{ID: staffID, Name: "Staff", RoleIDs: []snowflake.ID{staffRole}}
}

func stranger() ticket.Actor {
	return ticket.Actor{ID: otherID, Name: "Stranger"}
}

func manager() ticket.Actor {
	return ticket.Actor{ID: 44, Name: "Manager", ManageChannels: true}
}

// open opens a ticket for the owner and returns its channel.
func (h *harness) open(t *testing.T) snowflake.ID {
	t.Helper()

	opened, err := h.controller.Open(t.Context(), serverID, owner(), "test1")
	if err != nil {
		t.Fatalf("open ticket: %v", err)
	}

	return opened.Ticket.ChannelID
}

func (h *harness) staffMessage(t *testing.T, channelID snowflake.ID) {
	t.Helper()

	h.controller.OnMessage(t.Context(), ticket.MessageEvent{
		ChannelID: channelID,
		MessageID: 1,
		AuthorID:  staffID,
		RoleIDs:   []snowflake.ID{staffRole},
	})
}

func (h *harness) ownerMessage(t *testing.T, channelID snowflake.ID) {
	t.Helper()

	h.controller.OnMessage(t.Context(), ticket.MessageEvent{
		ChannelID: channelID,
		MessageID: 2,
		AuthorID:  ownerID,
	})
}
