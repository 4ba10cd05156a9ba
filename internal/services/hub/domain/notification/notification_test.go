package notification

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/automatehub/automatehub/internal/platform/events"
	"github.com/automatehub/automatehub/internal/platform/pagination"
	"github.com/automatehub/automatehub/internal/services/hub/domain/domaintest"
)

func newTestService(t *testing.T) (*Service, *fakeStore, *domaintest.Clock) {
	t.Helper()
	clock := domaintest.NewClock(time.Date(2026, 2, 21, 20, 25, 0, 0, time.UTC))
	deps, _ := domaintest.Deps(clock, "notif")
	store := newFakeStore()
	return NewService(store, deps), store, clock
}

func TestCreateIntent_IdempotentByDedupeKey(t *testing.T) {
	t.Parallel()

	svc, store, _ := newTestService(t)
	pusher := &recordingPusher{}
	svc.SetPusher(pusher)

	input := CreateIntentInput{
		RecipientUserID: "user-1",
		Topic:           TopicProposalReceived,
		PayloadJSON:     `{"proposal_id":"prop-1"}`,
		DedupeKey:       "project.proposal_received:prop-1",
		Source:          "hub",
	}
	first, err := svc.CreateIntent(context.Background(), input)
	if err != nil {
		t.Fatalf("create first intent: %v", err)
	}
	second, err := svc.CreateIntent(context.Background(), input)
	if err != nil {
		t.Fatalf("create second intent: %v", err)
	}

	if second.ID != first.ID {
		t.Fatalf("expected dedupe create to return existing notification id %q, got %q", first.ID, second.ID)
	}
	if got := store.notificationCount(); got != 1 {
		t.Fatalf("expected one persisted notification, got %d", got)
	}
	if got := pusher.count(); got != 1 {
		t.Fatalf("expected one realtime push, got %d", got)
	}
}

func TestCreateIntent_RequiresRecipientAndTopic(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	if _, err := svc.CreateIntent(context.Background(), CreateIntentInput{Topic: "x"}); !errors.Is(err, ErrRecipientRequired) {
		t.Fatalf("missing recipient err = %v", err)
	}
	if _, err := svc.CreateIntent(context.Background(), CreateIntentInput{RecipientUserID: "u"}); !errors.Is(err, ErrTopicRequired) {
		t.Fatalf("missing topic err = %v", err)
	}
}

func TestListInbox_FiltersRecipientAndPaginatesNewestFirst(t *testing.T) {
	t.Parallel()

	svc, _, clock := newTestService(t)
	create := func(recipient, dedupe string) {
		t.Helper()
		clock.Advance(time.Minute)
		if _, err := svc.CreateIntent(context.Background(), CreateIntentInput{
			RecipientUserID: recipient,
			Topic:           TopicMessageReceived,
			DedupeKey:       dedupe,
		}); err != nil {
			t.Fatalf("create intent %s: %v", dedupe, err)
		}
	}
	create("user-1", "a")
	create("user-2", "x")
	create("user-1", "b")
	create("user-1", "c")

	pageOne, err := svc.ListInbox(context.Background(), "user-1", 2, "")
	if err != nil {
		t.Fatalf("list page one: %v", err)
	}
	if got := len(pageOne.Notifications); got != 2 {
		t.Fatalf("page one notifications = %d, want 2", got)
	}
	if pageOne.Notifications[0].DedupeKey != "c" || pageOne.Notifications[1].DedupeKey != "b" {
		t.Fatalf("unexpected page one order: %+v", pageOne.Notifications)
	}
	if pageOne.UnreadCount != 3 {
		t.Fatalf("unread = %d, want 3", pageOne.UnreadCount)
	}
	if pageOne.NextPageToken == "" {
		t.Fatal("expected non-empty next page token")
	}

	pageTwo, err := svc.ListInbox(context.Background(), "user-1", 2, pageOne.NextPageToken)
	if err != nil {
		t.Fatalf("list page two: %v", err)
	}
	if got := len(pageTwo.Notifications); got != 1 || pageTwo.Notifications[0].DedupeKey != "a" {
		t.Fatalf("unexpected page two: %+v", pageTwo.Notifications)
	}

	if _, err := svc.ListInbox(context.Background(), "user-1", 2, "!!"); !errors.Is(err, ErrPageTokenInvalid) {
		t.Fatalf("bad token err = %v", err)
	}
}

func TestMarkRead_PersistsReadTimestamp(t *testing.T) {
	t.Parallel()

	svc, _, clock := newTestService(t)
	created, err := svc.CreateIntent(context.Background(), CreateIntentInput{
		RecipientUserID: "user-1",
		Topic:           TopicWelcome,
	})
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}

	if _, err := svc.MarkRead(context.Background(), "user-2", created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other recipient err = %v", err)
	}

	clock.Advance(time.Hour)
	read, err := svc.MarkRead(context.Background(), "user-1", created.ID)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if read.ReadAt == nil || !read.ReadAt.Equal(clock.Now()) {
		t.Fatalf("read_at = %v, want %v", read.ReadAt, clock.Now())
	}
	unread, err := svc.UnreadCount(context.Background(), "user-1")
	if err != nil || unread != 0 {
		t.Fatalf("unread = %d, %v", unread, err)
	}
}

func TestCreateIntent_ConflictReturnsExisting(t *testing.T) {
	t.Parallel()

	svc, store, _ := newTestService(t)
	input := CreateIntentInput{RecipientUserID: "user-1", Topic: TopicWelcome, DedupeKey: "welcome"}
	first, err := svc.CreateIntent(context.Background(), input)
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	store.mu.Lock()
	store.missLookups = 1
	store.mu.Unlock()
	second, err := svc.CreateIntent(context.Background(), input)
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("ids differ: %q vs %q", first.ID, second.ID)
	}
}

func TestBridge_CreatesIntentsForRecipients(t *testing.T) {
	t.Parallel()

	svc, store, _ := newTestService(t)
	bridge := NewBridge(svc)

	err := bridge.Publish(context.Background(),
		events.Event{Type: events.TypeProposalSubmitted, Payload: map[string]string{"proposal_id": "p1", "client_id": "c1", "expert_id": "e1"}},
		events.Event{Type: events.TypePaymentUpdated, Payload: map[string]string{"payment_id": "pay1", "status": "succeeded", "payer_id": "c1", "payee_id": "e1"}},
		events.Event{Type: events.TypeProposalSubmitted, Payload: map[string]string{"proposal_id": "p1", "client_id": "c1"}},
		events.Event{Type: "unknown.event", Payload: map[string]string{"user_id": "c1"}},
	)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got := store.notificationCount(); got != 3 {
		t.Fatalf("notifications = %d, want 3", got)
	}
	if got := store.countFor("e1"); got != 1 {
		t.Fatalf("expert notifications = %d, want 1", got)
	}
}

func TestIntents_IgnoresNonStringPayloads(t *testing.T) {
	t.Parallel()

	if got := Intents(events.Event{Type: events.TypeUserRegistered, Payload: 42}); got != nil {
		t.Fatalf("intents = %+v", got)
	}
	got := Intents(events.Event{Type: events.TypeUserRegistered, Payload: map[string]string{"user_id": "u1"}})
	if len(got) != 1 || got[0].Topic != TopicWelcome || got[0].DedupeKey != TopicWelcome+":u1" {
		t.Fatalf("intents = %+v", got)
	}
}

type recordingPusher struct {
	mu    sync.Mutex
	items []Notification
}

func (p *recordingPusher) PushNotification(_ context.Context, notification Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items = append(p.items, notification)
}

func (p *recordingPusher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}

type fakeStore struct {
	mu            sync.Mutex
	notifications map[string]Notification
	dedupeIndex   map[string]string

	// missLookups makes the next dedupe lookups miss, as a concurrent writer would.
	missLookups int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		notifications: make(map[string]Notification),
		dedupeIndex:   make(map[string]string),
	}
}

func (s *fakeStore) notificationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.notifications)
}

func (s *fakeStore) countFor(recipient string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, notification := range s.notifications {
		if notification.RecipientUserID == recipient {
			n++
		}
	}
	return n
}

func (s *fakeStore) GetNotificationByRecipientAndDedupeKey(_ context.Context, recipientUserID string, dedupeKey string) (Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.missLookups > 0 {
		s.missLookups--
		return Notification{}, ErrNotFound
	}
	notificationID, ok := s.dedupeIndex[dedupeKeyIndexKey(recipientUserID, dedupeKey)]
	if !ok {
		return Notification{}, ErrNotFound
	}
	return s.notifications[notificationID], nil
}

func (s *fakeStore) PutNotification(_ context.Context, notification Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := dedupeKeyIndexKey(notification.RecipientUserID, notification.DedupeKey)
	if notification.DedupeKey != "" {
		if existingID, ok := s.dedupeIndex[key]; ok && existingID != notification.ID {
			return ErrConflict
		}
		s.dedupeIndex[key] = notification.ID
	}
	s.notifications[notification.ID] = notification
	return nil
}

func (s *fakeStore) ListNotificationsByRecipient(_ context.Context, recipientUserID string, pageSize int, cursor pagination.Cursor) (NotificationPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	filtered := make([]Notification, 0, len(s.notifications))
	for _, notification := range s.notifications {
		if notification.RecipientUserID == recipientUserID {
			filtered = append(filtered, notification)
		}
	}
	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].CreatedAt.Equal(filtered[j].CreatedAt) {
			return filtered[i].ID > filtered[j].ID
		}
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	start := 0
	if cursor.ID != "" {
		for idx := range filtered {
			if filtered[idx].ID == cursor.ID {
				start = idx + 1
				break
			}
		}
	}
	if start >= len(filtered) {
		return NotificationPage{}, nil
	}
	end := min(start+pageSize, len(filtered))
	page := NotificationPage{Notifications: append([]Notification(nil), filtered[start:end]...)}
	if end < len(filtered) {
		page.NextPageToken = pagination.EncodeCursor(pagination.Cursor{ID: filtered[end-1].ID})
	}
	return page, nil
}

func (s *fakeStore) CountUnreadNotifications(_ context.Context, recipientUserID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	unread := 0
	for _, notification := range s.notifications {
		if notification.RecipientUserID == recipientUserID && notification.ReadAt == nil {
			unread++
		}
	}
	return unread, nil
}

func (s *fakeStore) MarkNotificationRead(_ context.Context, recipientUserID string, notificationID string, readAt time.Time) (Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	notification, ok := s.notifications[notificationID]
	if !ok || notification.RecipientUserID != recipientUserID {
		return Notification{}, ErrNotFound
	}
	if notification.ReadAt == nil {
		value := readAt.UTC()
		notification.ReadAt = &value
		notification.UpdatedAt = value
		s.notifications[notification.ID] = notification
	}
	return notification, nil
}

func dedupeKeyIndexKey(recipientUserID string, dedupeKey string) string {
	return strings.TrimSpace(recipientUserID) + "|" + strings.TrimSpace(dedupeKey)
}
