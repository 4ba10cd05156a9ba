package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/automatehub/automatehub/internal/platform/filter"
	"github.com/automatehub/automatehub/internal/platform/pagination"
	"github.com/automatehub/automatehub/internal/services/hub/domain"
	"github.com/automatehub/automatehub/internal/services/hub/domain/account"
	"github.com/automatehub/automatehub/internal/services/hub/domain/conversation"
	"github.com/automatehub/automatehub/internal/services/hub/domain/expert"
	"github.com/automatehub/automatehub/internal/services/hub/domain/notification"
	"github.com/automatehub/automatehub/internal/services/hub/domain/payment"
	"github.com/automatehub/automatehub/internal/services/hub/domain/project"
	"github.com/automatehub/automatehub/internal/services/hub/domain/review"
)

var testNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(""); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestOpenAppliesMigrationsOnce(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "hub.db")
	first, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if len(first.AppliedMigrations()) == 0 {
		t.Fatal("expected migrations on first open")
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	second, err := Open(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer second.Close()
	if applied := second.AppliedMigrations(); len(applied) != 0 {
		t.Fatalf("reapplied migrations: %v", applied)
	}
	status, err := second.MigrationStatus(context.Background())
	if err != nil {
		t.Fatalf("migration status: %v", err)
	}
	for _, migration := range status {
		if !migration.Applied {
			t.Fatalf("migration %s not applied", migration.Name)
		}
	}
}

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	mustCreateUser(t, store, "user-1", "Ana@Example.com", domain.RoleClient)

	err := store.CreateUser(ctx, testUser("user-2", "ana@example.com", domain.RoleClient))
	if !errors.Is(err, account.ErrEmailTaken) {
		t.Fatalf("CreateUser duplicate = %v, want ErrEmailTaken", err)
	}

	got, err := store.GetUserByEmail(ctx, "ANA@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if got.ID != "user-1" || got.Email != "ana@example.com" {
		t.Fatalf("unexpected user: %+v", got)
	}
	if _, err := store.GetUser(ctx, "missing"); !errors.Is(err, account.ErrUserNotFound) {
		t.Fatalf("GetUser missing = %v", err)
	}
}

func TestExpertUsersGetProfileAndPromotionCreatesOne(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	mustCreateUser(t, store, "exp-1", "exp@example.com", domain.RoleExpert)

	profile, err := store.GetExpertProfile(ctx, "exp-1")
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if profile.DisplayName != "exp-1 name" || profile.ReviewCount != 0 || profile.Availability != expert.Available {
		t.Fatalf("unexpected profile: %+v", profile)
	}

	client := mustCreateUser(t, store, "cli-1", "cli@example.com", domain.RoleClient)
	if _, err := store.GetExpertProfile(ctx, client.ID); !errors.Is(err, expert.ErrNotFound) {
		t.Fatalf("client profile = %v, want ErrNotFound", err)
	}
	client.Role = domain.RoleExpert
	client.UpdatedAt = testNow.Add(time.Hour)
	if err := store.UpdateUser(ctx, client); err != nil {
		t.Fatalf("promote: %v", err)
	}
	if _, err := store.GetExpertProfile(ctx, client.ID); err != nil {
		t.Fatalf("promoted profile: %v", err)
	}
}

func TestListUsersPagesNewestFirst(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	for i, id := range []string{"u-1", "u-2", "u-3"} {
		user := testUser(id, id+"@example.com", domain.RoleClient)
		user.CreatedAt = testNow.Add(time.Duration(i) * time.Minute)
		if err := store.CreateUser(ctx, user); err != nil {
			t.Fatalf("create user: %v", err)
		}
	}

	first, err := store.ListUsers(ctx, account.ListQuery{PageSize: 2})
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(first.Users) != 2 || first.Users[0].ID != "u-3" || first.NextPageToken == "" {
		t.Fatalf("unexpected first page: %+v", first)
	}
	cursor, err := pagination.DecodeCursor(first.NextPageToken)
	if err != nil {
		t.Fatalf("decode cursor: %v", err)
	}
	second, err := store.ListUsers(ctx, account.ListQuery{PageSize: 2, Cursor: cursor})
	if err != nil {
		t.Fatalf("list users page 2: %v", err)
	}
	if len(second.Users) != 1 || second.Users[0].ID != "u-1" || second.NextPageToken != "" {
		t.Fatalf("unexpected second page: %+v", second)
	}
}

func TestSearchExpertsFiltersAndPages(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	seedExpert(t, store, "exp-a", "zapier wizard", 5000, []string{"crm", "email"}, []expert.Platform{expert.PlatformZapier})
	seedExpert(t, store, "exp-b", "n8n builder", 9000, []string{"crm"}, []expert.Platform{expert.PlatformN8N})
	seedExpert(t, store, "exp-c", "make specialist", 12000, []string{"sheets"}, []expert.Platform{expert.PlatformMake})

	page, err := store.SearchExperts(ctx, expert.SearchQuery{Skill: "crm", OrderBy: expert.OrderRate, PageSize: 10})
	if err != nil {
		t.Fatalf("search skill: %v", err)
	}
	if got := profileIDs(page.Profiles); len(got) != 2 || got[0] != "exp-a" || got[1] != "exp-b" {
		t.Fatalf("skill search = %v", got)
	}
	if len(page.Profiles[0].Skills) != 2 || page.Profiles[0].Platforms[0] != expert.PlatformZapier {
		t.Fatalf("lists not loaded: %+v", page.Profiles[0])
	}

	page, err = store.SearchExperts(ctx, expert.SearchQuery{Query: "BUILDER", OrderBy: expert.OrderRating, PageSize: 10})
	if err != nil {
		t.Fatalf("search query: %v", err)
	}
	if got := profileIDs(page.Profiles); len(got) != 1 || got[0] != "exp-b" {
		t.Fatalf("query search = %v", got)
	}

	parsed, err := filter.Parse("rate >= 9000", expert.FilterFields)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	first, err := store.SearchExperts(ctx, expert.SearchQuery{Filter: parsed, OrderBy: expert.OrderRate, PageSize: 1})
	if err != nil {
		t.Fatalf("filter search: %v", err)
	}
	if got := profileIDs(first.Profiles); len(got) != 1 || got[0] != "exp-b" || first.NextPageToken == "" {
		t.Fatalf("filter first page = %v token %q", got, first.NextPageToken)
	}
	cursor, err := pagination.DecodeCursor(first.NextPageToken)
	if err != nil {
		t.Fatalf("decode cursor: %v", err)
	}
	second, err := store.SearchExperts(ctx, expert.SearchQuery{Filter: parsed, OrderBy: expert.OrderRate, PageSize: 1, Cursor: cursor})
	if err != nil {
		t.Fatalf("filter second page: %v", err)
	}
	if got := profileIDs(second.Profiles); len(got) != 1 || got[0] != "exp-c" || second.NextPageToken != "" {
		t.Fatalf("filter second page = %v token %q", got, second.NextPageToken)
	}
}

func TestSetExpertVerified(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	mustCreateUser(t, store, "exp-1", "exp@example.com", domain.RoleExpert)

	profile, err := store.SetExpertVerified(ctx, "exp-1", true, testNow.Add(time.Hour))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !profile.Verified {
		t.Fatal("expected verified profile")
	}
	if _, err := store.SetExpertVerified(ctx, "missing", true, testNow); !errors.Is(err, expert.ErrNotFound) {
		t.Fatalf("verify missing = %v", err)
	}
}

func TestAcceptProposalIsAtomic(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	mustCreateUser(t, store, "cli-1", "cli@example.com", domain.RoleClient)
	mustCreateUser(t, store, "exp-1", "exp1@example.com", domain.RoleExpert)
	mustCreateUser(t, store, "exp-2", "exp2@example.com", domain.RoleExpert)
	mustCreateProject(t, store, "proj-1", "cli-1")

	mustCreateProposal(t, store, "prop-1", "proj-1", "exp-1", 40000)
	mustCreateProposal(t, store, "prop-2", "proj-1", "exp-2", 45000)
	if err := store.CreateProposal(ctx, testProposal("prop-3", "proj-1", "exp-1", 1)); !errors.Is(err, project.ErrProposalExists) {
		t.Fatalf("second pending proposal = %v, want ErrProposalExists", err)
	}

	started, accepted, err := store.AcceptProposal(ctx, "proj-1", "prop-2", testNow.Add(time.Hour))
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if started.Status != project.StatusInProgress || started.ExpertID != "exp-2" || started.BudgetCents != 45000 {
		t.Fatalf("unexpected project: %+v", started)
	}
	if accepted.Status != project.ProposalAccepted {
		t.Fatalf("unexpected proposal: %+v", accepted)
	}
	other, err := store.GetProposal(ctx, "prop-1")
	if err != nil {
		t.Fatalf("get other: %v", err)
	}
	if other.Status != project.ProposalRejected {
		t.Fatalf("other proposal status = %s", other.Status)
	}

	if _, _, err := store.AcceptProposal(ctx, "proj-1", "prop-1", testNow.Add(2*time.Hour)); !errors.Is(err, project.ErrProposalNotPending) {
		t.Fatalf("second accept = %v", err)
	}
}

func TestTransitionProjectIsConditional(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	mustCreateUser(t, store, "cli-1", "cli@example.com", domain.RoleClient)
	mustCreateProject(t, store, "proj-1", "cli-1")

	cancelled, err := store.TransitionProject(ctx, project.Transition{
		ProjectID: "proj-1", From: project.StatusOpen, To: project.StatusCancelled, At: testNow.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != project.StatusCancelled || cancelled.CompletedAt != nil {
		t.Fatalf("unexpected project: %+v", cancelled)
	}

	_, err = store.TransitionProject(ctx, project.Transition{
		ProjectID: "proj-1", From: project.StatusOpen, To: project.StatusInProgress, At: testNow.Add(2 * time.Hour),
	})
	wantErr := project.ErrTransition(project.StatusCancelled, project.StatusInProgress)
	if !errors.Is(err, wantErr) {
		t.Fatalf("stale transition = %v", err)
	}
	if _, err := store.GetProject(ctx, "missing"); !errors.Is(err, project.ErrNotFound) {
		t.Fatalf("get missing = %v", err)
	}
}

func TestListOpenProjectsFiltersByPlatform(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	mustCreateUser(t, store, "cli-1", "cli@example.com", domain.RoleClient)
	p := testProject("proj-1", "cli-1")
	p.Platforms = []expert.Platform{expert.PlatformMake}
	if err := store.CreateProject(ctx, p); err != nil {
		t.Fatalf("create project: %v", err)
	}
	mustCreateProject(t, store, "proj-2", "cli-1")

	page, err := store.ListOpenProjects(ctx, project.OpenQuery{Platform: expert.PlatformMake, PageSize: 10})
	if err != nil {
		t.Fatalf("list open: %v", err)
	}
	if len(page.Projects) != 1 || page.Projects[0].ID != "proj-1" {
		t.Fatalf("unexpected page: %+v", page)
	}

	mine, err := store.ListProjectsForUser(ctx, project.UserQuery{UserID: "cli-1", Role: domain.RoleClient, PageSize: 10})
	if err != nil {
		t.Fatalf("list mine: %v", err)
	}
	if len(mine.Projects) != 2 {
		t.Fatalf("mine = %d projects", len(mine.Projects))
	}
}

func TestCreateReviewUpdatesExpertAggregates(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	mustCreateUser(t, store, "cli-1", "cli@example.com", domain.RoleClient)
	mustCreateUser(t, store, "exp-1", "exp@example.com", domain.RoleExpert)
	mustCreateProject(t, store, "proj-1", "cli-1")
	mustCreateProject(t, store, "proj-2", "cli-1")

	for i, rating := range []int{5, 4} {
		projectID := []string{"proj-1", "proj-2"}[i]
		err := store.CreateReview(ctx, review.Review{
			ID:        "rev-" + projectID,
			ProjectID: projectID,
			ExpertID:  "exp-1",
			ClientID:  "cli-1",
			Rating:    rating,
			CreatedAt: testNow.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("create review: %v", err)
		}
	}
	err := store.CreateReview(ctx, review.Review{ID: "rev-dup", ProjectID: "proj-1", ExpertID: "exp-1", ClientID: "cli-1", Rating: 1, CreatedAt: testNow})
	if !errors.Is(err, review.ErrAlreadyReviewed) {
		t.Fatalf("duplicate review = %v", err)
	}

	profile, err := store.GetExpertProfile(ctx, "exp-1")
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if profile.ReviewCount != 2 || profile.RatingAverage != 4.5 {
		t.Fatalf("aggregates = %d / %v", profile.ReviewCount, profile.RatingAverage)
	}

	page, err := store.ListReviewsForExpert(ctx, "exp-1", 10, pagination.Cursor{})
	if err != nil {
		t.Fatalf("list reviews: %v", err)
	}
	if len(page.Reviews) != 2 || page.Reviews[0].ProjectID != "proj-2" {
		t.Fatalf("unexpected reviews: %+v", page.Reviews)
	}
}

func TestAppendMessageSequencesAndDedupes(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	mustCreateUser(t, store, "u-a", "a@example.com", domain.RoleClient)
	mustCreateUser(t, store, "u-b", "b@example.com", domain.RoleExpert)
	conv := conversation.Conversation{ID: "conv-1", ParticipantIDs: [2]string{"u-a", "u-b"}, CreatedAt: testNow}
	if err := store.CreateConversation(ctx, conv); err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	if err := store.CreateConversation(ctx, conversation.Conversation{ID: "conv-2", ParticipantIDs: conv.ParticipantIDs, CreatedAt: testNow}); !errors.Is(err, conversation.ErrConflict) {
		t.Fatalf("duplicate conversation = %v", err)
	}

	first := mustAppend(t, store, "m-1", "u-a", "c-1", false)
	second := mustAppend(t, store, "m-2", "u-b", "c-1", false)
	again := mustAppend(t, store, "m-3", "u-a", "c-1", true)
	if first.Sequence != 1 || second.Sequence != 2 {
		t.Fatalf("sequences = %d, %d", first.Sequence, second.Sequence)
	}
	if again.ID != "m-1" || again.Sequence != 1 {
		t.Fatalf("duplicate returned %+v", again)
	}

	stored, err := store.GetConversation(ctx, "conv-1")
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if stored.LastSequence != 2 || stored.LastMessagePreview != "body c-1" || stored.LastMessageAt == nil {
		t.Fatalf("conversation not updated: %+v", stored)
	}

	before, err := store.ListMessagesBefore(ctx, "conv-1", 0, 1)
	if err != nil {
		t.Fatalf("list before: %v", err)
	}
	if len(before) != 1 || before[0].Sequence != 2 {
		t.Fatalf("latest messages = %+v", before)
	}
	after, err := store.ListMessagesAfter(ctx, "conv-1", 0, 10)
	if err != nil {
		t.Fatalf("list after: %v", err)
	}
	if len(after) != 2 || after[0].Sequence != 1 {
		t.Fatalf("messages after = %+v", after)
	}

	summaries, err := store.ListConversationsForUser(ctx, "u-a", 10, pagination.Cursor{})
	if err != nil {
		t.Fatalf("list conversations: %v", err)
	}
	if len(summaries.Conversations) != 1 || summaries.Conversations[0].UnreadCount != 1 || summaries.Conversations[0].LastReadSequence != 1 {
		t.Fatalf("unexpected summary: %+v", summaries.Conversations)
	}
}

func TestConcurrentSendsAllocateGaplessSequences(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	mustCreateUser(t, store, "u-a", "a@example.com", domain.RoleClient)
	mustCreateUser(t, store, "u-b", "b@example.com", domain.RoleExpert)
	if err := store.CreateConversation(ctx, conversation.Conversation{ID: "conv-1", ParticipantIDs: [2]string{"u-a", "u-b"}, CreatedAt: testNow}); err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	svc := conversation.NewService(store, domain.Deps{})

	const senders = 40
	var wg sync.WaitGroup
	errs := make(chan error, senders)
	for i := range senders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sender := "u-a"
			if i%2 == 1 {
				sender = "u-b"
			}
			if _, err := svc.Send(ctx, "conv-1", sender, fmt.Sprintf("hello %d", i), fmt.Sprintf("c-%d", i)); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent send: %v", err)
	}

	messages, err := store.ListMessagesAfter(ctx, "conv-1", 0, senders+10)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(messages) != senders {
		t.Fatalf("stored %d messages, want %d", len(messages), senders)
	}
	for i, message := range messages {
		if message.Sequence != int64(i+1) {
			t.Fatalf("message %d has sequence %d", i, message.Sequence)
		}
	}
}

func TestMarkReadNeverDecreases(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	mustCreateUser(t, store, "u-a", "a@example.com", domain.RoleClient)
	mustCreateUser(t, store, "u-b", "b@example.com", domain.RoleExpert)
	if err := store.CreateConversation(ctx, conversation.Conversation{ID: "conv-1", ParticipantIDs: [2]string{"u-a", "u-b"}, CreatedAt: testNow}); err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	mustAppend(t, store, "m-1", "u-a", "c-1", false)
	mustAppend(t, store, "m-2", "u-a", "c-2", false)

	state, err := store.MarkRead(ctx, "conv-1", "u-b", 2, testNow.Add(time.Minute))
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if state.LastReadSequence != 2 {
		t.Fatalf("read sequence = %d", state.LastReadSequence)
	}
	state, err = store.MarkRead(ctx, "conv-1", "u-b", 1, testNow.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("mark read backwards: %v", err)
	}
	if state.LastReadSequence != 2 {
		t.Fatalf("read sequence went back to %d", state.LastReadSequence)
	}
	state, err = store.MarkRead(ctx, "conv-1", "u-b", 99, testNow.Add(3*time.Minute))
	if err != nil {
		t.Fatalf("mark read beyond: %v", err)
	}
	if state.LastReadSequence != 2 {
		t.Fatalf("read sequence not capped: %d", state.LastReadSequence)
	}
}

func TestPaymentStatusUpdatesAreConditional(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	mustCreateUser(t, store, "cli-1", "cli@example.com", domain.RoleClient)
	mustCreateUser(t, store, "exp-1", "exp@example.com", domain.RoleExpert)
	mustCreateProject(t, store, "proj-1", "cli-1")

	p := payment.Payment{
		ID:             "pay-1",
		ProjectID:      "proj-1",
		PayerID:        "cli-1",
		PayeeID:        "exp-1",
		AmountCents:    50000,
		FeeCents:       5000,
		Currency:       "usd",
		Status:         payment.StatusPending,
		ProcessorRef:   "pi_1",
		IdempotencyKey: "key-1",
		CreatedAt:      testNow,
		UpdatedAt:      testNow,
	}
	if err := store.CreatePayment(ctx, p); err != nil {
		t.Fatalf("create payment: %v", err)
	}
	dup := p
	dup.ID = "pay-2"
	if err := store.CreatePayment(ctx, dup); !errors.Is(err, payment.ErrConflict) {
		t.Fatalf("duplicate key = %v", err)
	}

	byRef, err := store.GetPaymentByProcessorRef(ctx, "pi_1")
	if err != nil || byRef.ID != "pay-1" {
		t.Fatalf("by ref = %+v, %v", byRef, err)
	}
	updated, err := store.UpdatePaymentStatus(ctx, "pay-1", payment.StatusPending, payment.StatusSucceeded, testNow.Add(time.Minute))
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if updated.Status != payment.StatusSucceeded {
		t.Fatalf("status = %s", updated.Status)
	}
	if _, err := store.UpdatePaymentStatus(ctx, "pay-1", payment.StatusPending, payment.StatusFailed, testNow.Add(2*time.Minute)); !errors.Is(err, payment.ErrConflict) {
		t.Fatalf("stale update = %v", err)
	}
	if _, err := store.UpdatePaymentStatus(ctx, "missing", payment.StatusPending, payment.StatusFailed, testNow); !errors.Is(err, payment.ErrNotFound) {
		t.Fatalf("missing update = %v", err)
	}

	for _, userID := range []string{"cli-1", "exp-1"} {
		page, err := store.ListPaymentsForUser(ctx, userID, 10, pagination.Cursor{})
		if err != nil {
			t.Fatalf("list payments: %v", err)
		}
		if len(page.Payments) != 1 {
			t.Fatalf("%s sees %d payments", userID, len(page.Payments))
		}
	}
}

func TestNotificationsDedupeAndMarkRead(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	record := notification.Notification{
		ID:              "n-1",
		RecipientUserID: "user-1",
		Topic:           notification.TopicWelcome,
		DedupeKey:       "account.welcome:user-1",
		Source:          "hub",
		CreatedAt:       testNow,
		UpdatedAt:       testNow,
	}
	if err := store.PutNotification(ctx, record); err != nil {
		t.Fatalf("put: %v", err)
	}
	dup := record
	dup.ID = "n-2"
	if err := store.PutNotification(ctx, dup); !errors.Is(err, notification.ErrConflict) {
		t.Fatalf("duplicate = %v", err)
	}
	plain := record
	plain.ID = "n-3"
	plain.DedupeKey = ""
	plain.CreatedAt = testNow.Add(time.Minute)
	plain.UpdatedAt = plain.CreatedAt
	if err := store.PutNotification(ctx, plain); err != nil {
		t.Fatalf("put without dedupe: %v", err)
	}

	found, err := store.GetNotificationByRecipientAndDedupeKey(ctx, "user-1", record.DedupeKey)
	if err != nil || found.ID != "n-1" || found.PayloadJSON != "{}" {
		t.Fatalf("by dedupe = %+v, %v", found, err)
	}

	page, err := store.ListNotificationsByRecipient(ctx, "user-1", 1, pagination.Cursor{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Notifications) != 1 || page.Notifications[0].ID != "n-3" || page.NextPageToken == "" {
		t.Fatalf("first page = %+v", page)
	}

	read, err := store.MarkNotificationRead(ctx, "user-1", "n-1", testNow.Add(time.Hour))
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	again, err := store.MarkNotificationRead(ctx, "user-1", "n-1", testNow.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("mark read again: %v", err)
	}
	if read.ReadAt == nil || !again.ReadAt.Equal(*read.ReadAt) {
		t.Fatalf("read time changed: %v -> %v", read.ReadAt, again.ReadAt)
	}
	if _, err := store.MarkNotificationRead(ctx, "user-2", "n-1", testNow); !errors.Is(err, notification.ErrNotFound) {
		t.Fatalf("foreign mark read = %v", err)
	}
	unread, err := store.CountUnreadNotifications(ctx, "user-1")
	if err != nil || unread != 1 {
		t.Fatalf("unread = %d, %v", unread, err)
	}
}

func TestDashboardAggregates(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	mustCreateUser(t, store, "cli-1", "cli@example.com", domain.RoleClient)
	mustCreateUser(t, store, "exp-1", "exp@example.com", domain.RoleExpert)
	mustCreateProject(t, store, "proj-1", "cli-1")
	if _, err := store.SetExpertVerified(ctx, "exp-1", true, testNow); err != nil {
		t.Fatalf("verify: %v", err)
	}

	roles, err := store.CountUsersByRole(ctx)
	if err != nil {
		t.Fatalf("count roles: %v", err)
	}
	if roles["client"] != 1 || roles["expert"] != 1 {
		t.Fatalf("roles = %v", roles)
	}
	projects, err := store.CountProjectsByStatus(ctx)
	if err != nil || projects["open"] != 1 {
		t.Fatalf("projects = %v, %v", projects, err)
	}
	verified, err := store.CountVerifiedExperts(ctx)
	if err != nil || verified != 1 {
		t.Fatalf("verified = %d, %v", verified, err)
	}
	reviews, err := store.ReviewTotals(ctx)
	if err != nil || reviews.Count != 0 || reviews.AverageRating != 0 {
		t.Fatalf("reviews = %+v, %v", reviews, err)
	}
	payments, err := store.PaymentTotalsByStatus(ctx)
	if err != nil || len(payments) != 0 {
		t.Fatalf("payments = %v, %v", payments, err)
	}
}

func openTempStore(t *testing.T) *Store {
	t.Helper()
	storePath := filepath.Join(t.TempDir(), "hub.db")
	store, err := Open(storePath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if closeErr := store.Close(); closeErr != nil {
			t.Fatalf("close store: %v", closeErr)
		}
	})
	return store
}

func testUser(id, email string, role domain.Role) account.User {
	return account.User{
		ID:           id,
		Email:        email,
		Name:         id + " name",
		Role:         role,
		Status:       account.StatusActive,
		Locale:       "en-US",
		PasswordHash: "hash",
		CreatedAt:    testNow,
		UpdatedAt:    testNow,
	}
}

func mustCreateUser(t *testing.T, store *Store, id, email string, role domain.Role) account.User {
	t.Helper()
	user := testUser(id, email, role)
	if err := store.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("create user %s: %v", id, err)
	}
	user.Email = account.NormalizeEmail(email)
	return user
}

func seedExpert(t *testing.T, store *Store, id, headline string, rate int64, skills []string, platforms []expert.Platform) {
	t.Helper()
	mustCreateUser(t, store, id, id+"@example.com", domain.RoleExpert)
	err := store.UpdateExpertProfile(context.Background(), expert.Profile{
		UserID:          id,
		Headline:        headline,
		Skills:          skills,
		Platforms:       platforms,
		HourlyRateCents: rate,
		Currency:        "usd",
		Availability:    expert.Available,
		UpdatedAt:       testNow,
	})
	if err != nil {
		t.Fatalf("update profile %s: %v", id, err)
	}
}

func profileIDs(profiles []expert.Profile) []string {
	ids := make([]string, 0, len(profiles))
	for _, profile := range profiles {
		ids = append(ids, profile.UserID)
	}
	return ids
}

func testProject(id, clientID string) project.Project {
	return project.Project{
		ID:          id,
		ClientID:    clientID,
		Title:       "Sync CRM " + id,
		Description: "Keep the CRM and the mailing list in sync.",
		BudgetCents: 50000,
		Currency:    "usd",
		Status:      project.StatusOpen,
		CreatedAt:   testNow,
		UpdatedAt:   testNow,
	}
}

func mustCreateProject(t *testing.T, store *Store, id, clientID string) {
	t.Helper()
	if err := store.CreateProject(context.Background(), testProject(id, clientID)); err != nil {
		t.Fatalf("create project %s: %v", id, err)
	}
}

func testProposal(id, projectID, expertID string, bid int64) project.Proposal {
	return project.Proposal{
		ID:            id,
		ProjectID:     projectID,
		ExpertID:      expertID,
		CoverLetter:   "I can do it.",
		BidCents:      bid,
		EstimatedDays: 3,
		Status:        project.ProposalPending,
		CreatedAt:     testNow,
		UpdatedAt:     testNow,
	}
}

func mustCreateProposal(t *testing.T, store *Store, id, projectID, expertID string, bid int64) {
	t.Helper()
	if err := store.CreateProposal(context.Background(), testProposal(id, projectID, expertID, bid)); err != nil {
		t.Fatalf("create proposal %s: %v", id, err)
	}
}

func mustAppend(t *testing.T, store *Store, id, senderID, clientMessageID string, wantDuplicate bool) conversation.Message {
	t.Helper()
	message, duplicate, err := store.AppendMessage(context.Background(), conversation.Message{
		ID:              id,
		ConversationID:  "conv-1",
		SenderID:        senderID,
		Body:            "body " + clientMessageID,
		ClientMessageID: clientMessageID,
		SentAt:          testNow.Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("append %s: %v", id, err)
	}
	if duplicate != wantDuplicate {
		t.Fatalf("append %s duplicate = %v, want %v", id, duplicate, wantDuplicate)
	}
	return message
}
