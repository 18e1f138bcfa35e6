package reconcile

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/successplus/membership-backend/internal/activity"
	"github.com/successplus/membership-backend/internal/entitlements"
	"github.com/successplus/membership-backend/internal/members"
	"github.com/successplus/membership-backend/internal/subscriptions"
	"github.com/successplus/membership-backend/internal/users"
	"github.com/successplus/membership-backend/pkg/auth"
	"github.com/successplus/membership-backend/pkg/config"
	"github.com/successplus/membership-backend/pkg/db"
	"github.com/successplus/membership-backend/pkg/db/models"
	"github.com/successplus/membership-backend/pkg/enums"
	pkgerrors "github.com/successplus/membership-backend/pkg/errors"
	"github.com/successplus/membership-backend/pkg/logger"
	"github.com/successplus/membership-backend/pkg/pagination"
)

var fixedNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

// cheapPassword keeps argon2 fast in tests.
var cheapPassword = config.PasswordConfig{ArgonMemoryKB: 64, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32}

type harness struct {
	conn     *gorm.DB
	service  *Service
	activity *activity.Repository
	users    *users.Repository
	subs     subscriptions.Repository
	logs     *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true, TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.Member{}, &models.User{}, &models.Subscription{}, &models.ActivityLog{}))

	logs := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "reconcile-test", Level: logger.ParseLevel("debug"), Output: logs})

	activityRepo := activity.NewRepository(conn)
	usersRepo := users.NewRepository(conn)
	subsRepo := subscriptions.NewRepository(conn)
	service, err := NewService(ServiceParams{
		DB:            db.NewFromGorm(conn),
		Users:         usersRepo,
		Members:       members.NewRepository(conn),
		Subscriptions: subsRepo,
		Audit:         activity.NewRecorder(activityRepo, nil, logg),
		Password:      cheapPassword,
		Logger:        logg,
		Now:           func() time.Time { return fixedNow },
	})
	require.NoError(t, err)

	return &harness{conn: conn, service: service, activity: activityRepo, users: usersRepo, subs: subsRepo, logs: logs}
}

func createdEvent(subID, email string) Event {
	start := fixedNow.Add(-24 * time.Hour)
	end := fixedNow.Add(30 * 24 * time.Hour)
	total := decimal.RequireFromString("19.99")
	return Event{
		ID:                 "evt_" + subID,
		Type:               "subscription_created",
		Provider:           enums.ProviderPaykickstart,
		SubscriptionID:     subID,
		CustomerID:         "cus_" + subID,
		Email:              email,
		FirstName:          "Ada",
		LastName:           "Lovelace",
		ProductName:        "Success+ Collective Monthly",
		Status:             "active",
		BillingCycle:       "monthly",
		CurrentPeriodStart: &start,
		CurrentPeriodEnd:   &end,
		TotalSpent:         &total,
		LifetimeValue:      &total,
	}
}

func followUp(eventType, subID string) Event {
	return Event{ID: "evt_" + eventType, Type: eventType, Provider: enums.ProviderPaykickstart, SubscriptionID: subID}
}

func (h *harness) member(t *testing.T, email string) *models.Member {
	t.Helper()
	member, err := members.NewRepository(h.conn).FindByEmail(context.Background(), email)
	require.NoError(t, err)
	require.NotNil(t, member)
	return member
}

func (h *harness) subscription(t *testing.T, id string) *models.Subscription {
	t.Helper()
	sub, err := h.subs.FindByProviderID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, sub)
	return sub
}

func (h *harness) actions(t *testing.T, email string) []enums.ActivityAction {
	t.Helper()
	user, err := h.users.FindByEmail(context.Background(), email)
	require.NoError(t, err)
	require.NotNil(t, user)
	page, err := h.activity.ListForUser(context.Background(), user.ID, pagination.Params{Limit: pagination.MaxLimit})
	require.NoError(t, err)
	out := make([]enums.ActivityAction, 0, len(page.Entries))
	for _, entry := range page.Entries {
		out = append(out, entry.Action)
	}
	return out
}

func TestApplyCreatedProvisionsNewPayer(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.service.Apply(ctx, createdEvent("sub_new", "Ada@Example.com "))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, KindCreated, res.Kind)

	user, err := h.users.FindByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	require.NotNil(t, user)
	require.NotNil(t, user.MemberID)
	assert.Equal(t, enums.UserRoleSubscriber, user.Role)
	assert.NotEmpty(t, user.PasswordHash)

	member := h.member(t, "ada@example.com")
	assert.Equal(t, *user.MemberID, member.ID)
	assert.Equal(t, enums.MembershipStatusActive, member.MembershipStatus)
	assert.Equal(t, "Customer", member.MembershipTier)
	require.NotNil(t, member.PaykickstartCustomerID)
	assert.Equal(t, "cus_sub_new", *member.PaykickstartCustomerID)
	assert.True(t, member.TotalSpent.Equal(decimal.RequireFromString("19.99")))

	sub := h.subscription(t, "sub_new")
	assert.Equal(t, enums.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, "COLLECTIVE", sub.Tier)
	assert.Equal(t, enums.BillingCycleMonthly, sub.BillingCycle)
	assert.Equal(t, member.ID, sub.MemberID)

	assert.Equal(t, []enums.ActivityAction{enums.ActivitySubscriptionCreated}, h.actions(t, "ada@example.com"))

	resolver, err := subscriptions.NewResolver(subscriptions.ResolverParams{
		Users:         h.users,
		Members:       members.NewRepository(h.conn),
		Subscriptions: h.subs,
		Now:           func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	evaluator, err := entitlements.NewEvaluator(entitlements.EvaluatorParams{Resolver: resolver})
	require.NoError(t, err)

	identity := &auth.Identity{UserID: user.ID, Email: user.Email}
	assert.True(t, evaluator.CanAccessMagazine(ctx, identity))
	assert.True(t, evaluator.CanAccess(ctx, identity, entitlements.Requirement{IsPremium: true, RequiredTier: "COLLECTIVE"}))
	assert.False(t, evaluator.CanAccess(ctx, identity, entitlements.Requirement{IsPremium: true, RequiredTier: "INSIDER"}))
}

func TestApplyCreatedReplayIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ev := createdEvent("sub_replay", "replay@example.com")

	_, err := h.service.Apply(ctx, ev)
	require.NoError(t, err)
	_, err = h.service.Apply(ctx, ev)
	require.NoError(t, err)

	var subCount, userCount, memberCount int64
	require.NoError(t, h.conn.Model(&models.Subscription{}).Count(&subCount).Error)
	require.NoError(t, h.conn.Model(&models.User{}).Count(&userCount).Error)
	require.NoError(t, h.conn.Model(&models.Member{}).Count(&memberCount).Error)
	assert.EqualValues(t, 1, subCount)
	assert.EqualValues(t, 1, userCount)
	assert.EqualValues(t, 1, memberCount)
	assert.Equal(t, enums.MembershipStatusActive, h.member(t, "replay@example.com").MembershipStatus)
}

func TestApplyCreatedLinksExistingUser(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	existing := &models.User{Email: "known@example.com", PasswordHash: "real-hash", Role: enums.UserRoleEditor}
	require.NoError(t, h.conn.Create(existing).Error)

	_, err := h.service.Apply(ctx, createdEvent("sub_known", "known@example.com"))
	require.NoError(t, err)

	user, err := h.users.FindByID(ctx, existing.ID)
	require.NoError(t, err)
	require.NotNil(t, user.MemberID)
	assert.Equal(t, "real-hash", user.PasswordHash)
	assert.Equal(t, enums.UserRoleEditor, user.Role)
}

func TestApplyCancelAtPeriodEndKeepsAccess(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.service.Apply(ctx, createdEvent("sub_defer", "defer@example.com"))
	require.NoError(t, err)

	ev := followUp("subscription_cancelled", "sub_defer")
	ev.CancelAtPeriodEnd = Bool(true)
	res, err := h.service.Apply(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, KindCancelled, res.Kind)

	sub := h.subscription(t, "sub_defer")
	assert.Equal(t, enums.SubscriptionStatusActive, sub.Status)
	assert.True(t, sub.CancelAtPeriodEnd)
	assert.Nil(t, sub.CanceledAt)
	assert.Equal(t, enums.MembershipStatusActive, h.member(t, "defer@example.com").MembershipStatus)
	assert.Contains(t, h.actions(t, "defer@example.com"), enums.ActivitySubscriptionCancelled)
}

func TestApplyUpdateWithoutCancelFlagKeepsDeferredCancel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.service.Apply(ctx, createdEvent("sub_keep", "keep@example.com"))
	require.NoError(t, err)

	cancel := followUp("subscription_cancelled", "sub_keep")
	cancel.CancelAtPeriodEnd = Bool(true)
	_, err = h.service.Apply(ctx, cancel)
	require.NoError(t, err)

	update := followUp("subscription_updated", "sub_keep")
	update.ProductName = "Success+ Insider Monthly"
	_, err = h.service.Apply(ctx, update)
	require.NoError(t, err)

	sub := h.subscription(t, "sub_keep")
	assert.Equal(t, "INSIDER", sub.Tier)
	assert.True(t, sub.CancelAtPeriodEnd)

	undo := followUp("subscription_updated", "sub_keep")
	undo.CancelAtPeriodEnd = Bool(false)
	_, err = h.service.Apply(ctx, undo)
	require.NoError(t, err)
	assert.False(t, h.subscription(t, "sub_keep").CancelAtPeriodEnd)
}

func TestApplyImmediateCancelRevokes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.service.Apply(ctx, createdEvent("sub_now", "now@example.com"))
	require.NoError(t, err)

	_, err = h.service.Apply(ctx, followUp("subscription.canceled", "sub_now"))
	require.NoError(t, err)

	sub := h.subscription(t, "sub_now")
	assert.Equal(t, enums.SubscriptionStatusCanceled, sub.Status)
	require.NotNil(t, sub.CanceledAt)
	assert.True(t, sub.CanceledAt.Equal(fixedNow))
	assert.Equal(t, enums.MembershipStatusInactive, h.member(t, "now@example.com").MembershipStatus)
}

func TestApplyPaymentFailureAndRecovery(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.service.Apply(ctx, createdEvent("sub_pay", "pay@example.com"))
	require.NoError(t, err)

	_, err = h.service.Apply(ctx, followUp("invoice.payment_failed", "sub_pay"))
	require.NoError(t, err)
	assert.Equal(t, enums.SubscriptionStatusPastDue, h.subscription(t, "sub_pay").Status)
	assert.Equal(t, enums.MembershipStatusInactive, h.member(t, "pay@example.com").MembershipStatus)

	res, err := h.service.Apply(ctx, followUp("payment_succeeded", "sub_pay"))
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, enums.SubscriptionStatusActive, h.subscription(t, "sub_pay").Status)
	assert.Equal(t, enums.MembershipStatusActive, h.member(t, "pay@example.com").MembershipStatus)

	res, err = h.service.Apply(ctx, followUp("invoice.paid", "sub_pay"))
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, enums.SubscriptionStatusActive, h.subscription(t, "sub_pay").Status)

	assert.Len(t, h.actions(t, "pay@example.com"), 4)
}

func TestApplyUpdatedChangesTierAndKeepsMissingFields(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.service.Apply(ctx, createdEvent("sub_up", "up@example.com"))
	require.NoError(t, err)

	ev := followUp("subscription_updated", "sub_up")
	ev.ProductName = "Success+ Insider Annual"
	ev.BillingCycle = "annual"
	_, err = h.service.Apply(ctx, ev)
	require.NoError(t, err)

	sub := h.subscription(t, "sub_up")
	assert.Equal(t, "INSIDER", sub.Tier)
	assert.Equal(t, enums.BillingCycleAnnual, sub.BillingCycle)
	assert.Equal(t, enums.SubscriptionStatusActive, sub.Status)
	require.NotNil(t, sub.CurrentPeriodEnd)
}

func TestApplyAffiliatePayerWithoutPeriodOrCustomerID(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.service.Apply(ctx, Event{
		ID:             "evt_pk_new",
		Type:           "subscription_created",
		Provider:       enums.ProviderPaykickstart,
		SubscriptionID: "pk_new",
		Email:          "new@example.com",
		ProductName:    "SUCCESS+ Insider",
		Status:         "active",
	})
	require.NoError(t, err)

	sub := h.subscription(t, "pk_new")
	assert.Equal(t, "INSIDER", sub.Tier)
	assert.Nil(t, sub.CurrentPeriodEnd)

	member := h.member(t, "new@example.com")
	assert.Equal(t, enums.MembershipStatusActive, member.MembershipStatus)
	require.NotNil(t, member.PaykickstartCustomerID)

	user, err := h.users.FindByEmail(ctx, "new@example.com")
	require.NoError(t, err)
	require.NotNil(t, user)

	resolver, err := subscriptions.NewResolver(subscriptions.ResolverParams{
		Users:         h.users,
		Members:       members.NewRepository(h.conn),
		Subscriptions: h.subs,
		Now:           func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	evaluator, err := entitlements.NewEvaluator(entitlements.EvaluatorParams{Resolver: resolver})
	require.NoError(t, err)

	identity := &auth.Identity{UserID: user.ID, Email: user.Email}
	assert.True(t, evaluator.CanAccessMagazine(ctx, identity))

	status, err := resolver.Resolve(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, status.Provider)
	assert.Equal(t, enums.ProviderPaykickstart, *status.Provider)
	assert.Nil(t, status.CurrentPeriodEnd)

	// A real customer id replaces the stand-in.
	update := followUp("subscription_updated", "pk_new")
	update.CustomerID = "pk_cus_9"
	_, err = h.service.Apply(ctx, update)
	require.NoError(t, err)
	assert.Equal(t, "pk_cus_9", *h.member(t, "new@example.com").PaykickstartCustomerID)
}

func TestApplyReplayConvergesToSameState(t *testing.T) {
	created := createdEvent("sub_conv", "conv@example.com")
	upgrade := followUp("subscription_updated", "sub_conv")
	upgrade.ProductName = "Success+ Insider Annual"
	upgrade.BillingCycle = "annual"
	failed := followUp("payment_failed", "sub_conv")
	recovered := followUp("payment_succeeded", "sub_conv")

	tests := []struct {
		name   string
		events []Event
	}{
		{name: "once", events: []Event{created, upgrade, failed, recovered}},
		{name: "with duplicates", events: []Event{created, created, upgrade, failed, upgrade, failed, recovered, recovered}},
		{name: "every event twice", events: []Event{created, created, upgrade, upgrade, failed, failed, recovered, recovered}},
	}

	type snapshot struct {
		status       enums.SubscriptionStatus
		tier         string
		cycle        enums.BillingCycle
		cancelAtEnd  bool
		periodEnd    time.Time
		memberStatus enums.MembershipStatus
		totalSpent   string
		subs         int64
	}

	var want *snapshot
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			for _, ev := range tt.events {
				_, err := h.service.Apply(ctx, ev)
				require.NoError(t, err)
			}

			sub := h.subscription(t, "sub_conv")
			member := h.member(t, "conv@example.com")
			require.NotNil(t, sub.CurrentPeriodEnd)
			got := snapshot{
				status:       sub.Status,
				tier:         sub.Tier,
				cycle:        sub.BillingCycle,
				cancelAtEnd:  sub.CancelAtPeriodEnd,
				periodEnd:    sub.CurrentPeriodEnd.UTC(),
				memberStatus: member.MembershipStatus,
				totalSpent:   member.TotalSpent.String(),
			}
			require.NoError(t, h.conn.Model(&models.Subscription{}).Count(&got.subs).Error)

			assert.Equal(t, enums.SubscriptionStatusActive, got.status)
			assert.Equal(t, "INSIDER", got.tier)
			assert.Equal(t, enums.MembershipStatusActive, got.memberStatus)
			if want == nil {
				want = &got
				return
			}
			assert.Equal(t, *want, got)
		})
	}
}

func TestApplyUnknownSubscriptionWarnsAndAcks(t *testing.T) {
	h := newHarness(t)

	res, err := h.service.Apply(context.Background(), followUp("subscription_updated", "sub_ghost"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnknownSubscription, res.Outcome)
	assert.Contains(t, h.logs.String(), `"level":"warn"`)
	assert.Contains(t, h.logs.String(), "sub_ghost")

	var count int64
	require.NoError(t, h.conn.Model(&models.ActivityLog{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestApplyIgnoresUnknownType(t *testing.T) {
	h := newHarness(t)
	res, err := h.service.Apply(context.Background(), followUp("affiliate_payout", "sub_x"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, res.Outcome)
}

func TestApplyValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	ev := createdEvent("sub_v", "")
	_, err := h.service.Apply(ctx, ev)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	ev = followUp("payment_failed", "")
	_, err = h.service.Apply(ctx, ev)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestParseKindSynonyms(t *testing.T) {
	cases := map[string]Kind{
		"customer.subscription.created": KindCreated,
		"Subscription_Updated":          KindUpdated,
		"customer.subscription.deleted": KindCancelled,
		"subscription_canceled":         KindCancelled,
		"payment.failed":                KindPaymentFailed,
		" invoice.paid ":                KindPaymentSucceeded,
	}
	for raw, want := range cases {
		got, ok := ParseKind(raw)
		require.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}
	_, ok := ParseKind("refund_issued")
	assert.False(t, ok)
}
