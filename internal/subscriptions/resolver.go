package subscriptions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/successplus/membership-backend/internal/tiers"
	"github.com/successplus/membership-backend/pkg/db/models"
	"github.com/successplus/membership-backend/pkg/enums"
	pkgerrors "github.com/successplus/membership-backend/pkg/errors"
	"github.com/successplus/membership-backend/pkg/logger"
)

// Status is the normalized view of a user's entitlement-relevant subscription.
type Status struct {
	HasActiveSubscription bool            `json:"has_active_subscription"`
	Tier                  string          `json:"tier"`
	Provider              *enums.Provider `json:"provider"`
	SubscriptionID        *string         `json:"subscription_id"`
	CurrentPeriodEnd      *time.Time      `json:"current_period_end"`
	CancelAtPeriodEnd     bool            `json:"cancel_at_period_end"`
}

// FreeStatus is the safe default: no subscription, free tier.
func FreeStatus() Status {
	return Status{Tier: string(tiers.Free)}
}

type userLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type memberLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Member, error)
}

type subscriptionLookup interface {
	ListEntitlingForMember(ctx context.Context, memberID uuid.UUID, now time.Time) ([]models.Subscription, error)
	NewestEntitlingByProvider(ctx context.Context, memberID uuid.UUID, provider enums.Provider) (*models.Subscription, error)
}

type ResolverParams struct {
	Users         userLookup
	Members       memberLookup
	Subscriptions subscriptionLookup
	Logger        *logger.Logger
	Now           func() time.Time
}

// Resolver decides which subscription, if any, is authoritative for a user.
// Precedence: a current ACTIVE/TRIALING ledger row, then the active member
// record of an affiliate customer, then the free default.
type Resolver struct {
	users   userLookup
	members memberLookup
	subs    subscriptionLookup
	logg    *logger.Logger
	now     func() time.Time
}

func NewResolver(params ResolverParams) (*Resolver, error) {
	if params.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "user lookup required")
	}
	if params.Members == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "member lookup required")
	}
	if params.Subscriptions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "subscription lookup required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Resolver{
		users:   params.Users,
		members: params.Members,
		subs:    params.Subscriptions,
		logg:    logg,
		now:     now,
	}, nil
}

// Resolve never grants on failure: any error yields FreeStatus alongside the
// error so callers can observe it.
func (r *Resolver) Resolve(ctx context.Context, userID uuid.UUID) (Status, error) {
	ctx = r.logg.WithUserID(ctx, userID.String())

	status, err := r.resolve(ctx, userID)
	if err != nil {
		r.logg.Error(ctx, "subscription resolution failed; using free default", err)
		return FreeStatus(), err
	}
	return status, nil
}

func (r *Resolver) resolve(ctx context.Context, userID uuid.UUID) (Status, error) {
	user, err := r.users.FindByID(ctx, userID)
	if err != nil {
		return Status{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	if user == nil || user.MemberID == nil {
		return FreeStatus(), nil
	}
	memberID := *user.MemberID

	rows, err := r.subs.ListEntitlingForMember(ctx, memberID, r.now().UTC())
	if err != nil {
		return Status{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list entitling subscriptions")
	}
	if len(rows) > 0 {
		return statusFromRow(rows[0]), nil
	}

	member, err := r.members.FindByID(ctx, memberID)
	if err != nil {
		return Status{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load member")
	}
	if !member.IsActive() || member.PaykickstartCustomerID == nil {
		return FreeStatus(), nil
	}

	return r.synthesizeAffiliate(ctx, member)
}

// synthesizeAffiliate builds a status for an active affiliate customer whose
// rows carry no usable period end.
func (r *Resolver) synthesizeAffiliate(ctx context.Context, member *models.Member) (Status, error) {
	tier := member.MembershipTier
	var subscriptionID *string

	row, err := r.subs.NewestEntitlingByProvider(ctx, member.ID, enums.ProviderPaykickstart)
	if err != nil {
		return Status{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load affiliate subscription")
	}
	if row != nil {
		if row.CancelAtPeriodEnd && row.CurrentPeriodEnd != nil && !row.CurrentPeriodEnd.After(r.now()) {
			r.logg.Warn(ctx, fmt.Sprintf("affiliate subscription %s passed its cancelled period end; not granting", row.ProviderSubscriptionID))
			return FreeStatus(), nil
		}
		tier = row.Tier
		id := row.ProviderSubscriptionID
		subscriptionID = &id
	}

	provider := enums.ProviderPaykickstart
	return Status{
		HasActiveSubscription: true,
		Tier:                  tier,
		Provider:              &provider,
		SubscriptionID:        subscriptionID,
	}, nil
}

func statusFromRow(row models.Subscription) Status {
	provider := row.Provider
	id := row.ProviderSubscriptionID
	return Status{
		HasActiveSubscription: true,
		Tier:                  row.Tier,
		Provider:              &provider,
		SubscriptionID:        &id,
		CurrentPeriodEnd:      row.CurrentPeriodEnd,
		CancelAtPeriodEnd:     row.CancelAtPeriodEnd,
	}
}
