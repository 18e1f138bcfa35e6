// Package reconcile applies verified billing events to the subscription ledger.
package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/successplus/membership-backend/internal/activity"
	"github.com/successplus/membership-backend/internal/members"
	"github.com/successplus/membership-backend/internal/subscriptions"
	"github.com/successplus/membership-backend/internal/tiers"
	"github.com/successplus/membership-backend/internal/users"
	"github.com/successplus/membership-backend/pkg/config"
	"github.com/successplus/membership-backend/pkg/db"
	"github.com/successplus/membership-backend/pkg/db/models"
	"github.com/successplus/membership-backend/pkg/enums"
	pkgerrors "github.com/successplus/membership-backend/pkg/errors"
	"github.com/successplus/membership-backend/pkg/logger"
	"github.com/successplus/membership-backend/pkg/security"
)

// Outcome describes what Apply did with an event.
type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	// OutcomeIgnored marks unknown event types.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeUnknownSubscription marks events for subscriptions the ledger never saw.
	OutcomeUnknownSubscription Outcome = "unknown_subscription"
)

// Result is returned for every event Apply accepts.
type Result struct {
	Outcome        Outcome
	Kind           Kind
	SubscriptionID string
	// Changed is false when the event matched the stored state.
	Changed bool
}

type auditor interface {
	Record(ctx context.Context, entry activity.Entry)
}

// ServiceParams wires the reconciliation service.
type ServiceParams struct {
	DB            db.TxRunner
	Users         *users.Repository
	Members       *members.Repository
	Subscriptions subscriptions.Repository
	Audit         auditor
	Password      config.PasswordConfig
	Logger        *logger.Logger
	Now           func() time.Time
}

// Service owns the subscription state machine. Every transition runs in a
// single transaction; the audit entry is written after commit.
type Service struct {
	db       db.TxRunner
	users    *users.Repository
	members  *members.Repository
	subs     subscriptions.Repository
	audit    auditor
	password config.PasswordConfig
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if params.Members == nil {
		return nil, fmt.Errorf("members repository required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscriptions repository required")
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &Service{
		db:       params.DB,
		users:    params.Users,
		members:  params.Members,
		subs:     params.Subscriptions,
		audit:    params.Audit,
		password: params.Password,
		logg:     params.Logger,
		now:      params.Now,
	}, nil
}

// transition carries what a committed transaction needs to audit.
type transition struct {
	userID  uuid.UUID
	action  enums.ActivityAction
	sub     *models.Subscription
	changed bool
	missing bool
}

// Apply runs the transition for ev. Validation failures return
// CodeValidation; storage failures return CodeInternal so the provider retries.
func (s *Service) Apply(ctx context.Context, ev Event) (Result, error) {
	if ev.Kind == "" {
		kind, ok := ParseKind(ev.Type)
		if !ok {
			s.logg.Info(s.logg.WithField(ctx, "event_type", ev.Type), "ignoring unknown billing event type")
			return Result{Outcome: OutcomeIgnored, SubscriptionID: ev.SubscriptionID}, nil
		}
		ev.Kind = kind
	}
	if err := ev.Validate(); err != nil {
		return Result{Kind: ev.Kind}, err
	}

	ctx = s.logg.WithProviderEvent(ctx, ev.Provider.String(), ev.SubscriptionID)
	ctx = s.logg.WithFields(ctx, map[string]any{"event_kind": string(ev.Kind), "event_id": ev.ID})

	var (
		out transition
		err error
	)
	switch ev.Kind {
	case KindCreated:
		out, err = s.applyCreated(ctx, ev)
	default:
		out, err = s.applyExisting(ctx, ev)
	}
	if err != nil {
		s.logg.Error(ctx, "reconcile billing event", err)
		return Result{Kind: ev.Kind, SubscriptionID: ev.SubscriptionID}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reconcile billing event")
	}

	result := Result{Outcome: OutcomeApplied, Kind: ev.Kind, SubscriptionID: ev.SubscriptionID, Changed: out.changed}
	if out.missing {
		s.logg.Warn(ctx, "billing event for unknown subscription")
		result.Outcome = OutcomeUnknownSubscription
		return result, nil
	}

	s.record(ctx, ev, out)
	s.logg.Info(ctx, "billing event reconciled")
	return result, nil
}

func (s *Service) applyCreated(ctx context.Context, ev Event) (transition, error) {
	status := subscriptions.MapStatus(ev.Status)
	out := transition{action: enums.ActivitySubscriptionCreated, changed: true}

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		usersRepo := s.users.WithTx(tx)
		membersRepo := s.members.WithTx(tx)
		subsRepo := s.subs.WithTx(tx)

		user, err := s.ensureUser(ctx, usersRepo, ev)
		if err != nil {
			return err
		}
		member, err := s.ensureMember(ctx, usersRepo, membersRepo, user, ev, status)
		if err != nil {
			return err
		}

		sub := &models.Subscription{
			MemberID:               member.ID,
			Provider:               ev.Provider,
			ProviderSubscriptionID: ev.SubscriptionID,
			Status:                 status,
			Tier:                   tiers.FromProduct(ev.ProductName),
			BillingCycle:           subscriptions.MapBillingCycle(ev.BillingCycle),
		}
		applyPeriod(sub, ev)
		if ev.CustomerID != "" {
			sub.ProviderCustomerID = strPtr(ev.CustomerID)
		}

		inserted, err := subsRepo.InsertIfAbsent(ctx, sub)
		if err != nil {
			return fmt.Errorf("insert subscription: %w", err)
		}
		if !inserted {
			existing, err := subsRepo.FindByProviderID(ctx, ev.SubscriptionID)
			if err != nil {
				return fmt.Errorf("load subscription: %w", err)
			}
			if existing == nil {
				return fmt.Errorf("subscription %s vanished after conflict", ev.SubscriptionID)
			}
			existing.Status = status
			applyEventFields(existing, ev)
			if err := subsRepo.Update(ctx, existing); err != nil {
				return fmt.Errorf("update subscription: %w", err)
			}
			sub = existing
		}

		applyMemberFacts(member, ev)
		if err := s.refreshMemberStatus(ctx, subsRepo, member); err != nil {
			return err
		}
		if err := membersRepo.Save(ctx, member); err != nil {
			return fmt.Errorf("save member: %w", err)
		}

		out.userID = user.ID
		out.sub = sub
		return nil
	})
	return out, err
}

// ensureUser returns the user for the payer email, creating one with an
// unusable password when needed.
func (s *Service) ensureUser(ctx context.Context, repo *users.Repository, ev Event) (*models.User, error) {
	user, err := repo.FindByEmail(ctx, ev.Email)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user != nil {
		return user, nil
	}

	hash, err := security.PlaceholderHash(s.password)
	if err != nil {
		return nil, fmt.Errorf("placeholder password: %w", err)
	}
	user, err = repo.CreateIfAbsent(ctx, &models.User{
		Email:        ev.Email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(ev.FirstName),
		LastName:     strings.TrimSpace(ev.LastName),
		Role:         enums.UserRoleSubscriber,
	})
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.logg.Info(s.logg.WithUserID(ctx, user.ID.String()), "created user for new payer")
	return user, nil
}

// ensureMember returns the member linked to user, creating and linking one
// when the user has none.
func (s *Service) ensureMember(ctx context.Context, usersRepo *users.Repository, membersRepo *members.Repository, user *models.User, ev Event, status enums.SubscriptionStatus) (*models.Member, error) {
	if user.MemberID != nil {
		member, err := membersRepo.FindByID(ctx, *user.MemberID)
		if err != nil {
			return nil, fmt.Errorf("load member: %w", err)
		}
		if member != nil {
			return member, nil
		}
	}

	member, err := membersRepo.CreateIfAbsent(ctx, &models.Member{
		Email:            user.Email,
		FirstName:        strings.TrimSpace(ev.FirstName),
		LastName:         strings.TrimSpace(ev.LastName),
		MembershipTier:   "Customer",
		MembershipStatus: enums.MembershipStatusFor(status),
	})
	if err != nil {
		return nil, fmt.Errorf("create member: %w", err)
	}
	if err := usersRepo.LinkMember(ctx, user.ID, member.ID); err != nil {
		return nil, fmt.Errorf("link member: %w", err)
	}
	user.MemberID = &member.ID
	return member, nil
}

func (s *Service) applyExisting(ctx context.Context, ev Event) (transition, error) {
	var out transition

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		subsRepo := s.subs.WithTx(tx)
		membersRepo := s.members.WithTx(tx)

		sub, err := subsRepo.FindByProviderID(ctx, ev.SubscriptionID)
		if err != nil {
			return fmt.Errorf("load subscription: %w", err)
		}
		if sub == nil {
			out.missing = true
			return nil
		}

		refresh := true
		switch ev.Kind {
		case KindUpdated:
			out.action = enums.ActivitySubscriptionUpdated
			if strings.TrimSpace(ev.Status) != "" {
				sub.Status = subscriptions.MapStatus(ev.Status)
			}
			applyEventFields(sub, ev)
			out.changed = true
		case KindCancelled:
			out.action = enums.ActivitySubscriptionCancelled
			sub.CancelAtPeriodEnd = ev.DefersCancel()
			if sub.CancelAtPeriodEnd {
				// Access runs to the end of the paid period.
				refresh = false
			} else {
				sub.Status = enums.SubscriptionStatusCanceled
				canceledAt := s.now().UTC()
				sub.CanceledAt = &canceledAt
			}
			out.changed = true
		case KindPaymentFailed:
			out.action = enums.ActivityPaymentFailed
			sub.Status = enums.SubscriptionStatusPastDue
			out.changed = true
		case KindPaymentSucceeded:
			out.action = enums.ActivityPaymentSucceeded
			if sub.Status == enums.SubscriptionStatusPastDue {
				sub.Status = enums.SubscriptionStatusActive
				out.changed = true
			}
			refresh = out.changed
		}
		if ev.CustomerID != "" {
			sub.ProviderCustomerID = strPtr(ev.CustomerID)
		}
		if err := subsRepo.Update(ctx, sub); err != nil {
			return fmt.Errorf("update subscription: %w", err)
		}

		member, err := membersRepo.FindByID(ctx, sub.MemberID)
		if err != nil {
			return fmt.Errorf("load member: %w", err)
		}
		if member != nil {
			applyMemberFacts(member, ev)
			if refresh {
				if err := s.refreshMemberStatus(ctx, subsRepo, member); err != nil {
					return err
				}
			}
			if err := membersRepo.Save(ctx, member); err != nil {
				return fmt.Errorf("save member: %w", err)
			}
		}

		user, err := s.users.WithTx(tx).FindByMemberID(ctx, sub.MemberID)
		if err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		if user != nil {
			out.userID = user.ID
		}
		out.sub = sub
		return nil
	})
	return out, err
}

// refreshMemberStatus sets the member flag from the entitling rows it owns.
func (s *Service) refreshMemberStatus(ctx context.Context, subsRepo subscriptions.Repository, member *models.Member) error {
	count, err := subsRepo.CountEntitling(ctx, member.ID)
	if err != nil {
		return fmt.Errorf("count entitling subscriptions: %w", err)
	}
	if count > 0 {
		member.MembershipStatus = enums.MembershipStatusActive
	} else {
		member.MembershipStatus = enums.MembershipStatusInactive
	}
	return nil
}

func (s *Service) record(ctx context.Context, ev Event, out transition) {
	if s.audit == nil || out.sub == nil {
		return
	}
	if out.userID == uuid.Nil {
		s.logg.Warn(ctx, "no user linked to subscription; skipping audit entry")
		return
	}
	details := map[string]any{
		"provider":             ev.Provider.String(),
		"event_id":             ev.ID,
		"event_type":           ev.Type,
		"status":               out.sub.Status.String(),
		"tier":                 out.sub.Tier,
		"cancel_at_period_end": out.sub.CancelAtPeriodEnd,
	}
	if ev.Kind == KindPaymentSucceeded {
		details["changed"] = out.changed
	}
	if out.sub.CurrentPeriodEnd != nil {
		details["current_period_end"] = out.sub.CurrentPeriodEnd.UTC().Format(time.RFC3339)
	}
	s.audit.Record(ctx, activity.Entry{
		UserID:     out.userID,
		Action:     out.action,
		EntityType: activity.EntityTypeSubscription,
		EntityID:   out.sub.ProviderSubscriptionID,
		Details:    details,
	})
}

// applyEventFields copies the optional event fields that are present.
func applyEventFields(sub *models.Subscription, ev Event) {
	if strings.TrimSpace(ev.ProductName) != "" {
		sub.Tier = tiers.FromProduct(ev.ProductName)
	}
	if strings.TrimSpace(ev.BillingCycle) != "" {
		sub.BillingCycle = subscriptions.MapBillingCycle(ev.BillingCycle)
	}
	applyPeriod(sub, ev)
	if ev.CancelAtPeriodEnd != nil {
		sub.CancelAtPeriodEnd = *ev.CancelAtPeriodEnd
	}
}

func applyPeriod(sub *models.Subscription, ev Event) {
	if start := UTC(ev.CurrentPeriodStart); start != nil {
		sub.CurrentPeriodStart = start
	}
	if end := UTC(ev.CurrentPeriodEnd); end != nil {
		sub.CurrentPeriodEnd = end
	}
}

// applyMemberFacts stores provider customer ids and money totals. Totals are
// set from the event, never accumulated, so replays are harmless.
//
// PayKickstart keys buyers by email, and some deliveries omit customer_id.
// The member's email stands in until a real id arrives, so the affiliate
// fallback in the resolver still sees a PayKickstart customer.
func applyMemberFacts(member *models.Member, ev Event) {
	switch {
	case ev.CustomerID != "" && ev.Provider == enums.ProviderPaykickstart:
		member.PaykickstartCustomerID = strPtr(ev.CustomerID)
	case ev.CustomerID != "" && ev.Provider == enums.ProviderStripe:
		member.StripeCustomerID = strPtr(ev.CustomerID)
	case ev.Provider == enums.ProviderPaykickstart && member.PaykickstartCustomerID == nil && member.Email != "":
		member.PaykickstartCustomerID = strPtr(member.Email)
	}
	if ev.TotalSpent != nil {
		member.TotalSpent = *ev.TotalSpent
	}
	if ev.LifetimeValue != nil {
		member.LifetimeValue = *ev.LifetimeValue
	}
	if member.FirstName == "" {
		member.FirstName = strings.TrimSpace(ev.FirstName)
	}
	if member.LastName == "" {
		member.LastName = strings.TrimSpace(ev.LastName)
	}
}

func strPtr(v string) *string {
	return &v
}
