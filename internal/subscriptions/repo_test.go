package subscriptions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/successplus/membership-backend/pkg/db/models"
	"github.com/successplus/membership-backend/pkg/enums"
)

func TestRepositoryInsertIfAbsentReportsCreation(t *testing.T) {
	conn := newTestDB(t)
	_, member := seedMember(t, conn, enums.MembershipStatusActive, nil)
	repo := NewRepository(conn)
	ctx := context.Background()

	first := &models.Subscription{MemberID: member.ID, Provider: enums.ProviderPaykickstart, ProviderSubscriptionID: "sub_dup", Status: enums.SubscriptionStatusActive, Tier: "COLLECTIVE"}
	created, err := repo.InsertIfAbsent(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)

	second := &models.Subscription{MemberID: member.ID, Provider: enums.ProviderPaykickstart, ProviderSubscriptionID: "sub_dup", Status: enums.SubscriptionStatusActive, Tier: "INSIDER"}
	created, err = repo.InsertIfAbsent(ctx, second)
	require.NoError(t, err)
	assert.False(t, created)

	stored, err := repo.FindByProviderID(ctx, "sub_dup")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "COLLECTIVE", stored.Tier)

	missing, err := repo.FindByProviderID(ctx, "sub_missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRepositoryListLapsedDeferred(t *testing.T) {
	conn := newTestDB(t)
	_, member := seedMember(t, conn, enums.MembershipStatusActive, nil)
	repo := NewRepository(conn)

	seed := func(id string, status enums.SubscriptionStatus, deferred bool, end *time.Time) {
		require.NoError(t, conn.Create(&models.Subscription{
			MemberID:               member.ID,
			Provider:               enums.ProviderPaykickstart,
			ProviderSubscriptionID: id,
			Status:                 status,
			Tier:                   "COLLECTIVE",
			BillingCycle:           enums.BillingCycleMonthly,
			CurrentPeriodEnd:       end,
			CancelAtPeriodEnd:      deferred,
		}).Error)
	}
	seed("sub_lapsed_old", enums.SubscriptionStatusActive, true, at(-72*time.Hour))
	seed("sub_lapsed_new", enums.SubscriptionStatusTrialing, true, at(-48*time.Hour))
	seed("sub_not_deferred", enums.SubscriptionStatusActive, false, at(-72*time.Hour))
	seed("sub_future", enums.SubscriptionStatusActive, true, at(72*time.Hour))
	seed("sub_already_cancelled", enums.SubscriptionStatusCanceled, true, at(-72*time.Hour))
	seed("sub_no_period", enums.SubscriptionStatusActive, true, nil)

	subs, err := repo.ListLapsedDeferred(context.Background(), fixedNow, 0)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "sub_lapsed_old", subs[0].ProviderSubscriptionID)
	assert.Equal(t, "sub_lapsed_new", subs[1].ProviderSubscriptionID)

	limited, err := repo.ListLapsedDeferred(context.Background(), fixedNow, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
