package access

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PerkFox/app/models"
)

var testNow = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

type fakeStore struct {
	deals         map[uint]*models.Deal
	subscriptions map[uint]*models.Subscription
	exceptions    map[[2]uint]*models.DealException
	mappings      map[[2]uint]bool

	subscriptionErr error
	exceptionErr    error
	mappingErr      error

	calls []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		deals:         map[uint]*models.Deal{},
		subscriptions: map[uint]*models.Subscription{},
		exceptions:    map[[2]uint]*models.DealException{},
		mappings:      map[[2]uint]bool{},
	}
}

func (f *fakeStore) GetByID(_ context.Context, dealID uint) (*models.Deal, error) {
	f.calls = append(f.calls, "deal")
	d, ok := f.deals[dealID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return d, nil
}

func (f *fakeStore) FindActiveSubscription(_ context.Context, userID uint, now time.Time) (*models.Subscription, error) {
	f.calls = append(f.calls, "subscription")
	if f.subscriptionErr != nil {
		return nil, f.subscriptionErr
	}
	s, ok := f.subscriptions[userID]
	if !ok || !s.IsCurrentlyActive(now) {
		return nil, nil
	}
	return s, nil
}

func (f *fakeStore) FindValidException(_ context.Context, userID, dealID uint, now time.Time) (*models.DealException, error) {
	f.calls = append(f.calls, "exception")
	if f.exceptionErr != nil {
		return nil, f.exceptionErr
	}
	e, ok := f.exceptions[[2]uint{userID, dealID}]
	if !ok || !e.IsCurrentlyValid(now) {
		return nil, nil
	}
	return e, nil
}

func (f *fakeStore) IsServiceMappedToDeal(_ context.Context, serviceID, dealID uint) (bool, error) {
	f.calls = append(f.calls, "mapping")
	if f.mappingErr != nil {
		return false, f.mappingErr
	}
	return f.mappings[[2]uint{serviceID, dealID}], nil
}

func (f *fakeStore) subscribe(userID, serviceID uint, tier string) {
	f.subscriptions[userID] = &models.Subscription{
		ID:        userID * 10,
		UserID:    userID,
		ServiceID: serviceID,
		Service:   models.Service{ID: serviceID, Tier: tier},
		Status:    models.SubscriptionStatusActive,
		StartedAt: testNow.Add(-24 * time.Hour),
	}
}

type recordedDecision struct {
	reason string
}

type fakeRecorder struct {
	decisions []recordedDecision
}

func (r *fakeRecorder) ObserveDecision(reason string, _ time.Duration) {
	r.decisions = append(r.decisions, recordedDecision{reason: reason})
}

func tierPtr(s string) *string { return &s }

func newTestResolver(f *fakeStore, opts ...Option) *Resolver {
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return NewResolver(f, f, f, f, opts...)
}

func TestResolveOpenDealSkipsAllLookups(t *testing.T) {
	f := newFakeStore()
	deal := &models.Deal{ID: 2, LockedByDefault: false, RequiredTier: tierPtr("professional")}

	for _, userID := range []uint{0, 1, 99} {
		got, err := newTestResolver(f).Resolve(context.Background(), userID, deal.ID, deal)
		require.NoError(t, err)
		assert.Equal(t, Decision{HasAccess: true, Reason: ReasonOpen}, got)
	}
	assert.Empty(t, f.calls)
}

func TestResolveExceptionWithoutSubscription(t *testing.T) {
	f := newFakeStore()
	future := testNow.Add(72 * time.Hour)
	f.exceptions[[2]uint{7, 1}] = &models.DealException{UserID: 7, DealID: 1, IsActive: true, ValidTo: &future}
	deal := &models.Deal{ID: 1, LockedByDefault: true, RequiredTier: tierPtr("professional")}

	got, err := newTestResolver(f).Resolve(context.Background(), 7, 1, deal)
	require.NoError(t, err)
	assert.Equal(t, Decision{HasAccess: true, Reason: ReasonException}, got)
	assert.Equal(t, []string{"exception"}, f.calls)
}

func TestResolveExceptionBeatsPlanMismatch(t *testing.T) {
	f := newFakeStore()
	f.subscribe(7, 1, "standard")
	f.exceptions[[2]uint{7, 1}] = &models.DealException{UserID: 7, DealID: 1, IsActive: true}
	deal := &models.Deal{ID: 1, LockedByDefault: true, RequiredTier: tierPtr("professional")}

	got, err := newTestResolver(f).Resolve(context.Background(), 7, 1, deal)
	require.NoError(t, err)
	assert.Equal(t, ReasonException, got.Reason)
	assert.True(t, got.HasAccess)
}

func TestResolveIgnoresInactiveOrExpiredExceptions(t *testing.T) {
	f := newFakeStore()
	past := testNow.Add(-time.Hour)
	f.exceptions[[2]uint{7, 1}] = &models.DealException{UserID: 7, DealID: 1, IsActive: true, ValidTo: &past}
	f.exceptions[[2]uint{8, 1}] = &models.DealException{UserID: 8, DealID: 1, IsActive: false}
	deal := &models.Deal{ID: 1, LockedByDefault: true, RequiredTier: tierPtr("standard")}

	for _, userID := range []uint{7, 8} {
		got, err := newTestResolver(f).Resolve(context.Background(), userID, 1, deal)
		require.NoError(t, err)
		assert.Equal(t, Decision{HasAccess: false, Reason: ReasonNoSubscription}, got)
	}
}

func TestResolveNoSubscription(t *testing.T) {
	f := newFakeStore()
	deal := &models.Deal{ID: 1, LockedByDefault: true, RequiredTier: tierPtr("standard")}

	got, err := newTestResolver(f).Resolve(context.Background(), 5, 1, deal)
	require.NoError(t, err)
	assert.Equal(t, Decision{HasAccess: false, Reason: ReasonNoSubscription}, got)
	assert.Equal(t, []string{"exception", "subscription"}, f.calls)
}

func TestResolveAnonymousOnLockedDeal(t *testing.T) {
	f := newFakeStore()
	deal := &models.Deal{ID: 1, LockedByDefault: true}

	got, err := newTestResolver(f).Resolve(context.Background(), 0, 1, deal)
	require.NoError(t, err)
	assert.Equal(t, Decision{HasAccess: false, Reason: ReasonNoSubscription}, got)
	assert.Empty(t, f.calls)
}

func TestResolveTierRanks(t *testing.T) {
	tests := []struct {
		name     string
		required string
		plan     string
		want     Decision
	}{
		{name: "standard plan on professional deal", required: "professional", plan: "standard", want: Decision{false, ReasonPlanMismatch}},
		{name: "professional plan on standard deal", required: "standard", plan: "professional", want: Decision{true, ReasonOK}},
		{name: "equal tiers", required: "standard", plan: "Basic", want: Decision{true, ReasonOK}},
		{name: "premium alias", required: "Pro", plan: "Premium Yearly", want: Decision{true, ReasonOK}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeStore()
			f.subscribe(3, 11, tt.plan)
			deal := &models.Deal{ID: 4, LockedByDefault: true, RequiredTier: tierPtr(tt.required)}

			got, err := newTestResolver(f).Resolve(context.Background(), 3, 4, deal)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, f.calls, "mapping")
		})
	}
}

func TestResolveMappingFallback(t *testing.T) {
	tests := []struct {
		name     string
		required *string
		plan     string
		mapped   bool
		want     Decision
	}{
		{name: "no tier, mapped", required: nil, plan: "professional", mapped: true, want: Decision{true, ReasonOK}},
		{name: "no tier, not mapped", required: nil, plan: "professional", mapped: false, want: Decision{false, ReasonPlanMismatch}},
		{name: "unknown deal tier, mapped", required: tierPtr("enterprise"), plan: "standard", mapped: true, want: Decision{true, ReasonOK}},
		{name: "unknown plan tier, not mapped", required: tierPtr("standard"), plan: "LAUNCH2024", mapped: false, want: Decision{false, ReasonPlanMismatch}},
		{name: "unknown plan tier, mapped", required: tierPtr("professional"), plan: "LAUNCH2024", mapped: true, want: Decision{true, ReasonOK}},
		{name: "empty plan tier, not mapped", required: tierPtr("standard"), plan: "", mapped: false, want: Decision{false, ReasonPlanMismatch}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeStore()
			f.subscribe(3, 11, tt.plan)
			f.mappings[[2]uint{11, 4}] = tt.mapped
			deal := &models.Deal{ID: 4, LockedByDefault: true, RequiredTier: tt.required}

			got, err := newTestResolver(f).Resolve(context.Background(), 3, 4, deal)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, f.calls, "mapping")
		})
	}
}

func TestResolveLoadsDealWhenNotGiven(t *testing.T) {
	f := newFakeStore()
	f.deals[9] = &models.Deal{ID: 9, LockedByDefault: false}

	got, err := newTestResolver(f).Resolve(context.Background(), 1, 9, nil)
	require.NoError(t, err)
	assert.Equal(t, ReasonOpen, got.Reason)

	_, err = newTestResolver(f).Resolve(context.Background(), 1, 404, nil)
	assert.ErrorIs(t, err, ErrDealNotFound)
}

func TestResolveStorageErrorsAreNotDenials(t *testing.T) {
	boom := errors.New("connection refused")
	deal := &models.Deal{ID: 1, LockedByDefault: true}

	f := newFakeStore()
	f.exceptionErr = boom
	_, err := newTestResolver(f).Resolve(context.Background(), 1, 1, deal)
	assert.ErrorIs(t, err, boom)

	f = newFakeStore()
	f.subscriptionErr = boom
	_, err = newTestResolver(f).Resolve(context.Background(), 1, 1, deal)
	assert.ErrorIs(t, err, boom)

	f = newFakeStore()
	f.subscribe(1, 2, "vip")
	f.mappingErr = boom
	_, err = newTestResolver(f).Resolve(context.Background(), 1, 1, deal)
	assert.ErrorIs(t, err, boom)
}

func TestResolveRecordsDecisions(t *testing.T) {
	f := newFakeStore()
	rec := &fakeRecorder{}
	r := newTestResolver(f, WithRecorder(rec))

	_, err := r.Resolve(context.Background(), 1, 1, &models.Deal{ID: 1, LockedByDefault: false})
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), 1, 2, &models.Deal{ID: 2, LockedByDefault: true})
	require.NoError(t, err)

	assert.Equal(t, []recordedDecision{{reason: "open"}, {reason: "no_subscription"}}, rec.decisions)
}
