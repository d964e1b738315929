package billing

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PerkFox/app/models"
	"github.com/ManuelReschke/PerkFox/internal/pkg/database"
)

var billingNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type expiryCounter struct{ total int64 }

func (e *expiryCounter) AddExpiredSubscriptions(n int64) { e.total += n }

func setupBilling(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db, err := database.OpenInMemory(t.Name())
	require.NoError(t, err)
	svc := NewServiceFromDB(db, Config{
		GatewayURL: "https://pay.example.com/checkout?merchant=perkfox",
		ReturnURL:  "https://perkfox.example/api/v1/billing/return",
	}).WithClock(func() time.Time { return billingNow })
	return svc, db
}

func seed(t *testing.T, db *gorm.DB, days int, active bool) (*models.User, *models.Service) {
	t.Helper()
	u, err := models.CreateUser("Buyer", "buyer@example.com", "secret123")
	require.NoError(t, err)
	require.NoError(t, db.Create(u).Error)
	s := &models.Service{Code: "pro-monthly", Name: "Pro", Tier: "professional", PriceCents: 4900, Currency: "eur", DurationDays: days, IsActive: active}
	require.NoError(t, db.Create(s).Error)
	return u, s
}

func TestCheckoutURL(t *testing.T) {
	svc, db := setupBilling(t)
	u, s := seed(t, db, 30, true)

	checkout, err := svc.CheckoutURL(context.Background(), u, s)
	require.NoError(t, err)
	assert.Equal(t, models.PurchaseStatusPending, checkout.Purchase.Status)
	assert.Equal(t, "EUR", checkout.Purchase.Currency)
	assert.Len(t, checkout.Purchase.Reference, 36)

	parsed, err := url.Parse(checkout.RedirectURL)
	require.NoError(t, err)
	assert.Equal(t, "pay.example.com", parsed.Host)
	q := parsed.Query()
	assert.Equal(t, "perkfox", q.Get("merchant"))
	assert.Equal(t, checkout.Purchase.Reference, q.Get("reference"))
	assert.Equal(t, "49.00", q.Get("amount"))
	assert.Equal(t, "EUR", q.Get("currency"))
	assert.Equal(t, "buyer@example.com", q.Get("email"))
	assert.Equal(t, "https://perkfox.example/api/v1/billing/return", q.Get("return_url"))
}

func TestCheckoutURLRejectsInactiveService(t *testing.T) {
	svc, db := setupBilling(t)
	u, s := seed(t, db, 30, false)

	_, err := svc.CheckoutURL(context.Background(), u, s)
	assert.ErrorIs(t, err, ErrServiceInactive)
}

func TestConfirmPurchasePaidIsIdempotent(t *testing.T) {
	svc, db := setupBilling(t)
	ctx := context.Background()
	u, s := seed(t, db, 30, true)

	checkout, err := svc.CheckoutURL(ctx, u, s)
	require.NoError(t, err)

	first, err := svc.ConfirmPurchase(ctx, checkout.Purchase.Reference, true)
	require.NoError(t, err)
	assert.False(t, first.Replayed)
	assert.Equal(t, models.PurchaseStatusPaid, first.Purchase.Status)
	require.NotNil(t, first.Subscription)
	assert.Equal(t, models.SubscriptionStatusActive, first.Subscription.Status)
	require.NotNil(t, first.Subscription.ExpiresAt)
	assert.True(t, first.Subscription.ExpiresAt.Equal(billingNow.AddDate(0, 0, 30)))

	second, err := svc.ConfirmPurchase(ctx, checkout.Purchase.Reference, true)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	require.NotNil(t, second.Subscription)
	assert.Equal(t, first.Subscription.ID, second.Subscription.ID)

	var count int64
	require.NoError(t, db.Model(&models.Subscription{}).Where("user_id = ?", u.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

type recordingInvalidator struct{ users []uint }

func (r *recordingInvalidator) InvalidateUnlocks(_ context.Context, userID uint) error {
	r.users = append(r.users, userID)
	return nil
}

func TestConfirmPurchaseUnlocksMappedDeals(t *testing.T) {
	svc, db := setupBilling(t)
	ctx := context.Background()
	u, s := seed(t, db, 30, true)
	invalidator := &recordingInvalidator{}
	svc.WithUnlockInvalidator(invalidator)

	mapped := &models.Deal{Title: "Mapped", Slug: "mapped", PartnerName: "Partner", LockedByDefault: true, IsPublished: true}
	manual := &models.Deal{Title: "Manual", Slug: "manual", PartnerName: "Partner", LockedByDefault: true, IsPublished: true}
	other := &models.Deal{Title: "Other", Slug: "other", PartnerName: "Partner", LockedByDefault: true, IsPublished: true}
	require.NoError(t, db.Create(mapped).Error)
	require.NoError(t, db.Create(manual).Error)
	require.NoError(t, db.Create(other).Error)
	require.NoError(t, db.Create(&models.ServiceDeal{ServiceID: s.ID, DealID: mapped.ID}).Error)
	require.NoError(t, db.Create(&models.ServiceDeal{ServiceID: s.ID, DealID: manual.ID}).Error)
	require.NoError(t, db.Create(&models.Unlock{UserID: u.ID, DealID: manual.ID, Source: models.UnlockSourceManual}).Error)

	checkout, err := svc.CheckoutURL(ctx, u, s)
	require.NoError(t, err)
	conf, err := svc.ConfirmPurchase(ctx, checkout.Purchase.Reference, true)
	require.NoError(t, err)
	assert.Equal(t, []uint{mapped.ID}, conf.UnlockedDeals)
	assert.Equal(t, []uint{u.ID}, invalidator.users)

	var unlocks []models.Unlock
	require.NoError(t, db.Where("user_id = ?", u.ID).Order("deal_id").Find(&unlocks).Error)
	require.Len(t, unlocks, 2)
	assert.Equal(t, mapped.ID, unlocks[0].DealID)
	assert.Equal(t, "purchase:"+checkout.Purchase.Reference, unlocks[0].Source)
	assert.Equal(t, models.UnlockSourceManual, unlocks[1].Source)

	replay, err := svc.ConfirmPurchase(ctx, checkout.Purchase.Reference, true)
	require.NoError(t, err)
	assert.True(t, replay.Replayed)
	assert.Empty(t, replay.UnlockedDeals)
	assert.Len(t, invalidator.users, 1)
}

func TestConfirmPurchaseOpenEndedService(t *testing.T) {
	svc, db := setupBilling(t)
	ctx := context.Background()
	u, s := seed(t, db, 0, true)

	checkout, err := svc.CheckoutURL(ctx, u, s)
	require.NoError(t, err)
	conf, err := svc.ConfirmPurchase(ctx, checkout.Purchase.Reference, true)
	require.NoError(t, err)
	require.NotNil(t, conf.Subscription)
	assert.Nil(t, conf.Subscription.ExpiresAt)
}

func TestConfirmPurchaseFailed(t *testing.T) {
	svc, db := setupBilling(t)
	ctx := context.Background()
	u, s := seed(t, db, 30, true)

	checkout, err := svc.CheckoutURL(ctx, u, s)
	require.NoError(t, err)

	conf, err := svc.ConfirmPurchase(ctx, checkout.Purchase.Reference, false)
	require.NoError(t, err)
	assert.Equal(t, models.PurchaseStatusFailed, conf.Purchase.Status)
	assert.Nil(t, conf.Subscription)

	_, err = svc.ConfirmPurchase(ctx, checkout.Purchase.Reference, true)
	assert.ErrorIs(t, err, ErrPurchaseSettled)

	_, err = svc.ConfirmPurchase(ctx, "unknown-reference", true)
	assert.ErrorIs(t, err, ErrPurchaseNotFound)
}

func TestGrantCancelAndExpire(t *testing.T) {
	svc, db := setupBilling(t)
	ctx := context.Background()
	u, s := seed(t, db, 30, true)
	observer := &expiryCounter{}
	svc.WithExpiryObserver(observer)

	sub, err := svc.GrantSubscription(ctx, u.ID, s.ID, 7)
	require.NoError(t, err)
	require.NotNil(t, sub.ExpiresAt)
	assert.True(t, sub.ExpiresAt.Equal(billingNow.AddDate(0, 0, 7)))
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)

	n, err := svc.ExpireSubscriptions(ctx, billingNow.AddDate(0, 0, 6))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = svc.ExpireSubscriptions(ctx, billingNow.AddDate(0, 0, 8))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, int64(1), observer.total)

	other, err := svc.GrantSubscription(ctx, u.ID, s.ID, 0)
	require.NoError(t, err)
	require.NoError(t, svc.CancelSubscription(ctx, other.ID))

	var reloaded models.Subscription
	require.NoError(t, db.First(&reloaded, other.ID).Error)
	assert.Equal(t, models.SubscriptionStatusCanceled, reloaded.Status)

	assert.ErrorIs(t, svc.CancelSubscription(ctx, 9999), ErrSubscriptionNotFound)
	_, err = svc.GrantSubscription(ctx, u.ID, 9999, 0)
	assert.ErrorIs(t, err, ErrServiceNotFound)
}

func TestVerifyReturnSignature(t *testing.T) {
	sig := SignReturn("ref-1", "paid", "s3cret")
	assert.True(t, VerifyReturnSignature("ref-1", "PAID", sig, "s3cret"))
	assert.False(t, VerifyReturnSignature("ref-2", "paid", sig, "s3cret"))
	assert.False(t, VerifyReturnSignature("ref-1", "paid", "zz", "s3cret"))
	assert.True(t, VerifyReturnSignature("ref-1", "paid", "", ""))
}

func TestParseReturnStatus(t *testing.T) {
	paid, ok := ParseReturnStatus(" Paid ")
	assert.True(t, ok)
	assert.True(t, paid)

	paid, ok = ParseReturnStatus("cancelled")
	assert.True(t, ok)
	assert.False(t, paid)

	_, ok = ParseReturnStatus("pending")
	assert.False(t, ok)
}
