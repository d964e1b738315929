package mail

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PerkFox/app/models"
)

type recordingSender struct {
	to, subject, body string
	calls             int
}

func (r *recordingSender) Send(to, subject, body string) error {
	r.to, r.subject, r.body = to, subject, body
	r.calls++
	return nil
}

type users map[uint]*models.User

func (u users) GetByID(id uint) (*models.User, error) {
	if user, ok := u[id]; ok {
		return user, nil
	}
	return nil, errors.New("not found")
}

func TestClaimNotifierSendsSecrets(t *testing.T) {
	sender := &recordingSender{}
	n := NewClaimNotifier(users{7: {ID: 7, Name: "Ada", Email: "ada@example.com"}}, sender, nil)

	deal := &models.Deal{Title: "Cloud Credits", PartnerName: "Nimbus"}
	claim := &models.Claim{UUID: "c0ffee", CouponCodeSnapshot: "NIMBUS-500", RedemptionLinkSnapshot: "https://nimbus.example/redeem?a=1&b=2"}

	require.NoError(t, n.NotifyClaim(context.Background(), 7, deal, claim))
	assert.Equal(t, "ada@example.com", sender.to)
	assert.Equal(t, "Your perk: Cloud Credits", sender.subject)
	assert.Contains(t, sender.body, "NIMBUS-500")
	assert.Contains(t, sender.body, "https://nimbus.example/redeem?a=1&amp;b=2")
	assert.Contains(t, sender.body, "c0ffee")
}

func TestClaimNotifierDisabledAndMissingUser(t *testing.T) {
	sender := &recordingSender{}
	off := NewClaimNotifier(users{}, sender, func() bool { return false })
	require.NoError(t, off.NotifyClaim(context.Background(), 1, &models.Deal{}, &models.Claim{}))
	assert.Zero(t, sender.calls)

	on := NewClaimNotifier(users{}, sender, nil)
	assert.Error(t, on.NotifyClaim(context.Background(), 1, &models.Deal{}, &models.Claim{}))
}

func TestSMTPMailerRequiresHost(t *testing.T) {
	m := &SMTPMailer{}
	assert.False(t, m.Enabled())
	assert.Error(t, m.Send("a@example.com", "s", "b"))
}
