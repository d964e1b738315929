package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/ManuelReschke/PerkFox/app/models"
)

// UserLookup loads the recipient of a mail.
type UserLookup interface {
	GetByID(id uint) (*models.User, error)
}

var claimTemplate = template.Must(template.New("claim").Parse(`<p>Hi {{.Name}},</p>
<p>you just claimed <strong>{{.Title}}</strong> from {{.Partner}}.</p>
{{if .Coupon}}<p>Your code: <code>{{.Coupon}}</code></p>{{end}}
{{if .Link}}<p>Redeem it here: <a href="{{.Link}}">{{.Link}}</a></p>{{end}}
<p>Claim reference: {{.Reference}}</p>`))

// ClaimNotifier mails the revealed deal secrets after a successful claim.
type ClaimNotifier struct {
	users   UserLookup
	sender  Sender
	enabled func() bool
}

// NewClaimNotifier creates a notifier. enabled may be nil.
func NewClaimNotifier(users UserLookup, sender Sender, enabled func() bool) *ClaimNotifier {
	return &ClaimNotifier{users: users, sender: sender, enabled: enabled}
}

// NotifyClaim sends the confirmation for claim.
func (n *ClaimNotifier) NotifyClaim(_ context.Context, userID uint, deal *models.Deal, claim *models.Claim) error {
	if n.enabled != nil && !n.enabled() {
		return nil
	}
	user, err := n.users.GetByID(userID)
	if err != nil {
		return fmt.Errorf("load recipient %d: %w", userID, err)
	}

	body, err := renderClaimMail(user, deal, claim)
	if err != nil {
		return err
	}
	return n.sender.Send(user.Email, fmt.Sprintf("Your perk: %s", deal.Title), body)
}

func renderClaimMail(user *models.User, deal *models.Deal, claim *models.Claim) (string, error) {
	var buf bytes.Buffer
	err := claimTemplate.Execute(&buf, map[string]string{
		"Name":      user.Name,
		"Title":     deal.Title,
		"Partner":   deal.PartnerName,
		"Coupon":    claim.CouponCodeSnapshot,
		"Link":      claim.RedemptionLinkSnapshot,
		"Reference": claim.UUID,
	})
	if err != nil {
		return "", fmt.Errorf("render claim mail: %w", err)
	}
	return buf.String(), nil
}
