package jobqueue

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PerkFox/app/models"
	"github.com/ManuelReschke/PerkFox/app/repository"
)

// ClaimSender delivers a claim confirmation, e.g. *mail.ClaimNotifier.
type ClaimSender interface {
	NotifyClaim(ctx context.Context, userID uint, deal *models.Deal, claim *models.Claim) error
}

// LogoMirror copies a logo file to object storage, e.g. *s3backup.Client.
type LogoMirror interface {
	MirrorLogo(ctx context.Context, dealID uint, localFilePath string) error
}

// ClaimMailDispatcher defers claim confirmations to the queue so the claim
// request never waits for SMTP.
type ClaimMailDispatcher struct {
	queue *Queue
}

func NewClaimMailDispatcher(q *Queue) *ClaimMailDispatcher {
	return &ClaimMailDispatcher{queue: q}
}

// NotifyClaim enqueues a claim_mail job.
func (d *ClaimMailDispatcher) NotifyClaim(ctx context.Context, userID uint, deal *models.Deal, claim *models.Claim) error {
	_, err := d.queue.EnqueueJob(ctx, JobTypeClaimMail, ClaimMailJobPayload{
		UserID:    userID,
		DealID:    deal.ID,
		ClaimUUID: claim.UUID,
	}.ToMap())
	return err
}

// NewClaimMailHandler loads the claim and its deal and hands them to sender.
// Jobs whose claim or deal no longer exist complete without sending.
func NewClaimMailHandler(repos *repository.Repositories, sender ClaimSender) Handler {
	return func(ctx context.Context, job *Job) error {
		payload, err := ClaimMailJobPayloadFromMap(job.Payload)
		if err != nil {
			return fmt.Errorf("invalid payload: %w", err)
		}

		claim, err := repos.Claim.GetByUUID(ctx, payload.ClaimUUID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("[JobQueue] Claim %s vanished, skipping mail", payload.ClaimUUID)
			return nil
		}
		if err != nil {
			return err
		}

		deal, err := repos.Deal.GetByID(ctx, claim.DealID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("[JobQueue] Deal %d vanished, skipping mail", claim.DealID)
			return nil
		}
		if err != nil {
			return err
		}

		return sender.NotifyClaim(ctx, claim.UserID, deal, claim)
	}
}

// LogoMirrorDispatcher defers logo uploads to object storage to the queue.
type LogoMirrorDispatcher struct {
	queue *Queue
}

func NewLogoMirrorDispatcher(q *Queue) *LogoMirrorDispatcher {
	return &LogoMirrorDispatcher{queue: q}
}

// MirrorLogo enqueues a logo_mirror job.
func (d *LogoMirrorDispatcher) MirrorLogo(ctx context.Context, dealID uint, localFilePath string) error {
	_, err := d.queue.EnqueueJob(ctx, JobTypeLogoMirror, LogoMirrorJobPayload{
		DealID:   dealID,
		FilePath: localFilePath,
	}.ToMap())
	return err
}

// NewLogoMirrorHandler uploads the referenced file through mirror.
func NewLogoMirrorHandler(mirror LogoMirror) Handler {
	return func(ctx context.Context, job *Job) error {
		payload, err := LogoMirrorJobPayloadFromMap(job.Payload)
		if err != nil {
			return fmt.Errorf("invalid payload: %w", err)
		}
		if payload.FilePath == "" {
			return errors.New("missing file path")
		}
		return mirror.MirrorLogo(ctx, payload.DealID, payload.FilePath)
	}
}
