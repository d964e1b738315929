package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PerkFox/app/models"
	"github.com/ManuelReschke/PerkFox/app/repository"
)

var ErrDealNotFound = errors.New("deal not found")

// UnlockCache holds the unlocked deal ids per user.
type UnlockCache interface {
	Get(ctx context.Context, userID uint) (map[uint]struct{}, bool, error)
	Store(ctx context.Context, userID uint, dealIDs []uint) error
}

// ViewCounter counts deal detail views.
type ViewCounter interface {
	AddDealView(ctx context.Context, dealID uint) error
}

// DealView is a catalog entry annotated for the caller.
type DealView struct {
	models.Deal
	IsUnlocked bool `json:"is_unlocked"`
}

// DealDetail is a single deal; Secrets is set only for unlocked deals.
type DealDetail struct {
	DealView
	Secrets *models.DealSecrets `json:"secrets,omitempty"`
}

// Page is one page of the catalog.
type Page struct {
	Deals    []DealView `json:"deals"`
	Total    int64      `json:"total"`
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
}

// Query selects a catalog page.
type Query struct {
	Category string
	Page     int
	PageSize int
}

const maxPageSize = 100

// Service serves the public deal catalog. Unlock state is read from
// materialized Unlock rows; the access resolver is never consulted here.
type Service struct {
	deals   repository.DealRepository
	unlocks repository.UnlockRepository
	cache   UnlockCache
	views   ViewCounter
}

// NewService creates a catalog service. cache and views may be nil.
func NewService(deals repository.DealRepository, unlocks repository.UnlockRepository, cache UnlockCache, views ViewCounter) *Service {
	return &Service{deals: deals, unlocks: unlocks, cache: cache, views: views}
}

// List returns a page of published deals for userID (0 for anonymous).
func (s *Service) List(ctx context.Context, userID uint, q Query) (*Page, error) {
	page, size := normalizePaging(q.Page, q.PageSize)
	filter := repository.DealFilter{
		Category:      q.Category,
		OnlyPublished: true,
		Offset:        (page - 1) * size,
		Limit:         size,
	}

	total, err := s.deals.Count(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count deals: %w", err)
	}
	deals, err := s.deals.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list deals: %w", err)
	}

	unlocked, err := s.unlockedSet(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]DealView, 0, len(deals))
	for _, d := range deals {
		_, ok := unlocked[d.ID]
		views = append(views, DealView{Deal: d, IsUnlocked: d.IsOpen() || ok})
	}
	return &Page{Deals: views, Total: total, Page: page, PageSize: size}, nil
}

// Get returns one published deal and counts the view.
func (s *Service) Get(ctx context.Context, userID, dealID uint) (*DealDetail, error) {
	deal, err := s.deals.GetByID(ctx, dealID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDealNotFound
		}
		return nil, fmt.Errorf("load deal %d: %w", dealID, err)
	}
	if !deal.IsPublished {
		return nil, ErrDealNotFound
	}

	unlocked := deal.IsOpen()
	if !unlocked && userID != 0 {
		unlocked, err = s.unlocks.Exists(ctx, userID, deal.ID)
		if err != nil {
			return nil, fmt.Errorf("check unlock: %w", err)
		}
	}

	if s.views != nil {
		if err := s.views.AddDealView(ctx, deal.ID); err != nil {
			log.Warnf("[Catalog] Failed to count view for deal %d: %v", deal.ID, err)
		}
	}

	detail := &DealDetail{DealView: DealView{Deal: *deal, IsUnlocked: unlocked}}
	if unlocked {
		secrets := deal.Secrets()
		detail.Secrets = &secrets
	}
	return detail, nil
}

// unlockedSet reads the caller's unlocked deals, cache first.
func (s *Service) unlockedSet(ctx context.Context, userID uint) (map[uint]struct{}, error) {
	if userID == 0 {
		return nil, nil
	}
	if s.cache != nil {
		ids, ok, err := s.cache.Get(ctx, userID)
		if err != nil {
			log.Warnf("[Catalog] Unlock cache read failed for user %d: %v", userID, err)
		} else if ok {
			return ids, nil
		}
	}

	ids, err := s.unlocks.ListDealIDsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list unlocks: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.Store(ctx, userID, ids); err != nil {
			log.Warnf("[Catalog] Unlock cache write failed for user %d: %v", userID, err)
		}
	}

	set := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

func normalizePaging(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = models.GetAppSettings().GetDealsPerPage()
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}
