package quota

import (
	"context"
	"fmt"
	"sync"

	"github.com/clouddrivehq/clouddrive-backend/internal/subscriptions"
	"github.com/clouddrivehq/clouddrive-backend/pkg/db/models"
	pkgerrors "github.com/clouddrivehq/clouddrive-backend/pkg/errors"
	"github.com/google/uuid"
)

type subscriptionsService interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	GetUsage(ctx context.Context, userID uuid.UUID) (*subscriptions.Usage, error)
}

type plansCatalog interface {
	GetPlan(ctx context.Context, id string) (*models.StoragePlan, error)
}

type rejectionCounter interface {
	IncQuotaRejected(reason string)
}

// Service is the single admission point for storage consumption. Every byte
// added to a user's drive goes through CheckAndReserve before the write.
type Service interface {
	CheckAndReserve(ctx context.Context, userID uuid.UUID, sizeBytes int64) error
	Release(ctx context.Context, userID uuid.UUID, sizeBytes int64) error
	Usage(ctx context.Context, userID uuid.UUID) (*subscriptions.Usage, error)
}

type service struct {
	repo    Repository
	subs    subscriptionsService
	plans   plansCatalog
	metrics rejectionCounter

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// NewService builds the quota guard.
func NewService(repo Repository, subs subscriptionsService, plans plansCatalog, metrics rejectionCounter) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("quota repository required")
	}
	if subs == nil {
		return nil, fmt.Errorf("subscriptions service required")
	}
	if plans == nil {
		return nil, fmt.Errorf("plans catalog required")
	}
	return &service{
		repo:    repo,
		subs:    subs,
		plans:   plans,
		metrics: metrics,
		locks:   make(map[uuid.UUID]*sync.Mutex),
	}, nil
}

// CheckAndReserve admits sizeBytes against the user's plan limit. The guarded
// UPDATE carries the invariant; the per-user lock keeps concurrent reservations
// from racing past each other on drivers without strict serializability.
func (s *service) CheckAndReserve(ctx context.Context, userID uuid.UUID, sizeBytes int64) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}
	if sizeBytes <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "size_bytes must be positive")
	}

	sub, err := s.subs.GetOrCreate(ctx, userID)
	if err != nil {
		return err
	}

	plan := sub.Plan
	if plan == nil {
		plan, err = s.plans.GetPlan(ctx, sub.PlanID)
		if err != nil {
			return err
		}
	}

	if sizeBytes > plan.MaxFileSizeBytes {
		s.rejected("file_too_large")
		return pkgerrors.New(pkgerrors.CodeValidation, "file exceeds the plan's single file limit").WithDetails(map[string]any{
			"plan":          plan.ID,
			"requested":     sizeBytes,
			"max_file_size": plan.MaxFileSizeBytes,
		})
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	ok, err := s.repo.Reserve(ctx, userID, sizeBytes, plan.StorageBytes)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve storage")
	}
	if !ok {
		s.rejected("quota_exceeded")
		details := map[string]any{
			"plan":      plan.ID,
			"requested": sizeBytes,
			"limit":     plan.StorageBytes,
		}
		if usage, usageErr := s.subs.GetUsage(ctx, userID); usageErr == nil {
			details["used"] = usage.StorageUsedBytes
		}
		return pkgerrors.New(pkgerrors.CodeQuotaExceeded, "storage quota exceeded").WithDetails(details)
	}
	return nil
}

// Release returns sizeBytes to the user's quota. An over-release clamps the
// counter to zero and reports CONFLICT so the caller can flag the accounting
// bug instead of silently absorbing it.
func (s *service) Release(ctx context.Context, userID uuid.UUID, sizeBytes int64) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}
	if sizeBytes <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "size_bytes must be positive")
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	ok, err := s.repo.Release(ctx, userID, sizeBytes)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release storage")
	}
	if !ok {
		if err := s.repo.ClampToZero(ctx, userID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clamp storage usage")
		}
		return pkgerrors.New(pkgerrors.CodeConflict, "release exceeds recorded usage")
	}
	return nil
}

func (s *service) Usage(ctx context.Context, userID uuid.UUID) (*subscriptions.Usage, error) {
	return s.subs.GetUsage(ctx, userID)
}

func (s *service) userLock(userID uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[userID] = lock
	}
	return lock
}

func (s *service) rejected(reason string) {
	if s.metrics != nil {
		s.metrics.IncQuotaRejected(reason)
	}
}
