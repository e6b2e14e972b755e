// Package nannies registers caregiver profiles.
package nannies

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/nanny-match/internal/domain"
	"github.com/spigell/nanny-match/internal/logger"
)

// Store persists nanny profiles.
type Store interface {
	Save(ctx context.Context, nanny domain.NannyProfile) (domain.NannyProfile, error)
	Get(ctx context.Context, id string) (domain.NannyProfile, error)
	List(ctx context.Context) ([]domain.NannyProfile, error)
}

// Service manages nanny profiles.
type Service struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

// New returns a Service backed by store.
func New(store Store, log *zap.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger.WithFields(log),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Save creates or replaces a profile. A missing id is generated; the
// creation time of an existing profile is kept.
func (s *Service) Save(ctx context.Context, nanny domain.NannyProfile) (domain.NannyProfile, error) {
	nanny.Name = strings.TrimSpace(nanny.Name)
	nanny.City = strings.TrimSpace(nanny.City)
	if nanny.Name == "" {
		return domain.NannyProfile{}, domain.NewValidationError("name", "is required")
	}

	now := s.now()
	if nanny.ID == "" {
		nanny.ID = uuid.NewString()
	} else if existing, err := s.store.Get(ctx, nanny.ID); err == nil {
		nanny.CreatedAt = existing.CreatedAt
	}
	if nanny.CreatedAt.IsZero() {
		nanny.CreatedAt = now
	}
	nanny.UpdatedAt = now

	saved, err := s.store.Save(ctx, nanny)
	if err != nil {
		return domain.NannyProfile{}, fmt.Errorf("save nanny %s: %w", nanny.ID, err)
	}

	s.logger.Info("nanny profile saved", logger.RequestFields("", saved.ID)...)
	return saved, nil
}

func (s *Service) List(ctx context.Context) ([]domain.NannyProfile, error) {
	return s.store.List(ctx)
}
