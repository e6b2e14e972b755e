// Package lifecycle owns parent requests: their moderation state machine,
// the append-only audit trail and the edit lock on approved requests.
package lifecycle

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/nanny-match/internal/domain"
	"github.com/spigell/nanny-match/internal/logger"
	"github.com/spigell/nanny-match/internal/metrics"
)

// TestIDPrefix marks requests created as test data.
const TestIDPrefix = "test_"

// Store persists requests.
type Store interface {
	Save(ctx context.Context, req domain.ParentRequest) (domain.ParentRequest, error)
	Get(ctx context.Context, id string) (domain.ParentRequest, error)
	List(ctx context.Context) ([]domain.ParentRequest, error)
}

// CreateInput is what a parent submits.
type CreateInput struct {
	City         string                    `json:"city"`
	ChildAge     string                    `json:"childAge"`
	Schedule     string                    `json:"schedule"`
	Budget       string                    `json:"budget"`
	Comment      string                    `json:"comment"`
	Requirements []string                  `json:"requirements"`
	RiskProfile  *domain.ParentRiskProfile `json:"riskProfile"`
	TestData     bool                      `json:"testData"`
}

// Patch lists the fields to change. Nil fields are left as they are.
type Patch struct {
	City          *string                   `json:"city,omitempty"`
	ChildAge      *string                   `json:"childAge,omitempty"`
	Schedule      *string                   `json:"schedule,omitempty"`
	Budget        *string                   `json:"budget,omitempty"`
	Comment       *string                   `json:"comment,omitempty"`
	Requirements  *[]string                 `json:"requirements,omitempty"`
	RiskProfile   *domain.ParentRiskProfile `json:"riskProfile,omitempty"`
	Status        *domain.RequestStatus     `json:"status,omitempty"`
	RejectionInfo *domain.RejectionInfo     `json:"rejectionInfo,omitempty"`
}

// UpdateOptions describe who makes a change. AllowApprovedEdit lifts the
// edit lock and the transition table; it is honoured for the admin actor only.
type UpdateOptions struct {
	Actor             domain.Actor `json:"actor"`
	Note              string       `json:"note"`
	AllowApprovedEdit bool         `json:"allowApprovedEdit"`
}

var transitions = map[domain.RequestStatus][]domain.RequestStatus{
	domain.StatusNew:      {domain.StatusInReview},
	domain.StatusInReview: {domain.StatusApproved, domain.StatusRejected},
}

// CanTransition reports whether a regular update may move a request from
// one status to another. Leaving rejected is only possible via Resubmit.
func CanTransition(from, to domain.RequestStatus) bool {
	return slices.Contains(transitions[from], to)
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used for change events.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = logger.WithFields(l) }
}

// WithMetrics counts changes by type.
func WithMetrics(m *metrics.Manager) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator replaces uuid.NewString.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// Service runs the request lifecycle on top of a Store. Changes to one
// request are applied one at a time.
type Service struct {
	locks   keyedMutex
	store   Store
	logger  *zap.Logger
	metrics *metrics.Manager
	now     func() time.Time
	newID   func() string
}

// New returns a Service backed by store.
func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: zap.NewNop(),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a new request in status new with a single created entry.
func (s *Service) Create(ctx context.Context, in CreateInput) (domain.ParentRequest, error) {
	if strings.TrimSpace(in.City) == "" {
		return domain.ParentRequest{}, domain.NewValidationError("city", "is required")
	}

	id := s.newID()
	if in.TestData {
		id = TestIDPrefix + id
	}

	now := s.now()
	req := domain.ParentRequest{
		ID:           id,
		City:         strings.TrimSpace(in.City),
		ChildAge:     strings.TrimSpace(in.ChildAge),
		Schedule:     strings.TrimSpace(in.Schedule),
		Budget:       strings.TrimSpace(in.Budget),
		Comment:      in.Comment,
		Requirements: cleanTerms(in.Requirements),
		RiskProfile:  in.RiskProfile,
		Status:       domain.StatusNew,
		CreatedAt:    now,
		UpdatedAt:    now,
		ChangeLog: []domain.ChangeEntry{{
			At:   now,
			Type: domain.ChangeCreated,
			By:   domain.ActorUser,
		}},
	}

	saved, err := s.store.Save(ctx, req)
	if err != nil {
		return domain.ParentRequest{}, fmt.Errorf("create request: %w", err)
	}

	s.recorded(saved, domain.ChangeCreated, domain.ActorUser)
	return saved, nil
}

// Update applies patch to the stored request and appends one audit entry.
// Approved requests are locked unless opts.AllowApprovedEdit is set; the
// lock applies to no-op patches too.
func (s *Service) Update(ctx context.Context, id string, patch Patch, opts UpdateOptions) (domain.ParentRequest, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	current, err := s.store.Get(ctx, id)
	if err != nil {
		return domain.ParentRequest{}, err
	}

	actor := opts.Actor
	if actor == "" {
		actor = domain.ActorUser
	}
	override := opts.AllowApprovedEdit && actor == domain.ActorAdmin

	if current.Status == domain.StatusApproved && !override {
		return domain.ParentRequest{}, fmt.Errorf("update %s: %w", id, domain.ErrEditLocked)
	}
	if !actor.Valid() {
		return domain.ParentRequest{}, domain.NewValidationError("actor", fmt.Sprintf("unknown actor %q", actor))
	}
	if opts.AllowApprovedEdit && !override {
		return domain.ParentRequest{}, domain.NewValidationError("allowApprovedEdit", "is reserved for the admin actor")
	}

	next := current
	if err := applyPatch(&next, patch); err != nil {
		return domain.ParentRequest{}, err
	}

	entry := domain.ChangeEntry{
		At:   s.now(),
		Type: domain.ChangeUpdated,
		By:   actor,
		Note: strings.TrimSpace(opts.Note),
	}

	if next.Status != current.Status {
		if !override && !CanTransition(current.Status, next.Status) {
			return domain.ParentRequest{}, fmt.Errorf("update %s from %s to %s: %w",
				id, current.Status, next.Status, domain.ErrInvalidTransition)
		}
		entry.Type = domain.ChangeStatusChanged
		if entry.Note == "" {
			entry.Note = statusNote(current.Status, next.Status)
		}
		if next.Status != domain.StatusRejected && patch.RejectionInfo == nil {
			next.RejectionInfo = nil
		}
	}

	next.UpdatedAt = entry.At
	next.ChangeLog = appendEntry(current.ChangeLog, entry)

	saved, err := s.store.Save(ctx, next)
	if err != nil {
		return domain.ParentRequest{}, fmt.Errorf("update %s: %w", id, err)
	}

	s.recorded(saved, entry.Type, actor)
	return saved, nil
}

// Review moves a new request to in_review.
func (s *Service) Review(ctx context.Context, id string) (domain.ParentRequest, error) {
	status := domain.StatusInReview
	return s.Update(ctx, id, Patch{Status: &status}, UpdateOptions{Actor: domain.ActorAdmin})
}

// Approve moves a request under review to approved, which locks it.
func (s *Service) Approve(ctx context.Context, id, note string) (domain.ParentRequest, error) {
	status := domain.StatusApproved
	return s.Update(ctx, id, Patch{Status: &status}, UpdateOptions{Actor: domain.ActorAdmin, Note: note})
}

// Reject stores the moderator's reason along with the status change.
func (s *Service) Reject(ctx context.Context, id, reason string) (domain.ParentRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.ParentRequest{}, domain.NewValidationError("reason", "is required")
	}
	status := domain.StatusRejected
	return s.Update(ctx, id,
		Patch{Status: &status, RejectionInfo: &domain.RejectionInfo{ReasonText: reason}},
		UpdateOptions{Actor: domain.ActorAdmin},
	)
}

// Resubmit sends a rejected request back to review on the parent's behalf.
func (s *Service) Resubmit(ctx context.Context, id string) (domain.ParentRequest, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	current, err := s.store.Get(ctx, id)
	if err != nil {
		return domain.ParentRequest{}, err
	}

	if current.Status == domain.StatusApproved {
		return domain.ParentRequest{}, fmt.Errorf("resubmit %s: %w", id, domain.ErrEditLocked)
	}
	if current.Status != domain.StatusRejected {
		return domain.ParentRequest{}, fmt.Errorf("resubmit %s from %s: %w", id, current.Status, domain.ErrInvalidTransition)
	}

	now := s.now()
	next := current
	next.Status = domain.StatusInReview
	next.RejectionInfo = nil
	next.UpdatedAt = now
	next.ChangeLog = appendEntry(current.ChangeLog, domain.ChangeEntry{
		At:   now,
		Type: domain.ChangeResubmitted,
		By:   domain.ActorUser,
		Note: statusNote(current.Status, next.Status),
	})

	saved, err := s.store.Save(ctx, next)
	if err != nil {
		return domain.ParentRequest{}, fmt.Errorf("resubmit %s: %w", id, err)
	}

	s.recorded(saved, domain.ChangeResubmitted, domain.ActorUser)
	return saved, nil
}

// Get returns the stored request or domain.ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (domain.ParentRequest, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]domain.ParentRequest, error) {
	return s.store.List(ctx)
}

func (s *Service) recorded(req domain.ParentRequest, change domain.ChangeType, actor domain.Actor) {
	s.metrics.RecordChange(string(change))
	s.logger.Info("request changed",
		append(logger.RequestFields(req.ID, ""),
			zap.String("change", string(change)),
			zap.String(logger.FieldActor, string(actor)),
			zap.String("status", string(req.Status)),
			zap.Int("log_entries", len(req.ChangeLog)),
		)...,
	)
}

func applyPatch(req *domain.ParentRequest, p Patch) error {
	if p.City != nil {
		city := strings.TrimSpace(*p.City)
		if city == "" {
			return domain.NewValidationError("city", "must not be empty")
		}
		req.City = city
	}
	if p.ChildAge != nil {
		req.ChildAge = strings.TrimSpace(*p.ChildAge)
	}
	if p.Schedule != nil {
		req.Schedule = strings.TrimSpace(*p.Schedule)
	}
	if p.Budget != nil {
		req.Budget = strings.TrimSpace(*p.Budget)
	}
	if p.Comment != nil {
		req.Comment = *p.Comment
	}
	if p.Requirements != nil {
		req.Requirements = cleanTerms(*p.Requirements)
	}
	if p.RiskProfile != nil {
		profile := *p.RiskProfile
		profile.MissingTraits = slices.Clone(profile.MissingTraits)
		req.RiskProfile = &profile
	}
	if p.Status != nil {
		if !p.Status.Valid() {
			return domain.NewValidationError("status", fmt.Sprintf("unknown status %q", *p.Status))
		}
		req.Status = *p.Status
	}
	if p.RejectionInfo != nil {
		info := *p.RejectionInfo
		req.RejectionInfo = &info
	}
	return nil
}

// appendEntry never writes into the backing array of log.
func appendEntry(log []domain.ChangeEntry, entry domain.ChangeEntry) []domain.ChangeEntry {
	out := make([]domain.ChangeEntry, 0, len(log)+1)
	out = append(out, log...)
	return append(out, entry)
}

func statusNote(from, to domain.RequestStatus) string {
	return fmt.Sprintf("status: %s → %s", from, to)
}

func cleanTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
