package domain

import (
	"fmt"
	"time"
)

// RequestStatus is the moderation state of a parent request.
type RequestStatus string

const (
	StatusNew      RequestStatus = "new"
	StatusInReview RequestStatus = "in_review"
	StatusApproved RequestStatus = "approved"
	StatusRejected RequestStatus = "rejected"
)

// Valid reports whether the status is one of the known values.
func (s RequestStatus) Valid() bool {
	switch s {
	case StatusNew, StatusInReview, StatusApproved, StatusRejected:
		return true
	default:
		return false
	}
}

// ParseRequestStatus converts a raw string into a RequestStatus.
func ParseRequestStatus(raw string) (RequestStatus, error) {
	s := RequestStatus(raw)
	if !s.Valid() {
		return "", NewValidationError("status", fmt.Sprintf("unknown status %q", raw))
	}
	return s, nil
}

// ChangeType classifies an audit trail entry.
type ChangeType string

const (
	ChangeCreated       ChangeType = "created"
	ChangeUpdated       ChangeType = "updated"
	ChangeStatusChanged ChangeType = "status_changed"
	ChangeResubmitted   ChangeType = "resubmitted"
)

// Actor identifies who caused a change.
type Actor string

const (
	ActorUser  Actor = "user"
	ActorAdmin Actor = "admin"
)

// Valid reports whether the actor is one of the known values.
func (a Actor) Valid() bool {
	return a == ActorUser || a == ActorAdmin
}

// ChangeEntry is a single immutable audit trail record.
type ChangeEntry struct {
	At   time.Time  `json:"at"`
	Type ChangeType `json:"type"`
	By   Actor      `json:"by"`
	Note string     `json:"note,omitempty"`
}

// RejectionInfo carries the moderator's explanation for a rejection.
type RejectionInfo struct {
	ReasonText string `json:"reasonText"`
}

// ParentRiskProfile holds family communication and discipline preferences
// used as soft-match signals. A nil profile means the family skipped it.
type ParentRiskProfile struct {
	FamilyStyle     string   `json:"familyStyle,omitempty"`
	DisciplineTone  string   `json:"disciplineTone,omitempty"`
	Communication   string   `json:"communication,omitempty"`
	StressResponse  string   `json:"stressResponse,omitempty"`
	MissingTraits   []string `json:"missingTraits,omitempty"`
	PersonalityType string   `json:"personalityType,omitempty"`
}

// ParentRequest is a family's request for a nanny. It is owned by the
// lifecycle service; nothing else mutates it.
type ParentRequest struct {
	ID            string             `json:"id"`
	City          string             `json:"city"`
	ChildAge      string             `json:"childAge"`
	Schedule      string             `json:"schedule"`
	Budget        string             `json:"budget"`
	Comment       string             `json:"comment,omitempty"`
	Requirements  []string           `json:"requirements,omitempty"`
	RiskProfile   *ParentRiskProfile `json:"riskProfile,omitempty"`
	Status        RequestStatus      `json:"status"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
	ChangeLog     []ChangeEntry      `json:"changeLog"`
	RejectionInfo *RejectionInfo     `json:"rejectionInfo,omitempty"`
}

func (r ParentRequest) EntityID() string { return r.ID }

func (r ParentRequest) EntityCreatedAt() time.Time { return r.CreatedAt }
