package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RequestStatus is the approval state of a rental request.
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "PENDING"
	RequestStatusApproved  RequestStatus = "APPROVED"
	RequestStatusRejected  RequestStatus = "REJECTED"
	RequestStatusCancelled RequestStatus = "CANCELLED"
)

// CanTransitionTo enforces the request state machine:
// PENDING → APPROVED | REJECTED | CANCELLED, APPROVED → CANCELLED.
// REJECTED and CANCELLED are terminal.
func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	switch s {
	case RequestStatusPending:
		return next == RequestStatusApproved || next == RequestStatusRejected || next == RequestStatusCancelled
	case RequestStatusApproved:
		return next == RequestStatusCancelled
	case RequestStatusRejected, RequestStatusCancelled:
		return false
	default:
		return false
	}
}

// Terminal reports whether no further reviewer or requester action applies.
// APPROVED is terminal for the request itself — the lifecycle continues on
// the rental created from it.
func (s RequestStatus) Terminal() bool {
	return s == RequestStatusRejected || s == RequestStatusCancelled
}

// RentalRequest is a requester's ask to use a vehicle over a date range.
// VehicleID may be nil ("no preference, assign later"), but a request cannot
// be approved until a concrete vehicle is bound. Reviewer fields stay empty
// while the request is pending. Requests are never deleted — only advanced to
// APPROVED or terminalized.
type RentalRequest struct {
	ID               uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RequesterID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"requester_id"` // opaque ref into the identity service
	VehicleID        *uuid.UUID      `gorm:"type:uuid;index" json:"vehicle_id"`
	Vehicle          *Vehicle        `gorm:"foreignKey:VehicleID" json:"vehicle,omitempty"`
	StartDate        time.Time       `gorm:"type:date;not null" json:"start_date"`
	EndDate          time.Time       `gorm:"type:date;not null" json:"end_date"`
	StartTime        string          `gorm:"type:varchar(5)" json:"start_time,omitempty"` // HH:MM, informational only
	EndTime          string          `gorm:"type:varchar(5)" json:"end_time,omitempty"`
	Purpose          string          `gorm:"type:text;not null" json:"purpose"`
	Destination      string          `gorm:"type:text" json:"destination"`
	EstimatedMileage decimal.Decimal `gorm:"type:decimal(10,1);default:0" json:"estimated_mileage"`
	Status           RequestStatus   `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	ReviewerID       *uuid.UUID      `gorm:"type:uuid" json:"reviewer_id"`
	ReviewComment    string          `gorm:"type:text" json:"review_comment"`
	ReviewedAt       *time.Time      `json:"reviewed_at"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}
