package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RentalStatus is the usage state of a realized rental.
type RentalStatus string

const (
	RentalStatusConfirmed  RentalStatus = "CONFIRMED"
	RentalStatusInProgress RentalStatus = "IN_PROGRESS"
	RentalStatusCompleted  RentalStatus = "COMPLETED"
	RentalStatusCancelled  RentalStatus = "CANCELLED"
)

// CanTransitionTo enforces the rental state machine:
// CONFIRMED → IN_PROGRESS | CANCELLED, IN_PROGRESS → COMPLETED | CANCELLED.
// COMPLETED and CANCELLED are terminal.
func (s RentalStatus) CanTransitionTo(next RentalStatus) bool {
	switch s {
	case RentalStatusConfirmed:
		return next == RentalStatusInProgress || next == RentalStatusCancelled
	case RentalStatusInProgress:
		return next == RentalStatusCompleted || next == RentalStatusCancelled
	case RentalStatusCompleted, RentalStatusCancelled:
		return false
	default:
		return false
	}
}

// Active reports whether the rental occupies the vehicle calendar. Only
// CONFIRMED and IN_PROGRESS rentals participate in conflict detection.
func (s RentalStatus) Active() bool {
	return s == RentalStatusConfirmed || s == RentalStatusInProgress
}

// ActiveRentalStatuses is the set scanned by the conflict detector.
var ActiveRentalStatuses = []RentalStatus{RentalStatusConfirmed, RentalStatusInProgress}

// Rental is the realized allocation of a vehicle to a renter over a date
// range. It exists only as the byproduct of approving a request — exactly one
// rental per approved request.
type Rental struct {
	ID              uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RequestID       uuid.UUID        `gorm:"type:uuid;uniqueIndex;not null" json:"request_id"`
	VehicleID       uuid.UUID        `gorm:"type:uuid;not null;index" json:"vehicle_id"`
	Vehicle         *Vehicle         `gorm:"foreignKey:VehicleID" json:"vehicle,omitempty"`
	RenterID        uuid.UUID        `gorm:"type:uuid;not null;index" json:"renter_id"`
	StartDate       time.Time        `gorm:"type:date;not null" json:"start_date"`
	EndDate         time.Time        `gorm:"type:date;not null" json:"end_date"`
	Status          RentalStatus     `gorm:"type:varchar(20);not null;default:'CONFIRMED';index" json:"status"`
	StartMileage    *decimal.Decimal `gorm:"type:decimal(10,1)" json:"start_mileage"`
	EndMileage      *decimal.Decimal `gorm:"type:decimal(10,1)" json:"end_mileage"`
	TotalMileage    *decimal.Decimal `gorm:"type:decimal(10,1)" json:"total_mileage"` // end − start, set only at completion
	ActualStartTime *time.Time       `json:"actual_start_time"`
	ActualEndTime   *time.Time       `json:"actual_end_time"`
	ReturnChecklist string           `gorm:"type:jsonb" json:"return_checklist,omitempty"` // opaque structured payload from the return form
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// DateRangesOverlap reports whether [aStart, aEnd] and [bStart, bEnd] overlap.
// Both ends are inclusive: a same-day handoff on the boundary date counts as
// a conflict, since scheduling is date-only.
func DateRangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aStart.After(bEnd) && !aEnd.Before(bStart)
}
