package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionSubmitRequest  = "SUBMIT_REQUEST"
	ActionApproveRequest = "APPROVE_REQUEST"
	ActionRejectRequest  = "REJECT_REQUEST"
	ActionCancelRequest  = "CANCEL_REQUEST"
	ActionCancelRental   = "CANCEL_RENTAL"
	ActionConfirmPickup  = "CONFIRM_PICKUP"
	ActionConfirmReturn  = "CONFIRM_RETURN"
)

// AuditLog tracks Who, What, and When for every lifecycle mutation. Rows are
// written inside the same transaction as the state change they describe.
type AuditLog struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ActorID   *uuid.UUID `gorm:"type:uuid;index" json:"actor_id"` // nil for scheduled jobs
	Action    string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID  string     `gorm:"type:varchar(50);index" json:"entity_id"`
	Details   string     `gorm:"type:jsonb" json:"details"` // serialized JSON payload of the action
	CreatedAt time.Time  `gorm:"index" json:"created_at"`
}
