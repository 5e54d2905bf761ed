package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// VehicleStatus is the physical possession state of a vehicle: who currently
// holds the keys. It is NOT a calendar-availability flag — reservation
// conflicts are always computed from rentals, never from this field.
type VehicleStatus string

const (
	VehicleStatusAvailable   VehicleStatus = "AVAILABLE"
	VehicleStatusRented      VehicleStatus = "RENTED"
	VehicleStatusMaintenance VehicleStatus = "MAINTENANCE"
	VehicleStatusRetired     VehicleStatus = "RETIRED"
)

// Vehicle represents a fleet vehicle. Fleet administration (create/edit) is
// handled elsewhere; this core only reads vehicles and flips possession status
// on pickup/return/cancel.
type Vehicle struct {
	ID             uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	PlateNumber    string          `gorm:"type:varchar(20);uniqueIndex;not null" json:"plate_number"`
	VehicleType    string          `gorm:"type:varchar(50);not null;index" json:"vehicle_type"` // SEDAN, SUV, VAN, TRUCK
	Seats          int             `gorm:"type:int;default:5" json:"seats"`
	Fuel           string          `gorm:"type:varchar(20)" json:"fuel"`         // GASOLINE, DIESEL, ELECTRIC, HYBRID
	Transmission   string          `gorm:"type:varchar(20)" json:"transmission"` // MANUAL, AUTOMATIC
	Status         VehicleStatus   `gorm:"type:varchar(20);not null;default:'AVAILABLE';index" json:"status"`
	CurrentMileage decimal.Decimal `gorm:"type:decimal(10,1);default:0" json:"current_mileage"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	DeletedAt      gorm.DeletedAt  `gorm:"index" json:"-"`
}
