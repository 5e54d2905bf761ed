package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// FleetStatisticsResponse aggregates rental activity over a date range
type FleetStatisticsResponse struct {
	RentalsByStatus    map[string]int64     `json:"rentals_by_status"`
	RequestsByStatus   map[string]int64     `json:"requests_by_status"`
	TotalDistance      decimal.Decimal      `json:"total_distance"` // sum of completed rentals' total_mileage
	TopVehicles        []VehicleUtilization `json:"top_vehicles"`
	TimeRangeStartDate time.Time            `json:"time_range_start_date"`
	TimeRangeEndDate   time.Time            `json:"time_range_end_date"`
}

// VehicleUtilization ranks a vehicle by booked days within the range
type VehicleUtilization struct {
	VehicleID   string          `json:"vehicle_id"`
	PlateNumber string          `json:"plate_number"`
	VehicleType string          `json:"vehicle_type"`
	RentalCount int             `json:"rental_count"`
	BookedDays  int             `json:"booked_days"`
	Distance    decimal.Decimal `json:"distance"`
}
