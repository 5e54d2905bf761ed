package service

import (
	"context"
	"time"

	"backend/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type StatisticsService interface {
	GetFleetStatistics(ctx context.Context, startDate, endDate time.Time) (model.FleetStatisticsResponse, error)
}

type statisticsService struct {
	db *gorm.DB
}

func NewStatisticsService(db *gorm.DB) StatisticsService {
	return &statisticsService{db: db}
}

// GetFleetStatistics aggregates rental activity over the inclusive date range
func (s *statisticsService) GetFleetStatistics(ctx context.Context, startDate, endDate time.Time) (model.FleetStatisticsResponse, error) {
	var response model.FleetStatisticsResponse
	response.TimeRangeStartDate = startDate
	response.TimeRangeEndDate = endDate
	response.RentalsByStatus = map[string]int64{}
	response.RequestsByStatus = map[string]int64{}
	response.TotalDistance = decimal.Zero

	type statusCount struct {
		Status string
		Count  int64
	}

	// Rentals by status within the range
	var rentalCounts []statusCount
	s.db.WithContext(ctx).Model(&model.Rental{}).
		Select("status, COUNT(*) as count").
		Where("start_date <= ? AND end_date >= ?", endDate, startDate).
		Group("status").
		Scan(&rentalCounts)
	for _, rc := range rentalCounts {
		response.RentalsByStatus[rc.Status] = rc.Count
	}

	// Requests by status within the range
	var requestCounts []statusCount
	s.db.WithContext(ctx).Model(&model.RentalRequest{}).
		Select("status, COUNT(*) as count").
		Where("start_date <= ? AND end_date >= ?", endDate, startDate).
		Group("status").
		Scan(&requestCounts)
	for _, rc := range requestCounts {
		response.RequestsByStatus[rc.Status] = rc.Count
	}

	// Total distance driven by completed rentals in the range
	var totalDistance struct {
		Value decimal.Decimal
	}
	s.db.WithContext(ctx).Model(&model.Rental{}).
		Select("COALESCE(SUM(total_mileage), 0) as value").
		Where("status = ? AND start_date <= ? AND end_date >= ?", model.RentalStatusCompleted, endDate, startDate).
		Scan(&totalDistance)
	response.TotalDistance = totalDistance.Value

	// Top vehicles by booked days (inclusive day count per rental)
	var top []model.VehicleUtilization
	s.db.WithContext(ctx).Table("rentals").
		Select("vehicles.id as vehicle_id, vehicles.plate_number, vehicles.vehicle_type, COUNT(rentals.id) as rental_count, SUM(rentals.end_date - rentals.start_date + 1) as booked_days, COALESCE(SUM(rentals.total_mileage), 0) as distance").
		Joins("JOIN vehicles ON vehicles.id = rentals.vehicle_id").
		Where("rentals.status IN ?", []model.RentalStatus{model.RentalStatusConfirmed, model.RentalStatusInProgress, model.RentalStatusCompleted}).
		Where("rentals.start_date <= ? AND rentals.end_date >= ?", endDate, startDate).
		Group("vehicles.id, vehicles.plate_number, vehicles.vehicle_type").
		Order("booked_days DESC").
		Limit(5).
		Scan(&top)
	response.TopVehicles = top

	return response, nil
}
