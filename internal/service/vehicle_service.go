package service

import (
	"context"
	"errors"
	"fmt"

	"backend/internal/apperr"
	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// --- DTOs ---

type VehicleResponse struct {
	ID             string `json:"id"`
	PlateNumber    string `json:"plate_number"`
	VehicleType    string `json:"vehicle_type"`
	Seats          int    `json:"seats"`
	Fuel           string `json:"fuel"`
	Transmission   string `json:"transmission"`
	Status         string `json:"status"`
	CurrentMileage string `json:"current_mileage"`
}

// --- Interface ---

type VehicleService interface {
	GetVehicle(ctx context.Context, id uuid.UUID) (VehicleResponse, error)
	ListVehicles(ctx context.Context, page, limit int) ([]VehicleResponse, int64, error)
	// ListAvailable is the advisory availability listing: vehicles whose
	// possession status is AVAILABLE and which have no active rental
	// overlapping the range. It may be stale by the time a reviewer acts on
	// it — the approval transaction re-checks authoritatively.
	ListAvailable(ctx context.Context, startDate, endDate, vehicleType string) ([]VehicleResponse, error)
}

type vehicleService struct {
	vehicleRepo repository.VehicleRepository
}

func NewVehicleService(vehicleRepo repository.VehicleRepository) VehicleService {
	return &vehicleService{vehicleRepo: vehicleRepo}
}

// --- Implementation ---

func (s *vehicleService) GetVehicle(ctx context.Context, id uuid.UUID) (VehicleResponse, error) {
	vehicle, err := s.vehicleRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return VehicleResponse{}, apperr.NotFound("vehicle %s", id)
		}
		return VehicleResponse{}, fmt.Errorf("failed to load vehicle: %w", err)
	}
	return toVehicleResponse(*vehicle), nil
}

func (s *vehicleService) ListVehicles(ctx context.Context, page, limit int) ([]VehicleResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	vehicles, total, err := s.vehicleRepo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list vehicles: %w", err)
	}

	result := make([]VehicleResponse, 0, len(vehicles))
	for _, v := range vehicles {
		result = append(result, toVehicleResponse(v))
	}
	return result, total, nil
}

func (s *vehicleService) ListAvailable(ctx context.Context, startDate, endDate, vehicleType string) ([]VehicleResponse, error) {
	start, err := parseDate(startDate)
	if err != nil {
		return nil, apperr.Validation("invalid start_date %q", startDate)
	}
	end, err := parseDate(endDate)
	if err != nil {
		return nil, apperr.Validation("invalid end_date %q", endDate)
	}
	if end.Before(start) {
		return nil, apperr.Validation("end_date %s is before start_date %s", endDate, startDate)
	}

	vehicles, err := s.vehicleRepo.ListAvailable(ctx, start, end, vehicleType)
	if err != nil {
		return nil, fmt.Errorf("failed to list available vehicles: %w", err)
	}

	result := make([]VehicleResponse, 0, len(vehicles))
	for _, v := range vehicles {
		result = append(result, toVehicleResponse(v))
	}
	return result, nil
}

// --- Helpers ---

func toVehicleResponse(v model.Vehicle) VehicleResponse {
	return VehicleResponse{
		ID:             v.ID.String(),
		PlateNumber:    v.PlateNumber,
		VehicleType:    v.VehicleType,
		Seats:          v.Seats,
		Fuel:           v.Fuel,
		Transmission:   v.Transmission,
		Status:         string(v.Status),
		CurrentMileage: v.CurrentMileage.String(),
	}
}
