package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"backend/internal/apperr"
	"backend/internal/model"
	"backend/internal/repository"
	ws "backend/internal/websocket"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// --- DTOs ---

type PickupDTO struct {
	StartMileage string `json:"start_mileage"` // optional odometer reading at handoff
}

type ReturnDTO struct {
	EndMileage      string          `json:"end_mileage"` // optional odometer reading at return
	ReturnChecklist json.RawMessage `json:"return_checklist"`
}

type RentalFilter struct {
	Status string // CONFIRMED, IN_PROGRESS, COMPLETED, CANCELLED or empty for all
	Page   int
	Limit  int
}

type RentalResponse struct {
	ID              string  `json:"id"`
	RequestID       string  `json:"request_id"`
	VehicleID       string  `json:"vehicle_id"`
	VehiclePlate    string  `json:"vehicle_plate,omitempty"`
	RenterID        string  `json:"renter_id"`
	StartDate       string  `json:"start_date"`
	EndDate         string  `json:"end_date"`
	Status          string  `json:"status"`
	StartMileage    *string `json:"start_mileage"`
	EndMileage      *string `json:"end_mileage"`
	TotalMileage    *string `json:"total_mileage"`
	ActualStartTime *string `json:"actual_start_time"`
	ActualEndTime   *string `json:"actual_end_time"`
	ReturnChecklist string  `json:"return_checklist,omitempty"`
	CreatedAt       string  `json:"created_at"`
}

// --- Interface ---

// RentalService hosts the usage lifecycle of realized rentals: pickup flips
// physical possession to the renter, return hands it back. Both are
// optimistic — the update is conditioned on the expected prior status and
// fails rather than overwriting a concurrent actor's result.
type RentalService interface {
	GetRental(ctx context.Context, id uuid.UUID) (RentalResponse, error)
	ListRentals(ctx context.Context, filter RentalFilter) ([]RentalResponse, int64, error)
	ListMyRentals(ctx context.Context, renterID uuid.UUID, page, limit int) ([]RentalResponse, int64, error)
	ConfirmPickup(ctx context.Context, rentalID, actorID uuid.UUID, req PickupDTO) (RentalResponse, error)
	ConfirmReturn(ctx context.Context, rentalID, actorID uuid.UUID, req ReturnDTO) (RentalResponse, error)
}

type rentalService struct {
	rentalRepo  repository.RentalRepository
	vehicleRepo repository.VehicleRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	notifier    Notifier
}

func NewRentalService(
	rentalRepo repository.RentalRepository,
	vehicleRepo repository.VehicleRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	notifier Notifier,
) RentalService {
	return &rentalService{
		rentalRepo:  rentalRepo,
		vehicleRepo: vehicleRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
		notifier:    notifier,
	}
}

// --- Implementation ---

func (s *rentalService) GetRental(ctx context.Context, id uuid.UUID) (RentalResponse, error) {
	rental, err := s.rentalRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return RentalResponse{}, apperr.NotFound("rental %s", id)
		}
		return RentalResponse{}, fmt.Errorf("failed to load rental: %w", err)
	}
	return toRentalResponse(*rental), nil
}

func (s *rentalService) ListRentals(ctx context.Context, filter RentalFilter) ([]RentalResponse, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}

	rentals, total, err := s.rentalRepo.List(ctx, model.RentalStatus(filter.Status), filter.Page, filter.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list rentals: %w", err)
	}

	result := make([]RentalResponse, 0, len(rentals))
	for _, r := range rentals {
		result = append(result, toRentalResponse(r))
	}
	return result, total, nil
}

func (s *rentalService) ListMyRentals(ctx context.Context, renterID uuid.UUID, page, limit int) ([]RentalResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	rentals, total, err := s.rentalRepo.ListByRenter(ctx, renterID, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list rentals: %w", err)
	}

	result := make([]RentalResponse, 0, len(rentals))
	for _, r := range rentals {
		result = append(result, toRentalResponse(r))
	}
	return result, total, nil
}

func (s *rentalService) ConfirmPickup(ctx context.Context, rentalID, actorID uuid.UUID, req PickupDTO) (RentalResponse, error) {
	var startMileage *decimal.Decimal
	if req.StartMileage != "" {
		parsed, err := decimal.NewFromString(req.StartMileage)
		if err != nil || parsed.IsNegative() {
			return RentalResponse{}, apperr.Validation("invalid start_mileage %q", req.StartMileage)
		}
		startMileage = &parsed
	}

	var rental *model.Rental
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		rental, err = s.rentalRepo.FindByIDForUpdate(txCtx, rentalID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("rental %s", rentalID)
			}
			return fmt.Errorf("failed to load rental: %w", err)
		}

		if rental.Status != model.RentalStatusConfirmed {
			return apperr.InvalidTransition("pickup requires a confirmed rental, rental %s is %s", rentalID, rental.Status)
		}

		now := time.Now()
		updates := map[string]interface{}{
			"status":            model.RentalStatusInProgress,
			"actual_start_time": now,
		}
		if startMileage != nil {
			updates["start_mileage"] = *startMileage
		}

		rows, err := s.rentalRepo.UpdateStatusIf(txCtx, rentalID, model.RentalStatusConfirmed, updates)
		if err != nil {
			return fmt.Errorf("failed to update rental: %w", err)
		}
		if rows == 0 {
			return apperr.StaleState("rental %s was modified concurrently", rentalID)
		}

		// The keys leave custody here — this is the only place possession
		// flips to RENTED. A confirmed reservation already blocked the
		// calendar without touching this flag.
		if err := s.vehicleRepo.Updates(txCtx, rental.VehicleID, map[string]interface{}{
			"status": model.VehicleStatusRented,
		}); err != nil {
			return fmt.Errorf("failed to update vehicle: %w", err)
		}

		rental.Status = model.RentalStatusInProgress
		rental.ActualStartTime = &now
		if startMileage != nil {
			rental.StartMileage = startMileage
		}

		return s.writeAudit(txCtx, actorID, model.ActionConfirmPickup, rentalID, map[string]interface{}{
			"vehicle_id":    rental.VehicleID.String(),
			"start_mileage": req.StartMileage,
		})
	})
	if err != nil {
		return RentalResponse{}, err
	}

	s.notifier.Publish(ws.TopicRentals, "picked_up", rentalID.String())
	s.notifier.Publish(ws.TopicVehicles, "rented", rental.VehicleID.String())
	return toRentalResponse(*rental), nil
}

func (s *rentalService) ConfirmReturn(ctx context.Context, rentalID, actorID uuid.UUID, req ReturnDTO) (RentalResponse, error) {
	var endMileage *decimal.Decimal
	if req.EndMileage != "" {
		parsed, err := decimal.NewFromString(req.EndMileage)
		if err != nil || parsed.IsNegative() {
			return RentalResponse{}, apperr.Validation("invalid end_mileage %q", req.EndMileage)
		}
		endMileage = &parsed
	}

	var rental *model.Rental
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		rental, err = s.rentalRepo.FindByIDForUpdate(txCtx, rentalID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("rental %s", rentalID)
			}
			return fmt.Errorf("failed to load rental: %w", err)
		}

		if rental.Status != model.RentalStatusInProgress {
			return apperr.InvalidTransition("return requires an in-progress rental, rental %s is %s", rentalID, rental.Status)
		}

		var totalMileage *decimal.Decimal
		if endMileage != nil && rental.StartMileage != nil {
			total := endMileage.Sub(*rental.StartMileage)
			if total.IsNegative() {
				return apperr.Validation("end_mileage %s is below start_mileage %s", endMileage, rental.StartMileage)
			}
			totalMileage = &total
		}

		now := time.Now()
		updates := map[string]interface{}{
			"status":          model.RentalStatusCompleted,
			"actual_end_time": now,
		}
		if endMileage != nil {
			updates["end_mileage"] = *endMileage
		}
		if totalMileage != nil {
			updates["total_mileage"] = *totalMileage
		}
		if len(req.ReturnChecklist) > 0 {
			updates["return_checklist"] = string(req.ReturnChecklist)
		}

		rows, err := s.rentalRepo.UpdateStatusIf(txCtx, rentalID, model.RentalStatusInProgress, updates)
		if err != nil {
			return fmt.Errorf("failed to update rental: %w", err)
		}
		if rows == 0 {
			return apperr.StaleState("rental %s was modified concurrently", rentalID)
		}

		vehicleUpdates := map[string]interface{}{
			"status": model.VehicleStatusAvailable,
		}
		if endMileage != nil {
			vehicleUpdates["current_mileage"] = *endMileage
		}
		if err := s.vehicleRepo.Updates(txCtx, rental.VehicleID, vehicleUpdates); err != nil {
			return fmt.Errorf("failed to update vehicle: %w", err)
		}

		rental.Status = model.RentalStatusCompleted
		rental.ActualEndTime = &now
		if endMileage != nil {
			rental.EndMileage = endMileage
		}
		if totalMileage != nil {
			rental.TotalMileage = totalMileage
		}
		if len(req.ReturnChecklist) > 0 {
			rental.ReturnChecklist = string(req.ReturnChecklist)
		}

		return s.writeAudit(txCtx, actorID, model.ActionConfirmReturn, rentalID, map[string]interface{}{
			"vehicle_id":  rental.VehicleID.String(),
			"end_mileage": req.EndMileage,
		})
	})
	if err != nil {
		return RentalResponse{}, err
	}

	s.notifier.Publish(ws.TopicRentals, "returned", rentalID.String())
	s.notifier.Publish(ws.TopicVehicles, "released", rental.VehicleID.String())
	return toRentalResponse(*rental), nil
}

func (s *rentalService) writeAudit(txCtx context.Context, actorID uuid.UUID, action string, entityID uuid.UUID, details map[string]interface{}) error {
	payload, _ := json.Marshal(details)
	entry := model.AuditLog{
		ActorID:  &actorID,
		Action:   action,
		EntityID: entityID.String(),
		Details:  string(payload),
	}
	if err := s.auditRepo.Log(txCtx, &entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// --- Helpers ---

func toRentalResponse(r model.Rental) RentalResponse {
	resp := RentalResponse{
		ID:              r.ID.String(),
		RequestID:       r.RequestID.String(),
		VehicleID:       r.VehicleID.String(),
		RenterID:        r.RenterID.String(),
		StartDate:       r.StartDate.Format("2006-01-02"),
		EndDate:         r.EndDate.Format("2006-01-02"),
		Status:          string(r.Status),
		ReturnChecklist: r.ReturnChecklist,
		CreatedAt:       r.CreatedAt.Format(time.RFC3339),
	}

	if r.Vehicle != nil {
		resp.VehiclePlate = r.Vehicle.PlateNumber
	}
	if r.StartMileage != nil {
		v := r.StartMileage.String()
		resp.StartMileage = &v
	}
	if r.EndMileage != nil {
		v := r.EndMileage.String()
		resp.EndMileage = &v
	}
	if r.TotalMileage != nil {
		v := r.TotalMileage.String()
		resp.TotalMileage = &v
	}
	if r.ActualStartTime != nil {
		v := r.ActualStartTime.Format(time.RFC3339)
		resp.ActualStartTime = &v
	}
	if r.ActualEndTime != nil {
		v := r.ActualEndTime.Format(time.RFC3339)
		resp.ActualEndTime = &v
	}

	return resp
}
