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

type SubmitRequestDTO struct {
	VehicleID        string `json:"vehicle_id"` // optional: empty means "no preference, assign later"
	StartDate        string `json:"start_date" binding:"required"`
	EndDate          string `json:"end_date" binding:"required"`
	StartTime        string `json:"start_time"`
	EndTime          string `json:"end_time"`
	Purpose          string `json:"purpose" binding:"required"`
	Destination      string `json:"destination"`
	EstimatedMileage string `json:"estimated_mileage"`
}

type RequestFilter struct {
	Status string // PENDING, APPROVED, REJECTED, CANCELLED or empty for all
	Page   int
	Limit  int
}

type RequestResponse struct {
	ID               string           `json:"id"`
	RequesterID      string           `json:"requester_id"`
	VehicleID        *string          `json:"vehicle_id"`
	VehiclePlate     string           `json:"vehicle_plate,omitempty"`
	StartDate        string           `json:"start_date"`
	EndDate          string           `json:"end_date"`
	StartTime        string           `json:"start_time,omitempty"`
	EndTime          string           `json:"end_time,omitempty"`
	Purpose          string           `json:"purpose"`
	Destination      string           `json:"destination"`
	EstimatedMileage string           `json:"estimated_mileage"`
	Status           string           `json:"status"`
	ReviewerID       *string          `json:"reviewer_id"`
	ReviewComment    string           `json:"review_comment,omitempty"`
	ReviewedAt       *string          `json:"reviewed_at"`
	CreatedAt        string           `json:"created_at"`
	Rental           *RentalResponse  `json:"rental,omitempty"`
}

// --- Interface ---

type RequestService interface {
	SubmitRequest(ctx context.Context, requesterID uuid.UUID, req SubmitRequestDTO) (RequestResponse, error)
	GetRequest(ctx context.Context, id uuid.UUID) (RequestResponse, error)
	ListRequests(ctx context.Context, filter RequestFilter) ([]RequestResponse, int64, error)
	ListMyRequests(ctx context.Context, requesterID uuid.UUID, page, limit int) ([]RequestResponse, int64, error)
	// CancelRequest is the requester self-service path. Pending requests are
	// cancelled with a CAS; approved requests go through the full
	// cancellation transaction that also reverses the rental and releases
	// the vehicle.
	CancelRequest(ctx context.Context, requestID, requesterID uuid.UUID) (RequestResponse, error)
}

type requestService struct {
	requestRepo repository.RequestRepository
	rentalRepo  repository.RentalRepository
	vehicleRepo repository.VehicleRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	notifier    Notifier
}

func NewRequestService(
	requestRepo repository.RequestRepository,
	rentalRepo repository.RentalRepository,
	vehicleRepo repository.VehicleRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	notifier Notifier,
) RequestService {
	return &requestService{
		requestRepo: requestRepo,
		rentalRepo:  rentalRepo,
		vehicleRepo: vehicleRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
		notifier:    notifier,
	}
}

// --- Implementation ---

func (s *requestService) SubmitRequest(ctx context.Context, requesterID uuid.UUID, req SubmitRequestDTO) (RequestResponse, error) {
	startDate, err := parseDate(req.StartDate)
	if err != nil {
		return RequestResponse{}, apperr.Validation("invalid start_date %q", req.StartDate)
	}
	endDate, err := parseDate(req.EndDate)
	if err != nil {
		return RequestResponse{}, apperr.Validation("invalid end_date %q", req.EndDate)
	}
	if endDate.Before(startDate) {
		return RequestResponse{}, apperr.Validation("end_date %s is before start_date %s", req.EndDate, req.StartDate)
	}

	estimated := decimal.Zero
	if req.EstimatedMileage != "" {
		estimated, err = decimal.NewFromString(req.EstimatedMileage)
		if err != nil || estimated.IsNegative() {
			return RequestResponse{}, apperr.Validation("invalid estimated_mileage %q", req.EstimatedMileage)
		}
	}

	var vehicleID *uuid.UUID
	if req.VehicleID != "" {
		parsed, parseErr := uuid.Parse(req.VehicleID)
		if parseErr != nil {
			return RequestResponse{}, apperr.Validation("invalid vehicle_id %q", req.VehicleID)
		}
		// Advisory existence check only — no conflict checking at submission
		// time, since many pending requests may legitimately compete for the
		// same vehicle and dates.
		if _, findErr := s.vehicleRepo.FindByID(ctx, parsed); findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				return RequestResponse{}, apperr.NotFound("vehicle %s", parsed)
			}
			return RequestResponse{}, fmt.Errorf("failed to load vehicle: %w", findErr)
		}
		vehicleID = &parsed
	}

	request := model.RentalRequest{
		RequesterID:      requesterID,
		VehicleID:        vehicleID,
		StartDate:        startDate,
		EndDate:          endDate,
		StartTime:        req.StartTime,
		EndTime:          req.EndTime,
		Purpose:          req.Purpose,
		Destination:      req.Destination,
		EstimatedMileage: estimated,
		Status:           model.RequestStatusPending,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if createErr := s.requestRepo.Create(txCtx, &request); createErr != nil {
			return fmt.Errorf("failed to create rental request: %w", createErr)
		}
		return s.writeAudit(txCtx, &requesterID, model.ActionSubmitRequest, request.ID, map[string]interface{}{
			"start_date": req.StartDate,
			"end_date":   req.EndDate,
			"vehicle_id": req.VehicleID,
		})
	})
	if err != nil {
		return RequestResponse{}, err
	}

	s.notifier.Publish(ws.TopicRequests, "submitted", request.ID.String())
	return toRequestResponse(request, nil), nil
}

func (s *requestService) GetRequest(ctx context.Context, id uuid.UUID) (RequestResponse, error) {
	request, err := s.requestRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return RequestResponse{}, apperr.NotFound("request %s", id)
		}
		return RequestResponse{}, fmt.Errorf("failed to load request: %w", err)
	}

	var rental *model.Rental
	if request.Status == model.RequestStatusApproved || request.Status == model.RequestStatusCancelled {
		if found, findErr := s.rentalRepo.FindByRequestID(ctx, id); findErr == nil {
			rental = found
		}
	}

	return toRequestResponse(*request, rental), nil
}

func (s *requestService) ListRequests(ctx context.Context, filter RequestFilter) ([]RequestResponse, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}

	requests, total, err := s.requestRepo.List(ctx, model.RequestStatus(filter.Status), filter.Page, filter.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list requests: %w", err)
	}

	result := make([]RequestResponse, 0, len(requests))
	for _, r := range requests {
		result = append(result, toRequestResponse(r, nil))
	}
	return result, total, nil
}

func (s *requestService) ListMyRequests(ctx context.Context, requesterID uuid.UUID, page, limit int) ([]RequestResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	requests, total, err := s.requestRepo.ListByRequester(ctx, requesterID, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list requests: %w", err)
	}

	result := make([]RequestResponse, 0, len(requests))
	for _, r := range requests {
		result = append(result, toRequestResponse(r, nil))
	}
	return result, total, nil
}

func (s *requestService) CancelRequest(ctx context.Context, requestID, requesterID uuid.UUID) (RequestResponse, error) {
	var request *model.RentalRequest
	var rentalCancelled, vehicleReleased bool

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		request, err = s.requestRepo.FindByIDForUpdate(txCtx, requestID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("request %s", requestID)
			}
			return fmt.Errorf("failed to load request: %w", err)
		}
		// Requesters can only cancel their own requests; act as if a foreign
		// request does not exist.
		if request.RequesterID != requesterID {
			return apperr.NotFound("request %s", requestID)
		}

		switch request.Status {
		case model.RequestStatusPending:
			rows, updateErr := s.requestRepo.UpdateStatusIf(txCtx, requestID, model.RequestStatusPending,
				map[string]interface{}{"status": model.RequestStatusCancelled})
			if updateErr != nil {
				return fmt.Errorf("failed to cancel request: %w", updateErr)
			}
			if rows == 0 {
				return apperr.StaleState("request %s was already resolved by someone else", requestID)
			}
			request.Status = model.RequestStatusCancelled
			return s.writeAudit(txCtx, &requesterID, model.ActionCancelRequest, requestID, nil)

		case model.RequestStatusApproved:
			released, cancelErr := s.cancelApprovedRequest(txCtx, request, requesterID)
			if cancelErr != nil {
				return cancelErr
			}
			rentalCancelled = true
			vehicleReleased = released
			request.Status = model.RequestStatusCancelled
			return nil

		case model.RequestStatusRejected, model.RequestStatusCancelled:
			return apperr.InvalidTransition("request %s is already finalized (%s), nothing to cancel", requestID, request.Status)

		default:
			return apperr.InvalidTransition("request %s has unknown status %s", requestID, request.Status)
		}
	})
	if err != nil {
		return RequestResponse{}, err
	}

	s.notifier.Publish(ws.TopicRequests, "cancelled", requestID.String())
	if rentalCancelled {
		s.notifier.Publish(ws.TopicRentals, "cancelled", requestID.String())
	}
	if vehicleReleased {
		s.notifier.Publish(ws.TopicVehicles, "released", requestID.String())
	}
	return toRequestResponse(*request, nil), nil
}

// cancelApprovedRequest is the cancellation transaction for an approved
// request: the rental is cancelled, the vehicle released if it had been
// handed out, and the request terminalized — all inside the caller's
// transaction. Returns whether the vehicle's possession status was flipped.
func (s *requestService) cancelApprovedRequest(txCtx context.Context, request *model.RentalRequest, actorID uuid.UUID) (bool, error) {
	rental, err := s.rentalRepo.FindByRequestIDForUpdate(txCtx, request.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, apperr.NotFound("rental for request %s", request.ID)
		}
		return false, fmt.Errorf("failed to load rental: %w", err)
	}

	if rental.Status == model.RentalStatusCompleted {
		return false, apperr.InvalidTransition("cannot cancel a completed rental retroactively through this path")
	}
	if !rental.Status.Active() {
		return false, apperr.InvalidTransition("rental %s is already %s", rental.ID, rental.Status)
	}

	rows, err := s.rentalRepo.UpdateStatusIf(txCtx, rental.ID, rental.Status,
		map[string]interface{}{"status": model.RentalStatusCancelled})
	if err != nil {
		return false, fmt.Errorf("failed to cancel rental: %w", err)
	}
	if rows == 0 {
		return false, apperr.StaleState("rental %s was modified concurrently", rental.ID)
	}

	// Release physical possession only if the keys had actually left
	// custody. A confirmed-but-not-picked-up rental never flipped the flag.
	released, err := s.vehicleRepo.UpdateStatusIf(txCtx, rental.VehicleID, model.VehicleStatusRented, model.VehicleStatusAvailable)
	if err != nil {
		return false, fmt.Errorf("failed to release vehicle: %w", err)
	}

	rows, err = s.requestRepo.UpdateStatusIf(txCtx, request.ID, model.RequestStatusApproved,
		map[string]interface{}{"status": model.RequestStatusCancelled})
	if err != nil {
		return false, fmt.Errorf("failed to cancel request: %w", err)
	}
	if rows == 0 {
		return false, apperr.StaleState("request %s was modified concurrently", request.ID)
	}

	if err := s.writeAudit(txCtx, &actorID, model.ActionCancelRental, rental.ID, map[string]interface{}{
		"request_id": request.ID.String(),
		"vehicle_id": rental.VehicleID.String(),
	}); err != nil {
		return false, err
	}

	return released > 0, nil
}

func (s *requestService) writeAudit(txCtx context.Context, actorID *uuid.UUID, action string, entityID uuid.UUID, details map[string]interface{}) error {
	payload, _ := json.Marshal(details)
	entry := model.AuditLog{
		ActorID:  actorID,
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

func parseDate(value string) (time.Time, error) {
	return time.Parse("2006-01-02", value)
}

func toRequestResponse(r model.RentalRequest, rental *model.Rental) RequestResponse {
	resp := RequestResponse{
		ID:               r.ID.String(),
		RequesterID:      r.RequesterID.String(),
		StartDate:        r.StartDate.Format("2006-01-02"),
		EndDate:          r.EndDate.Format("2006-01-02"),
		StartTime:        r.StartTime,
		EndTime:          r.EndTime,
		Purpose:          r.Purpose,
		Destination:      r.Destination,
		EstimatedMileage: r.EstimatedMileage.String(),
		Status:           string(r.Status),
		ReviewComment:    r.ReviewComment,
		CreatedAt:        r.CreatedAt.Format(time.RFC3339),
	}

	if r.VehicleID != nil {
		id := r.VehicleID.String()
		resp.VehicleID = &id
	}
	if r.Vehicle != nil {
		resp.VehiclePlate = r.Vehicle.PlateNumber
	}
	if r.ReviewerID != nil {
		id := r.ReviewerID.String()
		resp.ReviewerID = &id
	}
	if r.ReviewedAt != nil {
		at := r.ReviewedAt.Format(time.RFC3339)
		resp.ReviewedAt = &at
	}
	if rental != nil {
		rr := toRentalResponse(*rental)
		resp.Rental = &rr
	}

	return resp
}
