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
	"gorm.io/gorm"
)

// --- DTOs ---

type ReviewDTO struct {
	Comment string `json:"comment"`
}

// ApprovalResult is the refreshed request+rental projection returned by a
// successful approval.
type ApprovalResult struct {
	Request RequestResponse `json:"request"`
	Rental  RentalResponse  `json:"rental"`
}

// --- Interface ---

// ApprovalService hosts the reviewer-side transitions of the request state
// machine. Approve is the only operation in the core that needs true
// serializability: the conflict check and the rental insert must sit in one
// atomic unit so two reviewers cannot double-book a vehicle between
// check and write.
type ApprovalService interface {
	Approve(ctx context.Context, requestID, reviewerID uuid.UUID, comment string) (ApprovalResult, error)
	Reject(ctx context.Context, requestID, reviewerID uuid.UUID, comment string) (RequestResponse, error)
}

type approvalService struct {
	requestRepo repository.RequestRepository
	rentalRepo  repository.RentalRepository
	vehicleRepo repository.VehicleRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	notifier    Notifier
}

func NewApprovalService(
	requestRepo repository.RequestRepository,
	rentalRepo repository.RentalRepository,
	vehicleRepo repository.VehicleRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	notifier Notifier,
) ApprovalService {
	return &approvalService{
		requestRepo: requestRepo,
		rentalRepo:  rentalRepo,
		vehicleRepo: vehicleRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
		notifier:    notifier,
	}
}

// --- Implementation ---

func (s *approvalService) Approve(ctx context.Context, requestID, reviewerID uuid.UUID, comment string) (ApprovalResult, error) {
	var request *model.RentalRequest
	var rental model.Rental

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		// Re-load under a row lock so no concurrent approval can interleave
		// between the conflict check and the rental insert.
		request, err = s.requestRepo.FindByIDForUpdate(txCtx, requestID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("request %s", requestID)
			}
			return fmt.Errorf("failed to load request: %w", err)
		}

		if request.Status != model.RequestStatusPending {
			return apperr.StaleState("request %s was already resolved (%s)", requestID, request.Status)
		}
		if request.VehicleID == nil {
			return apperr.Validation("request %s has no vehicle bound; assign a vehicle before approving", requestID)
		}

		// Soft-deleted vehicles are invisible here and therefore cannot be
		// approved against.
		vehicle, err := s.vehicleRepo.FindByIDForUpdate(txCtx, *request.VehicleID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("vehicle %s", *request.VehicleID)
			}
			return fmt.Errorf("failed to load vehicle: %w", err)
		}

		// Authoritative conflict check, inside the same transaction as the
		// writes below.
		conflicts, err := s.rentalRepo.CountConflicts(txCtx, vehicle.ID, request.StartDate, request.EndDate, nil)
		if err != nil {
			return fmt.Errorf("conflict check failed: %w", err)
		}
		if conflicts > 0 {
			return apperr.VehicleConflict("vehicle %s already has an active rental overlapping %s..%s",
				vehicle.PlateNumber, request.StartDate.Format("2006-01-02"), request.EndDate.Format("2006-01-02"))
		}

		rental = model.Rental{
			RequestID: request.ID,
			VehicleID: vehicle.ID,
			RenterID:  request.RequesterID,
			StartDate: request.StartDate,
			EndDate:   request.EndDate,
			Status:    model.RentalStatusConfirmed,
		}
		if err := s.rentalRepo.Create(txCtx, &rental); err != nil {
			return fmt.Errorf("failed to create rental: %w", err)
		}

		now := time.Now()
		rows, err := s.requestRepo.UpdateStatusIf(txCtx, request.ID, model.RequestStatusPending, map[string]interface{}{
			"status":         model.RequestStatusApproved,
			"reviewer_id":    reviewerID,
			"review_comment": comment,
			"reviewed_at":    now,
		})
		if err != nil {
			return fmt.Errorf("failed to update request: %w", err)
		}
		// Cannot happen while we hold the row lock; kept as a guard against
		// a broken isolation setup.
		if rows == 0 {
			return apperr.StaleState("request %s was modified concurrently", requestID)
		}

		request.Status = model.RequestStatusApproved
		request.ReviewerID = &reviewerID
		request.ReviewComment = comment
		request.ReviewedAt = &now

		return s.writeAudit(txCtx, reviewerID, model.ActionApproveRequest, request.ID, map[string]interface{}{
			"rental_id":  rental.ID.String(),
			"vehicle_id": vehicle.ID.String(),
		})
	})
	if err != nil {
		return ApprovalResult{}, err
	}

	s.notifier.Publish(ws.TopicRequests, "approved", requestID.String())
	s.notifier.Publish(ws.TopicRentals, "created", rental.ID.String())

	return ApprovalResult{
		Request: toRequestResponse(*request, &rental),
		Rental:  toRentalResponse(rental),
	}, nil
}

func (s *approvalService) Reject(ctx context.Context, requestID, reviewerID uuid.UUID, comment string) (RequestResponse, error) {
	var request *model.RentalRequest

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		now := time.Now()
		// Compare-and-swap on status: a single conditional update, no lock.
		rows, err := s.requestRepo.UpdateStatusIf(txCtx, requestID, model.RequestStatusPending, map[string]interface{}{
			"status":         model.RequestStatusRejected,
			"reviewer_id":    reviewerID,
			"review_comment": comment,
			"reviewed_at":    now,
		})
		if err != nil {
			return fmt.Errorf("failed to reject request: %w", err)
		}
		if rows == 0 {
			if _, findErr := s.requestRepo.FindByID(txCtx, requestID); findErr != nil {
				if errors.Is(findErr, gorm.ErrRecordNotFound) {
					return apperr.NotFound("request %s", requestID)
				}
				return fmt.Errorf("failed to load request: %w", findErr)
			}
			return apperr.StaleState("request %s was already resolved by someone else", requestID)
		}

		request, err = s.requestRepo.FindByID(txCtx, requestID)
		if err != nil {
			return fmt.Errorf("failed to reload request: %w", err)
		}

		return s.writeAudit(txCtx, reviewerID, model.ActionRejectRequest, requestID, map[string]interface{}{
			"comment": comment,
		})
	})
	if err != nil {
		return RequestResponse{}, err
	}

	s.notifier.Publish(ws.TopicRequests, "rejected", requestID.String())
	return toRequestResponse(*request, nil), nil
}

func (s *approvalService) writeAudit(txCtx context.Context, actorID uuid.UUID, action string, entityID uuid.UUID, details map[string]interface{}) error {
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
