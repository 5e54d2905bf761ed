package service_test

import (
	"context"
	"sync"
	"time"

	"backend/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// In-memory repositories with the same compare-and-swap semantics as the
// database-backed ones: conditional updates run under a single lock and
// report rows matched, so concurrent callers genuinely race.

type passTxManager struct{}

func (passTxManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

type publishedEvent struct {
	Topic    string
	Action   string
	EntityID string
}

type recordNotifier struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (n *recordNotifier) Publish(topic, action, entityID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, publishedEvent{Topic: topic, Action: action, EntityID: entityID})
}

func (n *recordNotifier) all() []publishedEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]publishedEvent(nil), n.events...)
}

// --- requests ---

type memRequestRepo struct {
	mu       sync.Mutex
	requests map[uuid.UUID]*model.RentalRequest
}

func newMemRequestRepo() *memRequestRepo {
	return &memRequestRepo{requests: make(map[uuid.UUID]*model.RentalRequest)}
}

func (r *memRequestRepo) Create(_ context.Context, req *model.RentalRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	req.CreatedAt = time.Now()
	clone := *req
	r.requests[req.ID] = &clone
	return nil
}

func (r *memRequestRepo) FindByID(_ context.Context, id uuid.UUID) (*model.RentalRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *req
	return &clone, nil
}

func (r *memRequestRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.RentalRequest, error) {
	return r.FindByID(ctx, id)
}

func (r *memRequestRepo) UpdateStatusIf(_ context.Context, id uuid.UUID, from model.RequestStatus, updates map[string]interface{}) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok || req.Status != from {
		return 0, nil
	}
	for column, value := range updates {
		switch column {
		case "status":
			req.Status = value.(model.RequestStatus)
		case "reviewer_id":
			reviewer := value.(uuid.UUID)
			req.ReviewerID = &reviewer
		case "review_comment":
			req.ReviewComment = value.(string)
		case "reviewed_at":
			at := value.(time.Time)
			req.ReviewedAt = &at
		}
	}
	return 1, nil
}

func (r *memRequestRepo) ListByRequester(_ context.Context, requesterID uuid.UUID, page, limit int) ([]model.RentalRequest, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.RentalRequest
	for _, req := range r.requests {
		if req.RequesterID == requesterID {
			out = append(out, *req)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memRequestRepo) List(_ context.Context, status model.RequestStatus, page, limit int) ([]model.RentalRequest, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.RentalRequest
	for _, req := range r.requests {
		if status == "" || req.Status == status {
			out = append(out, *req)
		}
	}
	return out, int64(len(out)), nil
}

// --- rentals ---

type memRentalRepo struct {
	mu      sync.Mutex
	rentals map[uuid.UUID]*model.Rental
}

func newMemRentalRepo() *memRentalRepo {
	return &memRentalRepo{rentals: make(map[uuid.UUID]*model.Rental)}
}

func (r *memRentalRepo) Create(_ context.Context, rental *model.Rental) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rental.ID == uuid.Nil {
		rental.ID = uuid.New()
	}
	rental.CreatedAt = time.Now()
	clone := *rental
	r.rentals[rental.ID] = &clone
	return nil
}

func (r *memRentalRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Rental, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rental, ok := r.rentals[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *rental
	return &clone, nil
}

func (r *memRentalRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Rental, error) {
	return r.FindByID(ctx, id)
}

func (r *memRentalRepo) FindByRequestID(_ context.Context, requestID uuid.UUID) (*model.Rental, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rental := range r.rentals {
		if rental.RequestID == requestID {
			clone := *rental
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memRentalRepo) FindByRequestIDForUpdate(ctx context.Context, requestID uuid.UUID) (*model.Rental, error) {
	return r.FindByRequestID(ctx, requestID)
}

func (r *memRentalRepo) UpdateStatusIf(_ context.Context, id uuid.UUID, from model.RentalStatus, updates map[string]interface{}) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rental, ok := r.rentals[id]
	if !ok || rental.Status != from {
		return 0, nil
	}
	for column, value := range updates {
		switch column {
		case "status":
			rental.Status = value.(model.RentalStatus)
		case "actual_start_time":
			at := value.(time.Time)
			rental.ActualStartTime = &at
		case "actual_end_time":
			at := value.(time.Time)
			rental.ActualEndTime = &at
		case "start_mileage":
			v := value.(decimal.Decimal)
			rental.StartMileage = &v
		case "end_mileage":
			v := value.(decimal.Decimal)
			rental.EndMileage = &v
		case "total_mileage":
			v := value.(decimal.Decimal)
			rental.TotalMileage = &v
		case "return_checklist":
			rental.ReturnChecklist = value.(string)
		}
	}
	return 1, nil
}

func (r *memRentalRepo) CountConflicts(_ context.Context, vehicleID uuid.UUID, startDate, endDate time.Time, excludeRentalID *uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, rental := range r.rentals {
		if rental.VehicleID != vehicleID || !rental.Status.Active() {
			continue
		}
		if excludeRentalID != nil && rental.ID == *excludeRentalID {
			continue
		}
		if model.DateRangesOverlap(rental.StartDate, rental.EndDate, startDate, endDate) {
			count++
		}
	}
	return count, nil
}

func (r *memRentalRepo) ListByRenter(_ context.Context, renterID uuid.UUID, page, limit int) ([]model.Rental, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Rental
	for _, rental := range r.rentals {
		if rental.RenterID == renterID {
			out = append(out, *rental)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memRentalRepo) List(_ context.Context, status model.RentalStatus, page, limit int) ([]model.Rental, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Rental
	for _, rental := range r.rentals {
		if status == "" || rental.Status == status {
			out = append(out, *rental)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memRentalRepo) ListStartingOn(_ context.Context, day time.Time) ([]model.Rental, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Rental
	for _, rental := range r.rentals {
		if rental.Status == model.RentalStatusConfirmed && sameDay(rental.StartDate, day) {
			out = append(out, *rental)
		}
	}
	return out, nil
}

func (r *memRentalRepo) ListOverdue(_ context.Context, asOf time.Time) ([]model.Rental, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Rental
	for _, rental := range r.rentals {
		if rental.Status == model.RentalStatusInProgress && rental.EndDate.Before(asOf) {
			out = append(out, *rental)
		}
	}
	return out, nil
}

func sameDay(a, b time.Time) bool {
	return a.Format("2006-01-02") == b.Format("2006-01-02")
}

// --- vehicles ---

type memVehicleRepo struct {
	mu       sync.Mutex
	vehicles map[uuid.UUID]*model.Vehicle
	rentals  *memRentalRepo
}

func newMemVehicleRepo(rentals *memRentalRepo) *memVehicleRepo {
	return &memVehicleRepo{vehicles: make(map[uuid.UUID]*model.Vehicle), rentals: rentals}
}

func (r *memVehicleRepo) add(v model.Vehicle) *model.Vehicle {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	if v.Status == "" {
		v.Status = model.VehicleStatusAvailable
	}
	r.vehicles[v.ID] = &v
	return &v
}

func (r *memVehicleRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Vehicle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	vehicle, ok := r.vehicles[id]
	if !ok || vehicle.DeletedAt.Valid {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *vehicle
	return &clone, nil
}

func (r *memVehicleRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Vehicle, error) {
	return r.FindByID(ctx, id)
}

func (r *memVehicleRepo) Updates(_ context.Context, id uuid.UUID, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	vehicle, ok := r.vehicles[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for column, value := range updates {
		switch column {
		case "status":
			vehicle.Status = value.(model.VehicleStatus)
		case "current_mileage":
			vehicle.CurrentMileage = value.(decimal.Decimal)
		}
	}
	return nil
}

func (r *memVehicleRepo) UpdateStatusIf(_ context.Context, id uuid.UUID, from, to model.VehicleStatus) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	vehicle, ok := r.vehicles[id]
	if !ok || vehicle.Status != from {
		return 0, nil
	}
	vehicle.Status = to
	return 1, nil
}

func (r *memVehicleRepo) List(_ context.Context, page, limit int) ([]model.Vehicle, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Vehicle
	for _, vehicle := range r.vehicles {
		if !vehicle.DeletedAt.Valid {
			out = append(out, *vehicle)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memVehicleRepo) ListAvailable(ctx context.Context, startDate, endDate time.Time, vehicleType string) ([]model.Vehicle, error) {
	r.mu.Lock()
	candidates := make([]model.Vehicle, 0)
	for _, vehicle := range r.vehicles {
		if vehicle.DeletedAt.Valid || vehicle.Status != model.VehicleStatusAvailable {
			continue
		}
		if vehicleType != "" && vehicle.VehicleType != vehicleType {
			continue
		}
		candidates = append(candidates, *vehicle)
	}
	r.mu.Unlock()

	var out []model.Vehicle
	for _, vehicle := range candidates {
		conflicts, err := r.rentals.CountConflicts(ctx, vehicle.ID, startDate, endDate, nil)
		if err != nil {
			return nil, err
		}
		if conflicts == 0 {
			out = append(out, vehicle)
		}
	}
	return out, nil
}

// --- audit ---

type memAuditRepo struct {
	mu      sync.Mutex
	entries []model.AuditLog
}

func (r *memAuditRepo) Log(_ context.Context, entry *model.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = time.Now()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *memAuditRepo) List(_ context.Context, page, limit int) ([]model.AuditLog, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.AuditLog(nil), r.entries...), int64(len(r.entries)), nil
}

func (r *memAuditRepo) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

func date(value string) time.Time {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		panic(err)
	}
	return t
}
