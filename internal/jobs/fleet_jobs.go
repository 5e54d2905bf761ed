// Package jobs hosts the background sweeps that run alongside the API.
// Jobs are observational: they log and broadcast, but never transition
// reservation state themselves — that stays with the API operations so
// every transition has an accountable actor.
package jobs

import (
	"context"
	"log"
	"time"

	"backend/internal/repository"
	"backend/internal/service"
	ws "backend/internal/websocket"

	"github.com/robfig/cron/v3"
)

type FleetJobs struct {
	rentalRepo repository.RentalRepository
	notifier   service.Notifier
}

func NewFleetJobs(rentalRepo repository.RentalRepository, notifier service.Notifier) *FleetJobs {
	return &FleetJobs{
		rentalRepo: rentalRepo,
		notifier:   notifier,
	}
}

// Register wires the sweeps into the cron runner. The caller owns the
// runner's lifecycle.
func (j *FleetJobs) Register(c *cron.Cron) error {
	// Pickup reminders each morning before business hours.
	if _, err := c.AddFunc("0 7 * * *", j.SweepPickupsDueToday); err != nil {
		return err
	}
	// Overdue check hourly; rentals stay IN_PROGRESS until a human
	// confirms the return.
	if _, err := c.AddFunc("0 * * * *", j.SweepOverdueRentals); err != nil {
		return err
	}
	return nil
}

// SweepPickupsDueToday announces confirmed rentals whose start date is
// today so dispatchers can prepare the handoff.
func (j *FleetJobs) SweepPickupsDueToday() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	today := time.Now().Truncate(24 * time.Hour)
	rentals, err := j.rentalRepo.ListStartingOn(ctx, today)
	if err != nil {
		log.Println("pickup sweep failed:", err)
		return
	}

	for _, rental := range rentals {
		log.Printf("pickup due today: rental=%s vehicle=%s", rental.ID, rental.VehicleID)
		j.notifier.Publish(ws.TopicRentals, "pickup_due", rental.ID.String())
	}
	log.Printf("pickup sweep done: %d rental(s) due", len(rentals))
}

// SweepOverdueRentals announces in-progress rentals past their end date.
func (j *FleetJobs) SweepOverdueRentals() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rentals, err := j.rentalRepo.ListOverdue(ctx, time.Now())
	if err != nil {
		log.Println("overdue sweep failed:", err)
		return
	}

	for _, rental := range rentals {
		log.Printf("rental overdue: rental=%s vehicle=%s due=%s",
			rental.ID, rental.VehicleID, rental.EndDate.Format("2006-01-02"))
		j.notifier.Publish(ws.TopicRentals, "overdue", rental.ID.String())
	}
	if len(rentals) > 0 {
		log.Printf("overdue sweep done: %d rental(s) overdue", len(rentals))
	}
}
