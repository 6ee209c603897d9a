package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"dental-clinic/internal/domain/appointments"
	"dental-clinic/internal/domain/inventory"
	"dental-clinic/internal/domain/refunds"
)

var day = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func appt(id, patient string, hour int, st appointments.Status) appointments.Appointment {
	start := day.Add(time.Duration(hour) * time.Hour)
	return appointments.Appointment{ID: id, PatientID: patient, StartsAt: start, EndsAt: start.Add(time.Hour), Status: st}
}

func TestAppointmentsCreateChecked(t *testing.T) {
	ctx := context.Background()
	repo := NewAppointmentsRepo()
	dayEnd := day.Add(24 * time.Hour)

	if err := repo.CreateChecked(ctx, appt("a1", "p1", 9, appointments.StatusPending), day, dayEnd, 2); err != nil {
		t.Fatalf("first: %v", err)
	}
	err := repo.CreateChecked(ctx, appt("a2", "p1", 14, appointments.StatusPending), day, dayEnd, 2)
	if !errors.Is(err, appointments.ErrAlreadyBooked) {
		t.Fatalf("same day: expected ErrAlreadyBooked, got %v", err)
	}
	if err := repo.CreateChecked(ctx, appt("a3", "p2", 9, appointments.StatusPending), day, dayEnd, 2); err != nil {
		t.Fatalf("second seat: %v", err)
	}
	err = repo.CreateChecked(ctx, appt("a4", "p3", 9, appointments.StatusPending), day, dayEnd, 2)
	if !errors.Is(err, appointments.ErrSlotFull) {
		t.Fatalf("expected ErrSlotFull, got %v", err)
	}

	// una cita cancelada libera el cupo
	a3, _ := repo.GetByID(ctx, "a3")
	a3.Status = appointments.StatusCancelled
	if err := repo.Update(ctx, a3); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := repo.CreateChecked(ctx, appt("a4", "p3", 9, appointments.StatusPending), day, dayEnd, 2); err != nil {
		t.Fatalf("after cancel: %v", err)
	}

	held, _ := repo.Overlapping(ctx, day.Add(9*time.Hour), day.Add(10*time.Hour))
	if len(held) != 2 {
		t.Fatalf("expected 2 overlapping, got %d", len(held))
	}
}

func TestAppointmentsCreateCheckedConcurrent(t *testing.T) {
	ctx := context.Background()
	repo := NewAppointmentsRepo()
	dayEnd := day.Add(24 * time.Hour)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a := appt(fmt.Sprintf("a%d", i), fmt.Sprintf("p%d", i), 10, appointments.StatusPending)
			if err := repo.CreateChecked(ctx, a, day, dayEnd, 3); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	if ok != 3 {
		t.Fatalf("expected exactly 3 bookings, got %d", ok)
	}
}

func TestInventoryApplyConsumptionAllOrNothing(t *testing.T) {
	ctx := context.Background()
	repo := NewInventoryRepo()

	_ = repo.CreateItem(ctx, inventory.Item{ID: "i1", SKU: "GLV"})
	_ = repo.CreateBatch(ctx, inventory.Batch{ID: "b1", ItemID: "i1", QtyOnHand: 5}, inventory.Movement{ID: "m1"})
	_ = repo.CreateBatch(ctx, inventory.Batch{ID: "b2", ItemID: "i1", QtyOnHand: 1}, inventory.Movement{ID: "m2"})

	err := repo.ApplyConsumption(ctx, []inventory.Draw{
		{ItemID: "i1", BatchID: "b1", Qty: 3},
		{ItemID: "i1", BatchID: "b2", Qty: 2},
	}, []inventory.Movement{{ID: "m3", ItemID: "i1"}})
	if !errors.Is(err, inventory.ErrStockChanged) {
		t.Fatalf("expected ErrStockChanged, got %v", err)
	}
	b1, _ := repo.GetBatch(ctx, "b1")
	if b1.QtyOnHand != 5 {
		t.Fatalf("b1 must be untouched, got %d", b1.QtyOnHand)
	}
	mvs, _ := repo.ListMovements(ctx, "i1")
	if len(mvs) != 0 {
		t.Fatalf("no consumption movements expected, got %d", len(mvs))
	}

	if err := repo.ApplyConsumption(ctx, []inventory.Draw{{ItemID: "i1", BatchID: "b1", Qty: 5}}, nil); err != nil {
		t.Fatalf("consume: %v", err)
	}
	b1, _ = repo.GetBatch(ctx, "b1")
	if b1.QtyOnHand != 0 {
		t.Fatalf("expected 0 on hand, got %d", b1.QtyOnHand)
	}
}

func TestRefundsOneOpenPerPayment(t *testing.T) {
	ctx := context.Background()
	repo := NewRefundsRepo()

	if err := repo.Create(ctx, refunds.Request{ID: "r1", PaymentID: "pay1", Status: refunds.StatusPending}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(ctx, refunds.Request{ID: "r2", PaymentID: "pay1", Status: refunds.StatusPending}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	list, _ := repo.List(ctx, refunds.StatusPending, "")
	if len(list) != 1 {
		t.Fatalf("expected 1 pending, got %d", len(list))
	}
}
