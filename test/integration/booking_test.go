//go:build integration

package integration

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/clinicdesk/clinicdesk/internal/domain/booking"
	"github.com/clinicdesk/clinicdesk/internal/platform/auth"
)

func TestBooking_ConcurrentAttemptsOneWinner(t *testing.T) {
	a := newApp()
	clinic := newClinic(t, "race")

	doctorUser := createUser(t, a, clinic, auth.RoleDoctor, "Dr. Race")
	doctorID := createDoctor(t, clinic, doctorUser, 400)

	const attempts = 8
	patients := make([]auth.Principal, attempts)
	for i := range patients {
		patients[i] = createUser(t, a, clinic, auth.RolePatient, "Patient")
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		booked    int
		conflicts int
		others    []error
	)
	start := make(chan struct{})
	for _, p := range patients {
		wg.Add(1)
		go func(p auth.Principal) {
			defer wg.Done()
			<-start
			err := withClinicConn(context.Background(), clinic, func(ctx context.Context) error {
				_, err := a.Booking.BookSlot(ctx, p, booking.BookRequest{
					DoctorIdentifier: doctorID.String(),
					Date:             "2026-11-02",
					Time:             "10:00 AM",
				})
				return err
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				booked++
			case errors.Is(err, booking.ErrSlotConflict):
				conflicts++
			default:
				others = append(others, err)
			}
		}(p)
	}
	close(start)
	wg.Wait()

	if len(others) > 0 {
		t.Fatalf("unexpected errors: %v", others)
	}
	if booked != 1 {
		t.Errorf("expected exactly 1 booking, got %d", booked)
	}
	if conflicts != attempts-1 {
		t.Errorf("expected %d conflicts, got %d", attempts-1, conflicts)
	}
}

func TestBooking_CancelFreesSlot(t *testing.T) {
	a := newApp()
	clinic := newClinic(t, "cancel")

	doctorUser := createUser(t, a, clinic, auth.RoleDoctor, "Dr. Free")
	doctorID := createDoctor(t, clinic, doctorUser, 300)
	first := createUser(t, a, clinic, auth.RolePatient, "First Patient")
	second := createUser(t, a, clinic, auth.RolePatient, "Second Patient")

	req := booking.BookRequest{DoctorIdentifier: doctorID.String(), Date: "2026-11-03", Time: "11:30 AM"}

	inClinic(t, clinic, func(ctx context.Context) error {
		appt, err := a.Booking.BookSlot(ctx, first, req)
		if err != nil {
			return err
		}
		if appt.Amount != 300 || appt.PatientName != "First Patient" {
			t.Errorf("unexpected appointment: amount=%v patient=%q", appt.Amount, appt.PatientName)
		}

		if _, err := a.Booking.BookSlot(ctx, second, req); !errors.Is(err, booking.ErrSlotConflict) {
			t.Errorf("expected slot conflict while booked, got %v", err)
		}

		cancelled, err := a.Booking.CancelAppointment(ctx, first, appt.ID)
		if err != nil {
			return err
		}
		if cancelled.Status != booking.StatusCancelled {
			t.Errorf("expected cancelled, got %s", cancelled.Status)
		}
		// Cancelling twice is a no-op.
		if _, err := a.Booking.CancelAppointment(ctx, first, appt.ID); err != nil {
			t.Errorf("second cancel: %v", err)
		}

		rebooked, err := a.Booking.BookSlot(ctx, second, req)
		if err != nil {
			t.Fatalf("rebook after cancel: %v", err)
		}
		if rebooked.ID == appt.ID {
			t.Error("rebooking must create a new appointment")
		}
		return nil
	})
}

func TestBooking_ClinicsAreIsolated(t *testing.T) {
	a := newApp()
	north := newClinic(t, "north")
	south := newClinic(t, "south")

	for _, clinic := range []string{north, south} {
		doctorUser := createUser(t, a, clinic, auth.RoleDoctor, "Dr. Twin")
		doctorID := createDoctor(t, clinic, doctorUser, 250)
		patient := createUser(t, a, clinic, auth.RolePatient, "Patient")

		inClinic(t, clinic, func(ctx context.Context) error {
			_, err := a.Booking.BookSlot(ctx, patient, booking.BookRequest{
				DoctorIdentifier: doctorID.String(),
				Date:             "2026-11-04",
				Time:             "09:00 AM",
			})
			return err
		})
	}

	inClinic(t, north, func(ctx context.Context) error {
		admin := auth.Principal{Role: auth.RoleAdmin}
		_, total, err := a.Booking.ListAppointments(ctx, admin, booking.ListFilter{}, 20, 0)
		if err != nil {
			return err
		}
		if total != 1 {
			t.Errorf("expected 1 appointment in %s, got %d", north, total)
		}
		return nil
	})
}
