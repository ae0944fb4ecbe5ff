package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"lockerhub/internal/client"
)

// ReservationsCmd groups the reservation commands.
type ReservationsCmd struct {
	List    ReservationsListCmd    `cmd:"" default:"withargs" help:"List your reservations (all users with --all as admin)"`
	Show    ReservationsShowCmd    `cmd:"" help:"Show one reservation, including its PIN"`
	Create  ReservationsCreateCmd  `cmd:"" help:"Reserve a locker"`
	Release ReservationsReleaseCmd `cmd:"" help:"Release a reservation"`
	Extend  ReservationsExtendCmd  `cmd:"" help:"Change a reservation's end time (admin)"`
}

type ReservationsListCmd struct {
	Active bool `help:"Only active reservations" default:"false"`
	All    bool `help:"Every user's reservations (admin)" default:"false"`
}

func (r *ReservationsListCmd) Run(ctx context.Context, globals *Globals) error {
	c, err := globals.client()
	if err != nil {
		return err
	}

	var reservations []client.Reservation
	switch {
	case r.All:
		reservations, err = c.AllReservations(ctx)
	case r.Active:
		reservations, err = c.ActiveReservations(ctx)
	default:
		reservations, err = c.Reservations(ctx)
	}
	if err != nil {
		return explain(err)
	}

	printReservations(reservations)
	return nil
}

type ReservationsShowCmd struct {
	ID string `arg:"" help:"Reservation ID"`
}

func (r *ReservationsShowCmd) Run(ctx context.Context, globals *Globals) error {
	c, err := globals.client()
	if err != nil {
		return err
	}

	reservation, err := c.Reservation(ctx, r.ID)
	if err != nil {
		return explain(err)
	}
	printReservation(reservation)
	return nil
}

type ReservationsCreateCmd struct {
	Locker string        `arg:"" help:"Locker ID"`
	For    time.Duration `help:"How long to hold the locker" default:"1h"`
	Until  time.Time     `help:"Hold the locker until this RFC3339 time, overrides --for" format:"2006-01-02T15:04:05Z07:00"`
}

func (r *ReservationsCreateCmd) Run(ctx context.Context, globals *Globals) error {
	c, err := globals.client()
	if err != nil {
		return err
	}

	until := r.Until
	if until.IsZero() {
		until = time.Now().Add(r.For)
	}

	reservation, err := c.Reserve(ctx, r.Locker, until)
	if err != nil {
		return explain(err)
	}
	printReservation(reservation)
	return nil
}

type ReservationsReleaseCmd struct {
	ID string `arg:"" help:"Reservation ID"`
}

func (r *ReservationsReleaseCmd) Run(ctx context.Context, globals *Globals) error {
	c, err := globals.client()
	if err != nil {
		return err
	}

	reservation, err := c.Release(ctx, r.ID)
	if err != nil {
		return explain(err)
	}
	fmt.Printf("Released reservation %s\n", reservation.ID)
	return nil
}

type ReservationsExtendCmd struct {
	ID    string    `arg:"" help:"Reservation ID"`
	Until time.Time `arg:"" help:"New end time (RFC3339)" format:"2006-01-02T15:04:05Z07:00"`
}

func (r *ReservationsExtendCmd) Run(ctx context.Context, globals *Globals) error {
	c, err := globals.client()
	if err != nil {
		return err
	}

	reservation, err := c.UpdateWindow(ctx, r.ID, r.Until)
	if err != nil {
		return explain(err)
	}
	printReservation(reservation)
	return nil
}

func lockerLabel(r client.Reservation) string {
	if r.LockerDetails != nil {
		return r.LockerDetails.LockerNumber
	}
	return r.Locker
}

func printReservation(r client.Reservation) {
	fmt.Printf("ID:       %s\n", r.ID)
	fmt.Printf("Locker:   %s\n", lockerLabel(r))
	fmt.Printf("Until:    %s\n", formatTime(r.ReservedUntil))
	fmt.Printf("Active:   %t\n", r.IsActive)
	if r.AccessPIN != "" {
		fmt.Printf("PIN:      %s\n", r.AccessPIN)
	}
	if r.ReleasedAt != nil {
		fmt.Printf("Released: %s\n", formatTime(*r.ReleasedAt))
	}
}

func printReservations(reservations []client.Reservation) {
	if len(reservations) == 0 {
		fmt.Println("No reservations found.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tLOCKER\tUNTIL\tACTIVE\tPIN")
	for _, r := range reservations {
		pin := r.AccessPIN
		if pin == "" {
			pin = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", r.ID, lockerLabel(r), formatTime(r.ReservedUntil), r.IsActive, pin)
	}
	w.Flush()
}
