package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"lockerhub/internal/client"
)

// LockersCmd groups the locker registry commands.
type LockersCmd struct {
	List       LockersListCmd       `cmd:"" default:"withargs" help:"List lockers"`
	Available  LockersAvailableCmd  `cmd:"" help:"List lockers that can be reserved"`
	Show       LockersShowCmd       `cmd:"" help:"Show one locker"`
	Create     LockersCreateCmd     `cmd:"" help:"Register a new locker (admin)"`
	Update     LockersUpdateCmd     `cmd:"" help:"Change a locker's number or location (admin)"`
	Deactivate LockersDeactivateCmd `cmd:"" help:"Take a locker out of service (admin)"`
	Reactivate LockersReactivateCmd `cmd:"" help:"Return a locker to service (admin)"`
}

type LockersListCmd struct {
	Status   string `help:"Filter by status (available, reserved, inactive)" default:""`
	Location string `help:"Filter by exact location" default:""`
}

func (l *LockersListCmd) Run(ctx context.Context, globals *Globals) error {
	c, err := globals.client()
	if err != nil {
		return err
	}

	lockers, err := c.Lockers(ctx, client.LockerQuery{Status: l.Status, Location: l.Location})
	if err != nil {
		return explain(err)
	}
	printLockers(lockers)
	return nil
}

type LockersAvailableCmd struct{}

func (l *LockersAvailableCmd) Run(ctx context.Context, globals *Globals) error {
	c, err := globals.client()
	if err != nil {
		return err
	}

	lockers, err := c.AvailableLockers(ctx)
	if err != nil {
		return explain(err)
	}
	printLockers(lockers)
	return nil
}

type LockersShowCmd struct {
	ID string `arg:"" help:"Locker ID"`
}

func (l *LockersShowCmd) Run(ctx context.Context, globals *Globals) error {
	c, err := globals.client()
	if err != nil {
		return err
	}

	locker, err := c.Locker(ctx, l.ID)
	if err != nil {
		return explain(err)
	}
	printLockers([]client.Locker{locker})
	return nil
}

type LockersCreateCmd struct {
	Number   string `arg:"" help:"Locker number, e.g. A-01"`
	Location string `arg:"" help:"Where the locker is"`
}

func (l *LockersCreateCmd) Run(ctx context.Context, globals *Globals) error {
	c, err := globals.client()
	if err != nil {
		return err
	}

	locker, err := c.CreateLocker(ctx, l.Number, l.Location)
	if err != nil {
		return explain(err)
	}
	fmt.Printf("Created locker %s (%s)\n", locker.LockerNumber, locker.ID)
	return nil
}

type LockersUpdateCmd struct {
	ID       string `arg:"" help:"Locker ID"`
	Number   string `arg:"" help:"New locker number"`
	Location string `arg:"" help:"New location"`
}

func (l *LockersUpdateCmd) Run(ctx context.Context, globals *Globals) error {
	c, err := globals.client()
	if err != nil {
		return err
	}

	locker, err := c.UpdateLocker(ctx, l.ID, l.Number, l.Location)
	if err != nil {
		return explain(err)
	}
	printLockers([]client.Locker{locker})
	return nil
}

type LockersDeactivateCmd struct {
	ID string `arg:"" help:"Locker ID"`
}

func (l *LockersDeactivateCmd) Run(ctx context.Context, globals *Globals) error {
	c, err := globals.client()
	if err != nil {
		return err
	}

	result, err := c.DeactivateLocker(ctx, l.ID)
	if err != nil {
		return explain(err)
	}
	fmt.Printf("Locker %s deactivated, %d reservation(s) released\n", result.Locker.LockerNumber, result.Released)
	return nil
}

type LockersReactivateCmd struct {
	ID string `arg:"" help:"Locker ID"`
}

func (l *LockersReactivateCmd) Run(ctx context.Context, globals *Globals) error {
	c, err := globals.client()
	if err != nil {
		return err
	}

	locker, err := c.ReactivateLocker(ctx, l.ID)
	if err != nil {
		return explain(err)
	}
	fmt.Printf("Locker %s is %s\n", locker.LockerNumber, locker.Status)
	return nil
}

type UnlockCmd struct {
	Number string `arg:"" help:"Locker number"`
	PIN    string `arg:"" name:"pin" help:"Six digit access PIN"`
}

func (u *UnlockCmd) Run(ctx context.Context, globals *Globals) error {
	c, err := globals.client()
	if err != nil {
		return err
	}

	result, err := c.Unlock(ctx, u.Number, u.PIN)
	if err != nil {
		return fmt.Errorf("unlock refused: %w", err)
	}
	fmt.Println(result.Message)
	return nil
}

func printLockers(lockers []client.Locker) {
	if len(lockers) == 0 {
		fmt.Println("No lockers found.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNUMBER\tLOCATION\tSTATUS\tUPDATED")
	for _, l := range lockers {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", l.ID, l.LockerNumber, l.Location, l.Status, formatTime(l.UpdatedAt))
	}
	w.Flush()
}
