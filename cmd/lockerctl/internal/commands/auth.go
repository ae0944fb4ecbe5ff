package commands

import (
	"context"
	"fmt"
)

type RegisterCmd struct {
	Username string `arg:"" help:"Account name"`
	Email    string `help:"Contact email" default:""`
	Password string `help:"Account password (at least 8 characters)" env:"LOCKERHUB_PASSWORD" required:""`
}

func (r *RegisterCmd) Run(ctx context.Context, globals *Globals) error {
	c, err := globals.client()
	if err != nil {
		return err
	}

	user, err := c.Register(ctx, r.Username, r.Email, r.Password)
	if err != nil {
		return fmt.Errorf("failed to register: %w", err)
	}

	fmt.Printf("Registered %s (%s)\n", user.Username, user.ID)
	return nil
}

type LoginCmd struct {
	Username string `arg:"" help:"Account name"`
	Password string `help:"Account password" env:"LOCKERHUB_PASSWORD" required:""`
}

func (l *LoginCmd) Run(ctx context.Context, globals *Globals) error {
	c, store, err := globals.session()
	if err != nil {
		return err
	}

	if err := c.Login(ctx, l.Username, l.Password); err != nil {
		return fmt.Errorf("failed to log in: %w", err)
	}

	fmt.Printf("Logged in as %s, session stored in %s\n", l.Username, store.Path())
	return nil
}

type LogoutCmd struct{}

func (l *LogoutCmd) Run(ctx context.Context, globals *Globals) error {
	c, store, err := globals.session()
	if err != nil {
		return err
	}

	if !c.LoggedIn() {
		fmt.Println("Not logged in.")
		return store.Clear()
	}

	if err := c.Logout(ctx); err != nil {
		return fmt.Errorf("session removed locally, server logout failed: %w", err)
	}

	fmt.Println("Logged out.")
	return nil
}

type WhoamiCmd struct{}

func (w *WhoamiCmd) Run(ctx context.Context, globals *Globals) error {
	c, err := globals.client()
	if err != nil {
		return err
	}

	user, err := c.Me(ctx)
	if err != nil {
		return explain(err)
	}

	fmt.Printf("Username: %s\n", user.Username)
	fmt.Printf("ID:       %s\n", user.ID)
	fmt.Printf("Role:     %s\n", user.Role)
	if user.Email != "" {
		fmt.Printf("Email:    %s\n", user.Email)
	}
	return nil
}

type HealthCmd struct{}

func (h *HealthCmd) Run(ctx context.Context, globals *Globals) error {
	c, err := globals.client()
	if err != nil {
		return err
	}

	health, err := c.Health(ctx)
	if err != nil {
		return fmt.Errorf("server unhealthy: %w", err)
	}

	fmt.Printf("status=%s database=%s cache=%s\n", health.Status, health.Database, health.Cache)
	return nil
}
