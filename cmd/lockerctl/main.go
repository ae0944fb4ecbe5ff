package main

import (
	"context"

	"github.com/alecthomas/kong"

	"lockerhub/cmd/lockerctl/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Register     commands.RegisterCmd     `cmd:"" help:"Create an account"`
		Login        commands.LoginCmd        `cmd:"" help:"Log in and store the session"`
		Logout       commands.LogoutCmd       `cmd:"" help:"Revoke and forget the stored session"`
		Whoami       commands.WhoamiCmd       `cmd:"" help:"Show the logged in user"`
		Lockers      commands.LockersCmd      `cmd:"" help:"Browse and manage lockers"`
		Reservations commands.ReservationsCmd `cmd:"" help:"Manage reservations"`
		Unlock       commands.UnlockCmd       `cmd:"" help:"Open a locker with its access PIN"`
		Health       commands.HealthCmd       `cmd:"" help:"Check server health"`

		Server      string `help:"API base URL" default:"http://localhost:8080" env:"LOCKERHUB_SERVER"`
		SessionFile string `help:"Where the session is stored" env:"LOCKERHUB_SESSION_FILE" type:"path"`
		Debug       bool   `help:"Enable debug mode."`
		Version     kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("lockerctl"),
		kong.Description("Command line client for the lockerhub API."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{
		Debug:       cli.Debug,
		Version:     version,
		Server:      cli.Server,
		SessionFile: cli.SessionFile,
	})
	cmd.FatalIfErrorf(err)
}
