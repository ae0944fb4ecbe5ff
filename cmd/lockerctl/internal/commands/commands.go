package commands

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"lockerhub/cmd/lockerctl/internal/sessionfile"
	"lockerhub/internal/client"
	"lockerhub/internal/models"
)

type Globals struct {
	Debug       bool
	Version     string
	Server      string
	SessionFile string
}

// session opens the session file and returns a client carrying the stored
// pair. Refreshed pairs are written back as soon as the client swaps them in.
func (g *Globals) session() (*client.Client, *sessionfile.Store, error) {
	level := zerolog.InfoLevel
	if g.Debug {
		level = zerolog.DebugLevel
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(level).With().Timestamp().Logger()

	store, err := sessionfile.NewStore(g.SessionFile)
	if err != nil {
		return nil, nil, err
	}

	opts := []client.Option{
		client.WithLogger(log.Logger),
		client.OnSessionChange(func(pair models.SessionPair) {
			if err := store.Save(g.Server, pair); err != nil {
				log.Warn().Err(err).Msg("failed to persist session")
			}
		}),
	}

	rec, err := store.Load()
	switch {
	case errors.Is(err, sessionfile.ErrNoSession):
	case err != nil:
		return nil, nil, err
	case rec.Server != g.Server:
		log.Debug().Str("stored", rec.Server).Str("server", g.Server).Msg("ignoring session for another server")
	default:
		opts = append(opts, client.WithSession(rec.Pair()))
	}

	return client.New(g.Server, opts...), store, nil
}

func (g *Globals) client() (*client.Client, error) {
	c, _, err := g.session()
	return c, err
}

// explain turns the client's sentinel errors into hints for the user.
func explain(err error) error {
	switch {
	case errors.Is(err, client.ErrNoSession), errors.Is(err, client.ErrSessionExpired):
		return fmt.Errorf("%w (run: lockerctl login <username>)", err)
	}
	return err
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}
