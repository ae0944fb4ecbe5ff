package commands

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"lockerhub/cmd/lockerctl/internal/sessionfile"
	"lockerhub/internal/client"
	"lockerhub/internal/models"
)

func TestSessionLoadsStoredPairForSameServer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store, err := sessionfile.NewStore(path)
	require.NoError(t, err)
	pair := models.SessionPair{AccessToken: "a", RefreshToken: "r"}
	require.NoError(t, store.Save("http://api.test", pair))

	g := &Globals{Server: "http://api.test", SessionFile: path}
	c, err := g.client()
	require.NoError(t, err)
	require.Equal(t, pair, c.Session())

	other := &Globals{Server: "http://elsewhere.test", SessionFile: path}
	c, err = other.client()
	require.NoError(t, err)
	require.False(t, c.LoggedIn())
}

func TestExplainAddsLoginHint(t *testing.T) {
	err := explain(client.ErrSessionExpired)
	require.ErrorIs(t, err, client.ErrSessionExpired)
	require.Contains(t, err.Error(), "lockerctl login")

	plain := errors.New("boom")
	require.Equal(t, plain, explain(plain))
}
