package coselpro_test

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/aussiebroadwan/coselpro/pkg/coselpro"
	"github.com/aussiebroadwan/coselpro/pkg/coselprotest"
	"github.com/stretchr/testify/require"
)

// newTestClient returns a client for srv whose cache lives in a temp dir.
func newTestClient(t *testing.T, srv *coselprotest.Server) (*coselpro.Client, *coselpro.TokenFile) {
	t.Helper()

	cache := &coselpro.TokenFile{Path: filepath.Join(t.TempDir(), coselpro.DefaultTokenFileName)}
	client := coselpro.NewClient(srv.URL)
	client.Cache = cache
	client.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return client, cache
}

func consultCredentials(t *testing.T, srv *coselprotest.Server) coselpro.Credentials {
	t.Helper()

	creds, err := coselpro.NewCredentials(srv.URL, "consult", "consult")
	require.NoError(t, err)
	return creds
}
