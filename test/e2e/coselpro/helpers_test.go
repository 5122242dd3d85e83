//go:build e2e

package coselpro_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/coselpro/pkg/coselpro"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

/*
 * End-to-end tests against a real gateway container. The image is not built
 * here: COSELPRO_E2E_IMAGE names a PostgREST gateway image with the CoSelPro
 * schema and a test account loaded.
 */

const gatewayPort = "3000/tcp"

var (
	gatewayImage  string
	gatewayLogin  = "consult"
	gatewaySecret = "consult"
)

// TestMain skips the whole package when no gateway image is configured.
func TestMain(m *testing.M) {
	gatewayImage = os.Getenv("COSELPRO_E2E_IMAGE")
	if gatewayImage == "" {
		fmt.Fprintln(os.Stdout, "COSELPRO_E2E_IMAGE not set, skipping gateway e2e tests")
		os.Exit(0)
	}
	if v := os.Getenv("COSELPRO_E2E_LOGIN"); v != "" {
		gatewayLogin = v
	}
	if v := os.Getenv("COSELPRO_E2E_PASSWORD"); v != "" {
		gatewaySecret = v
	}

	os.Exit(m.Run())
}

// setupGatewayContainer starts the gateway and returns its base URL.
func setupGatewayContainer(t *testing.T) (string, func()) {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        gatewayImage,
		ExposedPorts: []string{gatewayPort},
		Env: map[string]string{
			"PGRST_DB_SCHEMAS":  coselpro.DefaultSchema,
			"PGRST_SERVER_PORT": "3000",
		},
		WaitingFor: wait.ForHTTP("/").
			WithPort(gatewayPort).
			WithStartupTimeout(90 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	mappedPort, err := container.MappedPort(ctx, gatewayPort)
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	baseURL := fmt.Sprintf("http://%s:%s", host, mappedPort.Port())

	cleanup := func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return baseURL, cleanup
}

// newGatewayClient returns a client for baseURL caching into a temp file.
func newGatewayClient(t *testing.T, baseURL string) (*coselpro.Client, *coselpro.TokenFile) {
	t.Helper()

	cache := &coselpro.TokenFile{Path: filepath.Join(t.TempDir(), coselpro.DefaultTokenFileName)}
	client := coselpro.NewClient(baseURL)
	client.Cache = cache
	return client, cache
}

func gatewayCredentials(t *testing.T, baseURL string) coselpro.Credentials {
	t.Helper()

	creds, err := coselpro.NewCredentials(baseURL, gatewayLogin, gatewaySecret)
	require.NoError(t, err)
	return creds
}
