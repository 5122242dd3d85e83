package coselpro_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/aussiebroadwan/coselpro/pkg/coselpro"
	"github.com/aussiebroadwan/coselpro/pkg/coselprotest"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestSessionXCompany(t *testing.T) {
	t.Parallel()

	acme := coselpro.XCompany{
		CompanyID:   12,
		Company:     "ACME",
		ManStatusID: ptr(1),
		ManStatus:   ptr("approved"),
		ManRisk:     &coselpro.XRisk{Risk: ptr("low"), Symbol: ptr("L"), RiskID: ptr(1)},
		Reliability: 0.92,
	}

	srv := coselprotest.NewServer(t, coselprotest.WithXCompany(acme))
	client, _ := newTestClient(t, srv)
	ctx := context.Background()

	session, err := client.Authenticate(ctx, consultCredentials(t, srv))
	require.NoError(t, err)

	t.Run("known company", func(t *testing.T) {
		got, err := session.XCompany(ctx, coselpro.XCompanyRequest{Company: "acme"})
		require.NoError(t, err)
		require.Equal(t, acme, *got)
		require.Nil(t, got.SupRisk)
	})

	t.Run("unknown company", func(t *testing.T) {
		_, err := session.XCompany(ctx, coselpro.XCompanyRequest{Company: "Umbrella"})

		var apiErr *coselpro.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	})
}

func TestSessionXCompanySetOfRows(t *testing.T) {
	t.Parallel()

	rec := &recorder{body: `[{"company_id":3,"company":"Initech","reliability":0.5,"cst_status":"blocked"}]`}
	session := newRecordingSession(t, rec)

	got, err := session.XCompany(context.Background(), coselpro.XCompanyRequest{
		Company:     "Initech",
		DivisionIDs: []int{4, 5},
	})
	require.NoError(t, err)
	require.Equal(t, "Initech", got.Company)
	require.Equal(t, "blocked", *got.CstStatus)

	req := rec.request()
	require.Equal(t, "/rpc/xcompany", req.Path)

	var body map[string]any
	require.NoError(t, json.Unmarshal(req.Body, &body))
	require.Equal(t, "Initech", body["company"])
	require.Equal(t, []any{4.0, 5.0}, body["division_ids"])
	require.Nil(t, body["xcompany_type_ids"])
}
