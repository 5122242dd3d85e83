package coselpro

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/aussiebroadwan/coselpro/pkg/httpx"
)

// url builds a complete URL by appending the path to the base URL.
func (c *Client) url(path string, query url.Values) string {
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// newRequest builds a gateway request with the schema profile header set.
// PostgREST reads Accept-Profile on reads and Content-Profile on writes.
func (c *Client) newRequest(
	ctx context.Context,
	method, path string,
	query url.Values,
	body io.Reader,
	bearer string,
) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url(path, query), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	switch method {
	case http.MethodGet, http.MethodHead:
		req.Header.Set("Accept-Profile", c.schema())
	default:
		req.Header.Set("Content-Profile", c.schema())
		req.Header.Set("Content-Type", "application/json")
	}

	if bearer != "" {
		httpx.SetBearer(req.Header, bearer)
	}

	return req, nil
}

// do sends req with the client's HTTP client.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return resp, nil
}

// decodeJSON reads the response and decodes it into target.
// Returns an *APIError if the response status is not 2xx.
func decodeJSON(resp *http.Response, target any) error {
	defer resp.Body.Close()

	// Read body once for both error parsing and success decoding
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if err := parseErrorResponse(resp, bodyBytes); err != nil {
		return err
	}

	if err := json.Unmarshal(unwrapSingleRow(bodyBytes), target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// unwrapSingleRow returns the element of a one-element JSON array. Functions
// declared as returning SETOF come back as arrays even for a single row.
func unwrapSingleRow(body []byte) []byte {
	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err == nil && len(rows) == 1 {
		return rows[0]
	}
	return body
}
