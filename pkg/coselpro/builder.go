package coselpro

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Builder assembles one authenticated gateway request. Obtain it from
// Session.Scoped or Session.RPC; filters chain and the request is sent by
// Execute or Decode. A Builder is not safe for concurrent use.
type Builder struct {
	client  *Client
	bearer  string
	path    string
	method  string
	query   url.Values
	headers http.Header
	body    any
	hasBody bool
}

func newBuilder(client *Client, bearer, path string) *Builder {
	return &Builder{
		client:  client,
		bearer:  bearer,
		path:    path,
		method:  http.MethodGet,
		query:   url.Values{},
		headers: http.Header{},
	}
}

func (b *Builder) rpc(params any) *Builder {
	b.method = http.MethodPost
	if params != nil {
		b.body, b.hasBody = params, true
	}
	return b
}

// Select sets the columns to return, e.g. "id,name,division(name)".
func (b *Builder) Select(columns string) *Builder {
	b.query.Set("select", columns)
	return b
}

func (b *Builder) filter(column, op, value string) *Builder {
	b.query.Add(column, op+"."+value)
	return b
}

// Eq filters rows where column equals value.
func (b *Builder) Eq(column, value string) *Builder { return b.filter(column, "eq", value) }

// Neq filters rows where column differs from value.
func (b *Builder) Neq(column, value string) *Builder { return b.filter(column, "neq", value) }

// Gt filters rows where column > value.
func (b *Builder) Gt(column, value string) *Builder { return b.filter(column, "gt", value) }

// Gte filters rows where column >= value.
func (b *Builder) Gte(column, value string) *Builder { return b.filter(column, "gte", value) }

// Lt filters rows where column < value.
func (b *Builder) Lt(column, value string) *Builder { return b.filter(column, "lt", value) }

// Lte filters rows where column <= value.
func (b *Builder) Lte(column, value string) *Builder { return b.filter(column, "lte", value) }

// Like filters with a case-sensitive pattern; % may be used as wildcard.
func (b *Builder) Like(column, pattern string) *Builder {
	return b.filter(column, "like", strings.ReplaceAll(pattern, "%", "*"))
}

// ILike filters with a case-insensitive pattern; % may be used as wildcard.
func (b *Builder) ILike(column, pattern string) *Builder {
	return b.filter(column, "ilike", strings.ReplaceAll(pattern, "%", "*"))
}

// In filters rows where column is one of values.
func (b *Builder) In(column string, values ...string) *Builder {
	quoted := make([]string, len(values))
	for i, v := range values {
		if strings.ContainsAny(v, `,()" `) {
			v = strconv.Quote(v)
		}
		quoted[i] = v
	}
	return b.filter(column, "in", "("+strings.Join(quoted, ",")+")")
}

// Is filters on null, true or false.
func (b *Builder) Is(column, value string) *Builder { return b.filter(column, "is", value) }

// Order sorts by column. Several calls sort by several columns.
func (b *Builder) Order(column string, ascending bool) *Builder {
	dir := "desc"
	if ascending {
		dir = "asc"
	}
	term := column + "." + dir
	if prev := b.query.Get("order"); prev != "" {
		term = prev + "," + term
	}
	b.query.Set("order", term)
	return b
}

// Limit caps the number of rows returned.
func (b *Builder) Limit(n int) *Builder {
	b.query.Set("limit", strconv.Itoa(n))
	return b
}

// Offset skips the first n rows.
func (b *Builder) Offset(n int) *Builder {
	b.query.Set("offset", strconv.Itoa(n))
	return b
}

// Single asks for exactly one row returned as an object; the gateway answers
// 406 when the filter matches zero or several rows.
func (b *Builder) Single() *Builder {
	b.headers.Set("Accept", "application/vnd.pgrst.object+json")
	return b
}

// Insert turns the request into an insert of rows (a struct, map or slice).
func (b *Builder) Insert(rows any) *Builder {
	b.method = http.MethodPost
	b.body, b.hasBody = rows, true
	b.headers.Set("Prefer", "return=representation")
	return b
}

// Update turns the request into an update of the filtered rows with values.
func (b *Builder) Update(values any) *Builder {
	b.method = http.MethodPatch
	b.body, b.hasBody = values, true
	b.headers.Set("Prefer", "return=representation")
	return b
}

// Delete turns the request into a delete of the filtered rows.
func (b *Builder) Delete() *Builder {
	b.method = http.MethodDelete
	b.body, b.hasBody = nil, false
	return b
}

// Execute sends the request. A non-2xx reply is returned as *APIError with
// the body consumed; otherwise the caller owns resp.Body.
func (b *Builder) Execute(ctx context.Context) (*http.Response, error) {
	var body io.Reader
	if b.hasBody {
		payload, err := json.Marshal(b.body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := b.client.newRequest(ctx, b.method, b.path, b.query, body, b.bearer)
	if err != nil {
		return nil, err
	}
	for key, values := range b.headers {
		req.Header[key] = values
	}

	resp, err := b.client.do(req)
	if err != nil {
		b.client.logger(ctx).Error("gateway request failed", "path", b.path, "error", err)
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		bodyBytes, _ := io.ReadAll(resp.Body)
		apiErr := parseErrorResponse(resp, bodyBytes)
		b.client.logger(ctx).Error("gateway rejected request", "path", b.path, "error", apiErr)
		return nil, apiErr
	}

	return resp, nil
}

// Decode sends the request and decodes the JSON reply into target. A 204
// reply leaves target untouched.
func (b *Builder) Decode(ctx context.Context, target any) error {
	resp, err := b.Execute(ctx)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
