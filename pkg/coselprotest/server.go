// Package coselprotest runs an in-process stand-in for the CoSelPro gateway.
//
// It implements the PostgREST surface the client relies on: the login and
// extend_token RPCs issuing HS256 JWTs, the xcompany RPC and read access to
// in-memory tables, with the same error bodies and schema checks as the real
// gateway.
package coselprotest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/coselpro/pkg/coselpro"
	"github.com/aussiebroadwan/coselpro/pkg/cryptox"
	"github.com/aussiebroadwan/coselpro/pkg/httpx"
	"github.com/aussiebroadwan/coselpro/pkg/jwtx"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// DefaultTTL is the lifetime of issued tokens.
const DefaultTTL = time.Hour

// User is an account known to the fake gateway.
type User struct {
	Login    string
	Password string
	UserName string
}

// Server is a fake gateway listening on a local httptest server.
type Server struct {
	*httptest.Server

	signer *jwtx.HS256
	schema string

	mu         sync.Mutex
	ttl        time.Duration
	epoch      bool
	stale      bool
	users      map[string]User
	tables     map[string][]map[string]any
	xcompanies map[string]coselpro.XCompany
	calls      map[string]int
	lastExpire map[string]time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithUser registers an account. Logins are matched lower-cased.
func WithUser(u User) Option {
	return func(s *Server) { s.users[strings.ToLower(u.Login)] = u }
}

// WithTTL sets the lifetime of issued tokens.
func WithTTL(ttl time.Duration) Option {
	return func(s *Server) { s.ttl = ttl }
}

// WithEpochExpire renders expire as epoch seconds instead of ISO-8601.
func WithEpochExpire() Option {
	return func(s *Server) { s.epoch = true }
}

// WithStaleRenewal makes extend_token return the current expiry unchanged,
// breaking the renewal contract.
func WithStaleRenewal() Option {
	return func(s *Server) { s.stale = true }
}

// WithTable serves rows under /<name>.
func WithTable(name string, rows []map[string]any) Option {
	return func(s *Server) { s.tables[name] = rows }
}

// WithXCompany serves x from the xcompany RPC for its company name.
func WithXCompany(x coselpro.XCompany) Option {
	return func(s *Server) { s.xcompanies[strings.ToLower(x.Company)] = x }
}

// NewServer starts a fake gateway and closes it when the test ends. The
// "consult"/"consult" account is always registered.
func NewServer(tb testing.TB, opts ...Option) *Server {
	tb.Helper()

	signer, err := jwtx.NewHS256([]byte(cryptox.MustGenerateSecret(cryptox.SecretSize256)), jwtx.DefaultRole)
	if err != nil {
		tb.Fatalf("coselprotest: %v", err)
	}

	s := &Server{
		signer:     signer,
		schema:     coselpro.DefaultSchema,
		ttl:        DefaultTTL,
		users:      map[string]User{},
		tables:     map[string][]map[string]any{},
		xcompanies: map[string]coselpro.XCompany{},
		calls:      map[string]int{},
		lastExpire: map[string]time.Time{},
	}
	WithUser(User{Login: "consult", Password: "consult", UserName: "Consultation"})(s)
	for _, opt := range opts {
		opt(s)
	}

	s.Server = httptest.NewServer(s.routes())
	tb.Cleanup(s.Close)
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.countCalls)

	r.Post("/rpc/login", s.handleLogin)
	r.With(s.requireToken).Post("/rpc/extend_token", s.handleExtendToken)
	r.With(s.requireToken).Post("/rpc/xcompany", s.handleXCompany)
	r.With(s.requireToken).Get("/{table}", s.handleTable)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "PGRST202", "Could not find the function or table "+r.URL.Path)
	})
	return r
}

// Calls returns how many requests hit path.
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// TotalCalls returns how many requests the server received.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// MintToken signs a token for login directly, bypassing the login RPC. Useful
// to build already-expired tokens the gateway would reject.
func (s *Server) MintToken(tb testing.TB, login string, expire time.Time) coselpro.Token {
	tb.Helper()

	u, ok := s.user(login)
	if !ok {
		tb.Fatalf("coselprotest: unknown user %q", login)
	}
	signed, err := s.sign(u, expire)
	if err != nil {
		tb.Fatalf("coselprotest: sign token: %v", err)
	}
	return coselpro.NewToken(signed, expire, u.UserName)
}

func (s *Server) countCalls(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[r.URL.Path]++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) user(login string) (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[strings.ToLower(login)]
	return u, ok
}

// ============================================================================
// Token issuance
// ============================================================================

func (s *Server) sign(u User, expire time.Time) (string, error) {
	login := strings.ToLower(u.Login)
	return s.signer.Sign(jwtx.NewGatewayClaims(jwtx.DefaultRole, login, u.UserName, time.Now(), expire))
}

func (s *Server) issue(w http.ResponseWriter, u User, expire time.Time) {
	signed, err := s.sign(u, expire)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "XX000", err.Error())
		return
	}

	var exp any = expire.UTC().Format(time.RFC3339)
	if s.epoch {
		exp = expire.Unix()
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"token":     signed,
		"expire":    exp,
		"user_name": u.UserName,
	})
}

// nextExpire returns now+ttl, pushed one second past the last expiry handed
// to login so consecutive tokens always expire strictly later.
func (s *Server) nextExpire(login string, after time.Time) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp := time.Now().Add(s.ttl).Truncate(time.Second)
	if last := s.lastExpire[login]; !exp.After(last) {
		exp = last.Add(time.Second)
	}
	if !exp.After(after) {
		exp = after.Truncate(time.Second).Add(time.Second)
	}
	s.lastExpire[login] = exp
	return exp
}

// ============================================================================
// Handlers
// ============================================================================

func (s *Server) checkProfile(w http.ResponseWriter, r *http.Request) bool {
	header := "Content-Profile"
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		header = "Accept-Profile"
	}
	if got := r.Header.Get(header); got != "" && got != s.schema {
		writeError(w, http.StatusNotAcceptable, "PGRST106", "The schema must be one of the following: "+s.schema)
		return false
	}
	return true
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.checkProfile(w, r) {
		return
	}

	var req struct {
		Username string `json:"username"`
		Pass     string `json:"pass"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "PGRST102", "Empty or invalid json")
		return
	}

	u, ok := s.user(req.Username)
	if !ok || cryptox.PasswordDigest(u.Password, strings.ToLower(u.Login)) != req.Pass {
		writeError(w, http.StatusForbidden, "28P01", "invalid user or password")
		return
	}

	s.issue(w, u, s.nextExpire(strings.ToLower(u.Login), time.Time{}))
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.checkProfile(w, r) {
			return
		}

		bearer := httpx.BearerToken(r.Header)
		if bearer == "" {
			writeError(w, http.StatusUnauthorized, "42501", "permission denied for anonymous role")
			return
		}

		claims, err := s.signer.Verify(bearer)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "PGRST301", "JWT invalid: "+err.Error())
			return
		}

		next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
	})
}

func (s *Server) handleExtendToken(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	u, ok := s.user(claims.Login)
	if !ok {
		writeError(w, http.StatusUnauthorized, "PGRST301", "unknown user")
		return
	}

	current := claims.ExpiresAt.Time
	if s.stale {
		s.issue(w, u, current)
		return
	}
	s.issue(w, u, s.nextExpire(claims.Login, current))
}

func (s *Server) handleXCompany(w http.ResponseWriter, r *http.Request) {
	var req coselpro.XCompanyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "PGRST102", "Empty or invalid json")
		return
	}

	s.mu.Lock()
	x, ok := s.xcompanies[strings.ToLower(req.Company)]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "P0002", "company "+req.Company+" not found")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, x)
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "table")

	s.mu.Lock()
	rows, ok := s.tables[name]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "42P01", `relation "`+s.schema+"."+name+`" does not exist`)
		return
	}

	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		if matchEq(row, r.URL.Query()) {
			out = append(out, row)
		}
	}

	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit >= 0 && limit < len(out) {
		out = out[:limit]
	}

	if r.Header.Get("Accept") == "application/vnd.pgrst.object+json" {
		if len(out) != 1 {
			writeError(w, http.StatusNotAcceptable, "PGRST116", "JSON object requested, multiple (or no) rows returned")
			return
		}
		httpx.WriteJSON(w, http.StatusOK, out[0])
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// matchEq applies the eq.<value> filters in query; other operators are ignored.
func matchEq(row map[string]any, query map[string][]string) bool {
	for column, values := range query {
		for _, v := range values {
			want, ok := strings.CutPrefix(v, "eq.")
			if !ok {
				continue
			}
			got, present := row[column]
			if !present {
				return false
			}
			if s, isStr := got.(string); isStr {
				if s != want {
					return false
				}
				continue
			}
			if b, err := json.Marshal(got); err != nil || string(b) != want {
				return false
			}
		}
	}
	return true
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	httpx.WriteJSON(w, status, map[string]any{
		"code":    code,
		"message": message,
		"details": nil,
		"hint":    nil,
	})
}
