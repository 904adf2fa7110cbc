package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nexaerp/authd/internal/cache"
	"github.com/nexaerp/authd/internal/guard"
	authctrl "github.com/nexaerp/authd/internal/http/controllers/auth"
	customerctrl "github.com/nexaerp/authd/internal/http/controllers/customers"
	healthctrl "github.com/nexaerp/authd/internal/http/controllers/health"
	twofactorctrl "github.com/nexaerp/authd/internal/http/controllers/twofactor"
	mw "github.com/nexaerp/authd/internal/http/middlewares"
	"github.com/nexaerp/authd/internal/rate"
	"github.com/nexaerp/authd/internal/rbac"
	"github.com/nexaerp/authd/internal/security/password"
	"github.com/nexaerp/authd/internal/security/secretbox"
	"github.com/nexaerp/authd/internal/store"
	"github.com/nexaerp/authd/internal/store/core"
	"github.com/nexaerp/authd/internal/store/memory"
	"github.com/nexaerp/authd/internal/tenantguard"
	"github.com/nexaerp/authd/internal/token"
	"github.com/nexaerp/authd/internal/twofactor"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	st := memory.New()
	st.AddTenant(core.Tenant{ID: "t1", Code: "acme", Active: true})
	st.AddTenant(core.Tenant{ID: "t2", Code: "globex", Active: true})

	hash, err := password.Hash(password.Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, KeyLen: 32}, "s3cret-pass")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	st.AddPrincipal(core.Principal{
		ID: "p-alice", Email: "alice@acme.test", Name: "Alice",
		PasswordHash: hash, Active: true,
		Memberships: map[string]bool{"t1": true},
	})
	st.AddPrincipal(core.Principal{
		ID: "p-bob", Email: "bob@acme.test", Name: "Bob",
		PasswordHash: hash, Active: true,
		Memberships: map[string]bool{"t1": true},
	})
	salesID := st.AddRole("t1", "sales_rep", "sales.view")
	st.AssignRole("t1", "p-alice", salesID)
	st.AddResource("customers", "c-100", "t1")
	st.AddResource("customers", "c-200", "t2")

	creds := store.NewCredentialStore(st.Principals())
	cc := cache.NewMemory("routertest")
	tokens, err := token.New(token.Config{
		Issuer:    "https://auth.nexaerp.test",
		Key:       []byte("0123456789abcdef0123456789abcdef"),
		Algorithm: "HS256",
	}, cc)
	if err != nil {
		t.Fatalf("token.New: %v", err)
	}
	box, _ := secretbox.NewFromBytes(make([]byte, 32))
	tf := twofactor.NewService(st.TwoFactor(), box, nil, "nexaerp")
	limiter := rate.NewLimiter(cc, nil, nil, rate.Limit{Max: 10, Window: time.Minute, AlertThreshold: 30})

	g, err := guard.New(guard.Config{Driver: guard.DriverToken}, guard.Deps{
		Credentials: creds,
		Tokens:      tokens,
		TwoFactor:   tf,
		Limiter:     limiter,
	})
	if err != nil {
		t.Fatalf("guard.New: %v", err)
	}
	enforcer := tenantguard.NewEnforcer(st.Ownership(), nil)
	resolver := rbac.NewResolver(st.RBAC())

	h := New(Deps{
		Auth:        authctrl.NewControllers(g, tokens, resolver),
		TwoFactor:   twofactorctrl.NewController(tf),
		Customers:   customerctrl.NewController(enforcer),
		Health:      healthctrl.NewController(st, cc),
		RequireAuth: mw.RequireAuth(g, enforcer),
		RequirePermission: func(p string) mw.Middleware {
			return mw.RequirePermission(resolver, p)
		},
	})
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return ts
}

func login(t *testing.T, ts *httptest.Server, email string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{
		"tenant_id": "t1", "email": email, "password": "s3cret-pass",
	})
	resp, err := http.Post(ts.URL+"/v1/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status: %d", resp.StatusCode)
	}
	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.AccessToken == "" {
		t.Fatalf("empty access token")
	}
	return out.AccessToken
}

func doGet(t *testing.T, ts *httptest.Server, path, bearer string, headers map[string]string) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, ts.URL+path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func TestRouter_LoginAndMe(t *testing.T) {
	ts := newTestServer(t)
	bearer := login(t, ts, "alice@acme.test")

	resp := doGet(t, ts, "/v1/auth/me", bearer, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me status: %d", resp.StatusCode)
	}
	var me struct {
		ID          string   `json:"id"`
		TenantID    string   `json:"tenant_id"`
		Permissions []string `json:"permissions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&me); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if me.ID != "p-alice" || me.TenantID != "t1" {
		t.Fatalf("me payload: %+v", me)
	}
	found := false
	for _, p := range me.Permissions {
		if p == "sales.view" {
			found = true
		}
	}
	if !found {
		t.Fatalf("sales.view missing in %v", me.Permissions)
	}
}

func TestRouter_RejectsBadCredentialsAndMissingBearer(t *testing.T) {
	ts := newTestServer(t)

	body, _ := json.Marshal(map[string]string{
		"tenant_id": "t1", "email": "alice@acme.test", "password": "wrong",
	})
	resp, err := http.Post(ts.URL+"/v1/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad credentials status: %d", resp.StatusCode)
	}

	resp = doGet(t, ts, "/v1/auth/me", "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing bearer status: %d", resp.StatusCode)
	}
}

func TestRouter_TenantHintMismatch(t *testing.T) {
	ts := newTestServer(t)
	bearer := login(t, ts, "alice@acme.test")

	resp := doGet(t, ts, "/v1/customers/c-100", bearer, map[string]string{"X-Tenant-ID": "t2"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("hint mismatch status: %d", resp.StatusCode)
	}

	// Con el hint correcto pasa.
	resp = doGet(t, ts, "/v1/customers/c-100", bearer, map[string]string{"X-Tenant-ID": "t1"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("matching hint status: %d", resp.StatusCode)
	}
}

func TestRouter_CrossTenantResourceIndistinguishable(t *testing.T) {
	ts := newTestServer(t)
	bearer := login(t, ts, "alice@acme.test")

	foreign := doGet(t, ts, "/v1/customers/c-200", bearer, nil)
	foreign.Body.Close()
	missing := doGet(t, ts, "/v1/customers/no-such", bearer, nil)
	missing.Body.Close()

	if foreign.StatusCode != http.StatusNotFound {
		t.Fatalf("foreign resource status: %d", foreign.StatusCode)
	}
	if missing.StatusCode != foreign.StatusCode {
		t.Fatalf("foreign (%d) and missing (%d) must be indistinguishable",
			foreign.StatusCode, missing.StatusCode)
	}
}

func TestRouter_PermissionDenied(t *testing.T) {
	ts := newTestServer(t)
	bearer := login(t, ts, "bob@acme.test") // sin rol sales_rep

	resp := doGet(t, ts, "/v1/customers/c-100", bearer, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("permission denied status: %d", resp.StatusCode)
	}
}

func TestRouter_LogoutThenMeFails(t *testing.T) {
	ts := newTestServer(t)
	bearer := login(t, ts, "alice@acme.test")

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/v1/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+bearer)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("logout: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout status: %d", resp.StatusCode)
	}

	me := doGet(t, ts, "/v1/auth/me", bearer, nil)
	me.Body.Close()
	if me.StatusCode != http.StatusUnauthorized {
		t.Fatalf("me after logout status: %d", me.StatusCode)
	}
}

func TestRouter_Healthz(t *testing.T) {
	ts := newTestServer(t)
	resp := doGet(t, ts, "/healthz", "", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status: %d", resp.StatusCode)
	}
}
