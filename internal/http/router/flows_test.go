package router

// Flujos end-to-end que cruzan varios endpoints: rotación de refresh y el
// ciclo completo de 2FA por HTTP.

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nexaerp/authd/internal/security/totp"
)

func postJSON(t *testing.T, ts *httptest.Server, path, bearer string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, ts.URL+path, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestRouter_RefreshRotation(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts, "/v1/auth/login", "", map[string]string{
		"tenant_id": "t1", "email": "alice@acme.test", "password": "s3cret-pass",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var first struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	decodeJSON(t, resp, &first)
	require.NotEmpty(t, first.RefreshToken)

	// Rotar: el par nuevo sirve, el refresh viejo queda revocado.
	resp = postJSON(t, ts, "/v1/auth/refresh", "", map[string]string{
		"refresh_token": first.RefreshToken,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rotated struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	decodeJSON(t, resp, &rotated)
	require.NotEmpty(t, rotated.AccessToken)
	require.NotEqual(t, first.RefreshToken, rotated.RefreshToken)

	me := doGet(t, ts, "/v1/auth/me", rotated.AccessToken, nil)
	me.Body.Close()
	require.Equal(t, http.StatusOK, me.StatusCode)

	reuse := postJSON(t, ts, "/v1/auth/refresh", "", map[string]string{
		"refresh_token": first.RefreshToken,
	})
	reuse.Body.Close()
	require.Equal(t, http.StatusUnauthorized, reuse.StatusCode)
}

func TestRouter_LogoutRevokesRefreshToken(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts, "/v1/auth/login", "", map[string]string{
		"tenant_id": "t1", "email": "alice@acme.test", "password": "s3cret-pass",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var pair struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	decodeJSON(t, resp, &pair)
	require.NotEmpty(t, pair.RefreshToken)

	resp = postJSON(t, ts, "/v1/auth/logout", pair.AccessToken, map[string]string{
		"refresh_token": pair.RefreshToken,
	})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	me := doGet(t, ts, "/v1/auth/me", pair.AccessToken, nil)
	me.Body.Close()
	require.Equal(t, http.StatusUnauthorized, me.StatusCode)

	// El refresh del mismo login quedó revocado: no rota más pares.
	resp = postJSON(t, ts, "/v1/auth/refresh", "", map[string]string{
		"refresh_token": pair.RefreshToken,
	})
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRouter_TwoFactorFlow(t *testing.T) {
	ts := newTestServer(t)
	bearer := login(t, ts, "bob@acme.test")

	resp := postJSON(t, ts, "/v1/2fa/enroll", bearer, struct{}{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var enroll struct {
		Secret      string   `json:"secret"`
		OTPAuthURL  string   `json:"otpauth_url"`
		BackupCodes []string `json:"backup_codes"`
	}
	decodeJSON(t, resp, &enroll)
	require.NotEmpty(t, enroll.Secret)
	require.NotEmpty(t, enroll.OTPAuthURL)
	require.NotEmpty(t, enroll.BackupCodes)

	raw, err := totp.DecodeSecret(enroll.Secret)
	require.NoError(t, err)

	// Confirmar con el step anterior para no quemar el contador actual.
	resp = postJSON(t, ts, "/v1/2fa/confirm", bearer, map[string]string{
		"code": totp.Code(raw, time.Now().Add(-totp.Period)),
	})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Con 2FA activo el login queda pendiente de código.
	resp = postJSON(t, ts, "/v1/auth/login", "", map[string]string{
		"tenant_id": "t1", "email": "bob@acme.test", "password": "s3cret-pass",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var pending struct {
		TwoFactorPending bool   `json:"two_factor_pending"`
		TwoFactorToken   string `json:"two_factor_token"`
		AccessToken      string `json:"access_token"`
	}
	decodeJSON(t, resp, &pending)
	require.True(t, pending.TwoFactorPending)
	require.NotEmpty(t, pending.TwoFactorToken)
	require.Empty(t, pending.AccessToken)

	resp = postJSON(t, ts, "/v1/auth/2fa/verify", "", map[string]string{
		"two_factor_token": pending.TwoFactorToken,
		"code":             totp.Code(raw, time.Now()),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var done struct {
		AccessToken string `json:"access_token"`
	}
	decodeJSON(t, resp, &done)
	require.NotEmpty(t, done.AccessToken)

	me := doGet(t, ts, "/v1/auth/me", done.AccessToken, nil)
	me.Body.Close()
	require.Equal(t, http.StatusOK, me.StatusCode)
}
