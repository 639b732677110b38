package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/autoparts-api/internal/common"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func testVerifier(now time.Time) *Verifier {
	v := NewVerifier(testSecret, "autoparts", "autoparts-api", time.Second)
	v.Now = func() time.Time { return now }
	return v
}

func testSigner(now time.Time) Signer {
	return Signer{Secret: testSecret, Issuer: "autoparts", Audience: "autoparts-api", TTL: time.Minute, Now: func() time.Time { return now }}
}

func TestVerifierParsesSubjectAndRoles(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	token, err := testSigner(now).Sign("user-1", []string{RoleAdmin})
	require.NoError(t, err)

	claims, err := testVerifier(now).Parse(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, []string{RoleAdmin}, claims.Roles)
}

func TestVerifierRejectsWrongSecret(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	signer := testSigner(now)
	signer.Secret = []byte("another-secret-another-secret-xx")
	token, err := signer.Sign("user-1", nil)
	require.NoError(t, err)

	_, err = testVerifier(now).Parse(token)
	require.Error(t, err)
	require.True(t, common.IsAppError(err))
}

func TestVerifierRejectsExpired(t *testing.T) {
	issued := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	token, err := testSigner(issued).Sign("user-1", nil)
	require.NoError(t, err)

	_, err = testVerifier(issued.Add(time.Hour)).Parse(token)
	require.Error(t, err)
}

func TestVerifierRejectsGarbage(t *testing.T) {
	_, err := testVerifier(time.Now()).Parse("not-a-token")
	require.Error(t, err)
	_, err = testVerifier(time.Now()).Parse("")
	require.Error(t, err)
}

func TestRequireAuthAttachesIdentity(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	token, err := testSigner(now).Sign("user-7", []string{"customer"})
	require.NoError(t, err)

	mw := Middleware{Verifier: testVerifier(now)}
	var gotUser string
	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _ = common.UserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/favorites", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, "user-7", gotUser)
}

func TestRequireAuthRejectsMissingToken(t *testing.T) {
	mw := Middleware{Verifier: testVerifier(time.Now())}
	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/favorites", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Contains(t, rr.Body.String(), "UNAUTHORIZED")
}

func TestRequireRole(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	mw := Middleware{Verifier: testVerifier(now)}
	handler := mw.RequireAuth(mw.RequireRole(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	cases := []struct {
		name   string
		roles  []string
		status int
	}{
		{name: "admin", roles: []string{"customer", RoleAdmin}, status: http.StatusOK},
		{name: "customer", roles: []string{"customer"}, status: http.StatusForbidden},
		{name: "no roles", roles: nil, status: http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			token, err := testSigner(now).Sign("user-1", tc.roles)
			require.NoError(t, err)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/promotions", nil)
			req.Header.Set("Authorization", "bearer "+token)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			require.Equal(t, tc.status, rr.Code)
		})
	}
}
