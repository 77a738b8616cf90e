package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/careloop/hms/internal/model"
	"github.com/careloop/hms/libs/auth"
)

const testSecret = "test-secret"

func signedToken(t *testing.T, sub, role string) string {
	t.Helper()
	token, err := auth.SignHS256(auth.Claims{
		Sub:   sub,
		Email: sub + "@hospital.test",
		Role:  role,
		Iat:   time.Now().Unix(),
		Exp:   time.Now().Add(time.Hour).Unix(),
	}, testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestRequireAuth_NoHeader(t *testing.T) {
	called := false
	h := RequireAuth(testSecret, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))

	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/api/v1/doctor/available-slots?date=2024-05-15", nil))

	if rw.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rw.Code)
	}
	if called {
		t.Fatal("handler must not run without a credential")
	}
	var resp errorResponse
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("error body must be json: %v", err)
	}
	if resp.Error == "" {
		t.Fatal("expected an error message")
	}
}

func TestRequireAuth_MalformedHeader(t *testing.T) {
	h := RequireAuth(testSecret, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))

	for _, header := range []string{"Basic abc", "Bearer", "Bearer ", "bogus"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", header)
		rw := httptest.NewRecorder()
		h.ServeHTTP(rw, req)
		if rw.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, rw.Code)
		}
	}
}

func TestRequireAuth_BadSignature(t *testing.T) {
	token, err := auth.SignHS256(auth.Claims{Sub: "doc-1", Role: model.RoleDoctor, Exp: time.Now().Add(time.Hour).Unix()}, "wrong-secret")
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	h := RequireAuth(testSecret, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rw.Code)
	}
}

func TestRequireAuth_ExpiredToken(t *testing.T) {
	token, err := auth.SignHS256(auth.Claims{Sub: "doc-1", Role: model.RoleDoctor, Exp: time.Now().Add(-time.Minute).Unix()}, testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	h := RequireAuth(testSecret, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rw.Code)
	}
}

func TestRequireAuth_ValidTokenAttachesIdentity(t *testing.T) {
	var got Identity
	h := RequireAuth(testSecret, nil)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got, _ = IdentityFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, "doc-1", model.RoleDoctor))
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)

	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	if got.ID != "doc-1" || got.Role != model.RoleDoctor || got.Email != "doc-1@hospital.test" {
		t.Fatalf("unexpected identity: %+v", got)
	}
}

func TestRequireRole(t *testing.T) {
	chain := func(next http.Handler) http.Handler {
		return RequireAuth(testSecret, nil)(RequireRole(model.RoleDoctor)(next))
	}

	ok := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, "doc-1", model.RoleDoctor))
	chain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(ok, req)
	if ok.Code != http.StatusNoContent {
		t.Fatalf("doctor should pass, got %d", ok.Code)
	}

	denied := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, "pat-1", model.RolePatient))
	chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("patient must not reach the handler")
	})).ServeHTTP(denied, req)
	if denied.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", denied.Code)
	}
}
