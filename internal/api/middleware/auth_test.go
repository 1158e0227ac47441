package middleware

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

const (
	testKeyID  = "test-key-pl"
	testIssuer = "https://keycloak.test/realms/passlink"
)

func generateTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	return key
}

// buildJWKSetJSON строит JWKS JSON из публичного RSA-ключа.
func buildJWKSetJSON(pub *rsa.PublicKey, kid string) json.RawMessage {
	jwks := map[string]any{
		"keys": []map[string]any{
			{
				"kty": "RSA",
				"kid": kid,
				"use": "sig",
				"alg": "RS256",
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			},
		},
	}
	data, _ := json.Marshal(jwks)
	return data
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestJWTAuth(t *testing.T, key *rsa.PrivateKey) *JWTAuth {
	t.Helper()
	kf, err := keyfunc.NewJWKSetJSON(buildJWKSetJSON(&key.PublicKey, testKeyID))
	if err != nil {
		t.Fatalf("не удалось создать keyfunc: %v", err)
	}
	return NewJWTAuthWithKeyfunc(
		kf,
		testIssuer,
		[]string{"passlink-admins"},
		[]string{"passlink-technicians"},
		testLogger(),
	)
}

type tokenOpts struct {
	sub     string
	email   string
	groups  []string
	roles   []string
	issuer  string
	expired bool
	method  jwt.SigningMethod
}

func signToken(t *testing.T, key *rsa.PrivateKey, o tokenOpts) string {
	t.Helper()

	exp := time.Now().Add(time.Hour)
	if o.expired {
		exp = time.Now().Add(-time.Hour)
	}
	if o.issuer == "" {
		o.issuer = testIssuer
	}

	claims := jwt.MapClaims{
		"sub":                o.sub,
		"preferred_username": "user",
		"email":              o.email,
		"iss":                o.issuer,
		"exp":                jwt.NewNumericDate(exp),
		"iat":                jwt.NewNumericDate(time.Now()),
	}
	if len(o.roles) > 0 {
		claims["realm_access"] = map[string]any{"roles": o.roles}
	}
	if len(o.groups) > 0 {
		claims["groups"] = o.groups
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKeyID
	s, err := token.SignedString(key)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func doRequest(handler http.Handler, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/links", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// TestJWTAuth_Roles проверяет вычисление роли по группам и realm roles.
func TestJWTAuth_Roles(t *testing.T) {
	key := generateTestKey(t)
	auth := newTestJWTAuth(t, key)

	tests := []struct {
		name     string
		groups   []string
		roles    []string
		wantRole string
	}{
		{name: "группа администраторов", groups: []string{"passlink-admins"}, wantRole: "admin"},
		{name: "группа техников", groups: []string{"passlink-technicians"}, wantRole: "technician"},
		{name: "обе группы — старшая роль", groups: []string{"passlink-technicians", "passlink-admins"}, wantRole: "admin"},
		{name: "realm role без групп", roles: []string{"offline_access", "technician"}, wantRole: "technician"},
		{name: "группы приоритетнее realm roles", groups: []string{"passlink-technicians"}, roles: []string{"admin"}, wantRole: "technician"},
		{name: "нет ни групп ни ролей", groups: []string{"other"}, wantRole: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *AuthClaims
			handler := auth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = ClaimsFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			token := signToken(t, key, tokenOpts{sub: "user-1", email: "u@example.org", groups: tt.groups, roles: tt.roles})
			rr := doRequest(handler, "Bearer "+token)

			if rr.Code != http.StatusOK {
				t.Fatalf("код = %d, ожидается 200", rr.Code)
			}
			if got == nil {
				t.Fatal("claims не найдены в контексте")
			}
			if got.Role != tt.wantRole {
				t.Errorf("Role = %q, ожидается %q", got.Role, tt.wantRole)
			}
			if got.Subject != "user-1" || got.Email != "u@example.org" {
				t.Errorf("claims = %+v", got)
			}
		})
	}
}

// TestJWTAuth_Rejected проверяет отказы в аутентификации.
func TestJWTAuth_Rejected(t *testing.T) {
	key := generateTestKey(t)
	otherKey := generateTestKey(t)
	auth := newTestJWTAuth(t, key)

	handler := auth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("handler не должен вызываться")
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		header string
	}{
		{name: "нет заголовка", header: ""},
		{name: "не Bearer", header: "Basic dXNlcjpwYXNz"},
		{name: "пустой токен", header: "Bearer "},
		{name: "мусор", header: "Bearer not.a.jwt"},
		{name: "просроченный", header: "Bearer " + signToken(t, key, tokenOpts{sub: "u", expired: true})},
		{name: "чужой issuer", header: "Bearer " + signToken(t, key, tokenOpts{sub: "u", issuer: "https://evil.test/realms/x"})},
		{name: "чужая подпись", header: "Bearer " + signToken(t, otherKey, tokenOpts{sub: "u"})},
		{name: "без sub", header: "Bearer " + signToken(t, key, tokenOpts{})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(handler, tt.header)
			if rr.Code != http.StatusUnauthorized {
				t.Errorf("код = %d, ожидается 401", rr.Code)
			}
		})
	}
}

// TestRequireRole проверяет RBAC поверх JWT.
func TestRequireRole(t *testing.T) {
	key := generateTestKey(t)
	auth := newTestJWTAuth(t, key)

	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	adminOnly := auth.Middleware()(RequireRole("admin")(ok))
	staff := auth.Middleware()(RequireRole("admin", "technician")(ok))

	adminToken := "Bearer " + signToken(t, key, tokenOpts{sub: "a", groups: []string{"passlink-admins"}})
	techToken := "Bearer " + signToken(t, key, tokenOpts{sub: "t", groups: []string{"passlink-technicians"}})
	noRoleToken := "Bearer " + signToken(t, key, tokenOpts{sub: "n", groups: []string{"staff"}})

	tests := []struct {
		name    string
		handler http.Handler
		header  string
		want    int
	}{
		{"admin на admin-endpoint", adminOnly, adminToken, http.StatusOK},
		{"technician на admin-endpoint", adminOnly, techToken, http.StatusForbidden},
		{"technician на staff-endpoint", staff, techToken, http.StatusOK},
		{"admin на staff-endpoint", staff, adminToken, http.StatusOK},
		{"без роли на staff-endpoint", staff, noRoleToken, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(tt.handler, tt.header)
			if rr.Code != tt.want {
				t.Errorf("код = %d, ожидается %d", rr.Code, tt.want)
			}
		})
	}

	// Без JWT middleware claims отсутствуют
	rr := doRequest(RequireRole("admin")(ok), "")
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("без claims код = %d, ожидается 401", rr.Code)
	}
}

// TestKeycloakReadinessChecker проверяет readiness по JWKS endpoint.
func TestKeycloakReadinessChecker(t *testing.T) {
	key := generateTestKey(t)
	jwks := buildJWKSetJSON(&key.PublicKey, testKeyID)

	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{name: "ключи есть", status: http.StatusOK, body: string(jwks), want: "ok"},
		{name: "пустой набор", status: http.StatusOK, body: `{"keys":[]}`, want: "degraded"},
		{name: "невалидный JSON", status: http.StatusOK, body: `{`, want: "degraded"},
		{name: "ошибка сервера", status: http.StatusInternalServerError, body: ``, want: "fail"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			checker, err := NewKeycloakReadinessChecker(srv.URL, "", time.Second)
			if err != nil {
				t.Fatalf("NewKeycloakReadinessChecker: %v", err)
			}
			status, msg := checker.CheckReady()
			if status != tt.want {
				t.Errorf("status = %q (%s), ожидается %q", status, msg, tt.want)
			}
		})
	}
}
