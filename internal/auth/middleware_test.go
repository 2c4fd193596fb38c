package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func newRouter(secret, audience string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(JWTMiddleware(secret, audience))
	router.GET("/whoami", func(c *gin.Context) {
		subject, _ := GetSubject(c.Request.Context())
		c.String(http.StatusOK, subject)
	})
	return router
}

func signToken(t *testing.T, secret string, claims jwt.RegisteredClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func validClaims(subject string) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
}

func serve(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestMiddlewareDisabledWithoutSecret(t *testing.T) {
	resp := serve(newRouter("", ""), httptest.NewRequest(http.MethodGet, "/whoami", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, resp.Code)
	}
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	resp := serve(newRouter(testSecret, ""), httptest.NewRequest(http.MethodGet, "/whoami", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected %d, got %d", http.StatusUnauthorized, resp.Code)
	}
}

func TestMiddlewareAcceptsBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, validClaims("kiosk-1")))

	resp := serve(newRouter(testSecret, ""), req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, resp.Code)
	}
	if resp.Body.String() != "kiosk-1" {
		t.Fatalf("unexpected subject %q", resp.Body.String())
	}
}

func TestMiddlewareAcceptsQueryToken(t *testing.T) {
	token := signToken(t, testSecret, validClaims("browser"))
	req := httptest.NewRequest(http.MethodGet, "/whoami?"+QueryTokenParam+"="+token, nil)

	resp := serve(newRouter(testSecret, ""), req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, resp.Code)
	}
}

func TestMiddlewareRejectsWrongSecret(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "other", validClaims("kiosk-1")))

	if resp := serve(newRouter(testSecret, ""), req); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected %d, got %d", http.StatusUnauthorized, resp.Code)
	}
}

func TestMiddlewareChecksAudience(t *testing.T) {
	claims := validClaims("kiosk-1")
	claims.Audience = jwt.ClaimStrings{"elsewhere"}
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, claims))

	if resp := serve(newRouter(testSecret, "letter-snap"), req); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected %d, got %d", http.StatusUnauthorized, resp.Code)
	}
}

func TestMiddlewareRequiresSubject(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, validClaims("")))

	if resp := serve(newRouter(testSecret, ""), req); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected %d, got %d", http.StatusUnauthorized, resp.Code)
	}
}

func TestMalformedAuthorizationHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Token abc")

	if resp := serve(newRouter(testSecret, ""), req); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected %d, got %d", http.StatusUnauthorized, resp.Code)
	}
}
