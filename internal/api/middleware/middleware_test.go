package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	chain := append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": GetUserID(c)})
	})
	r.GET("/me", chain...)
	return r
}

func get(r http.Handler, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuth(t *testing.T) {
	r := newEngine(JWTAuth(testSecret))

	valid, err := IssueToken(testSecret, "user-1", "Aminah", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}
	expired, _ := IssueToken(testSecret, "user-1", "", -time.Minute)
	foreign, _ := IssueToken("other-secret", "user-1", "", time.Hour)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "user-1"})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	subjectOnly, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-2",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid token", "Bearer " + valid, http.StatusOK},
		{"lower-case scheme", "bearer " + valid, http.StatusOK},
		{"subject only", "Bearer " + subjectOnly, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + valid, http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong secret", "Bearer " + foreign, http.StatusUnauthorized},
		{"alg none", "Bearer " + unsigned, http.StatusUnauthorized},
		{"garbage", "Bearer not-a-jwt", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(r, tt.header)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestParseTokenFallsBackToSubject(t *testing.T) {
	raw, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-2",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))

	claims, err := ParseToken(testSecret, raw)
	if err != nil {
		t.Fatalf("ParseToken error: %v", err)
	}
	if claims.UserID != "user-2" {
		t.Errorf("UserID = %q, want user-2", claims.UserID)
	}
}

func TestRateLimiterPerUser(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	r := newEngine(JWTAuth(testSecret), rl.Middleware())

	alice, _ := IssueToken(testSecret, "alice", "", time.Hour)
	bob, _ := IssueToken(testSecret, "bob", "", time.Hour)

	for i := 0; i < 2; i++ {
		if w := get(r, "Bearer "+alice); w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, w.Code)
		}
	}
	if w := get(r, "Bearer "+alice); w.Code != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want 429", w.Code)
	}
	if w := get(r, "Bearer "+bob); w.Code != http.StatusOK {
		t.Errorf("other user status = %d, want 200", w.Code)
	}

	now = now.Add(time.Second)
	if w := get(r, "Bearer "+alice); w.Code != http.StatusOK {
		t.Errorf("after refill status = %d, want 200", w.Code)
	}
}
