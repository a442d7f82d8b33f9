package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func newJWKSServer(t *testing.T, kid string, pub *rsa.PublicKey, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"keys": []jwksKey{{
				Kty: "RSA",
				Kid: kid,
				N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func generateRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	return key
}

func signRS256(t *testing.T, key *rsa.PrivateKey, kid string, claims Claims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kid
	s, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("sign rs256: %v", err)
	}
	return s
}

func validClaims(role Role) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: role,
	}
}

func TestJWTConfig_ValidMethods(t *testing.T) {
	hs := JWTConfig{SigningKey: testSigningKey}.validMethods()
	if len(hs) != 1 || hs[0] != "HS256" {
		t.Errorf("shared secret: expected [HS256], got %v", hs)
	}
	rs := JWTConfig{JWKSURL: "http://jwks.invalid"}.validMethods()
	if len(rs) != 1 || rs[0] != "RS256" {
		t.Errorf("jwks: expected [RS256], got %v", rs)
	}
}

func TestJWTMiddleware_JWKSAcceptsRS256Only(t *testing.T) {
	key := generateRSAKey(t)
	var hits int32
	srv := newJWKSServer(t, "k1", &key.PublicKey, &hits)
	cfg := JWTConfig{JWKSURL: srv.URL}

	good := signRS256(t, key, "k1", validClaims(RoleLab))
	if _, err := runJWT(t, cfg, "Bearer "+good); err != nil {
		t.Fatalf("rs256 token rejected: %v", err)
	}

	hs := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims(RoleAdmin))
	hs.Header["kid"] = "k1"
	hsToken, err := hs.SignedString(testSigningKey)
	if err != nil {
		t.Fatalf("sign hs256: %v", err)
	}
	_, err = runJWT(t, cfg, "Bearer "+hsToken)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_SharedSecretRejectsRS256(t *testing.T) {
	token := signRS256(t, generateRSAKey(t), "k1", validClaims(RoleDoctor))
	_, err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "Bearer "+token)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWKSCache_UnknownKidRefetchThrottled(t *testing.T) {
	key := generateRSAKey(t)
	var hits int32
	srv := newJWKSServer(t, "k1", &key.PublicKey, &hits)
	cache := NewJWKSCache(srv.URL, time.Hour)

	if _, err := cache.GetKey("k1"); err != nil {
		t.Fatalf("GetKey(k1): %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := cache.GetKey("rotated"); err == nil {
			t.Fatal("expected unknown kid to fail")
		}
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Errorf("expected 1 jwks fetch, got %d", got)
	}

	// Once the interval passes an unknown kid may refetch again.
	cache.fetchMu.Lock()
	cache.lastAttempt = time.Now().Add(-2 * jwksMinRefresh)
	cache.fetchMu.Unlock()
	_, _ = cache.GetKey("rotated")
	if got := atomic.LoadInt32(&hits); got != 2 {
		t.Errorf("expected refetch after interval, got %d fetches", got)
	}
}
