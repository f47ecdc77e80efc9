package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestVerifier(audience string) *Verifier {
	v := NewVerifier(testSecret, audience)
	v.now = func() time.Time { return fixedNow }
	return v
}

func sign(t *testing.T, method jwt.SigningMethod, key interface{}, c jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, c).SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return s
}

func TestVerify(t *testing.T) {
	userID := uuid.New()
	valid := jwt.MapClaims{
		"sub":   userID.String(),
		"email": "dana@example.com",
		"role":  "authenticated",
		"aud":   "authenticated",
		"exp":   fixedNow.Add(time.Hour).Unix(),
	}

	with := func(k string, v interface{}) jwt.MapClaims {
		c := jwt.MapClaims{}
		for key, val := range valid {
			c[key] = val
		}
		if v == nil {
			delete(c, k)
		} else {
			c[k] = v
		}
		return c
	}

	tests := []struct {
		name     string
		token    string
		audience string
		wantErr  error
	}{
		{
			name:  "valid token",
			token: sign(t, jwt.SigningMethodHS256, []byte(testSecret), valid),
		},
		{
			name:     "valid token with audience",
			token:    sign(t, jwt.SigningMethodHS256, []byte(testSecret), valid),
			audience: "authenticated",
		},
		{
			name:     "wrong audience",
			token:    sign(t, jwt.SigningMethodHS256, []byte(testSecret), valid),
			audience: "service_role",
			wantErr:  ErrInvalidToken,
		},
		{
			name:    "wrong signature",
			token:   sign(t, jwt.SigningMethodHS256, []byte("another-secret"), valid),
			wantErr: ErrInvalidToken,
		},
		{
			name:    "wrong algorithm",
			token:   sign(t, jwt.SigningMethodHS512, []byte(testSecret), valid),
			wantErr: ErrInvalidToken,
		},
		{
			name:    "expired",
			token:   sign(t, jwt.SigningMethodHS256, []byte(testSecret), with("exp", fixedNow.Add(-time.Minute).Unix())),
			wantErr: ErrInvalidToken,
		},
		{
			name:    "no expiry",
			token:   sign(t, jwt.SigningMethodHS256, []byte(testSecret), with("exp", nil)),
			wantErr: ErrInvalidToken,
		},
		{
			name:    "missing subject",
			token:   sign(t, jwt.SigningMethodHS256, []byte(testSecret), with("sub", nil)),
			wantErr: ErrInvalidToken,
		},
		{
			name:    "garbage",
			token:   "not.a.jwt",
			wantErr: ErrInvalidToken,
		},
		{
			name:    "empty",
			token:   "",
			wantErr: ErrMissingToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := newTestVerifier(tt.audience).Verify(tt.token)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Verify() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Verify() unexpected error: %v", err)
			}
			if user.ID != userID || user.Email != "dana@example.com" || user.Role != "authenticated" {
				t.Errorf("Verify() user = %+v", user)
			}
		})
	}
}

func TestVerifyNotConfigured(t *testing.T) {
	v := NewVerifier("", "")
	if _, err := v.Verify("anything"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("got %v, want ErrNotConfigured", err)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"Bearer   abc  ", "abc", true},
		{"Bearer ", "", false},
		{"Basic abc", "", false},
		{"", "", false},
		{"abc", "", false},
	}

	for _, tt := range tests {
		got, ok := BearerToken(tt.header)
		if got != tt.want || ok != tt.ok {
			t.Errorf("BearerToken(%q) = %q, %v; want %q, %v", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}
