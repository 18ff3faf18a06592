package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	testAccessSecret  = []byte("access-secret-for-tests")
	testRefreshSecret = []byte("refresh-secret-for-tests")
)

func newTestCodec() *TokenCodec {
	return NewTokenCodec(testAccessSecret, testRefreshSecret, DefaultAccessTTL, DefaultRefreshTTL)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	codec := newTestCodec()
	in := Identity{SubjectID: "user-1", Role: RoleAgent, Email: "agent@example.com"}

	tok, exp, err := codec.IssueAccessToken(in)
	if err != nil {
		t.Fatalf("IssueAccessToken error: %v", err)
	}
	if !exp.After(time.Now()) {
		t.Fatalf("expiry not in the future: %v", exp)
	}

	out, err := codec.VerifyAccessToken(tok)
	if err != nil {
		t.Fatalf("VerifyAccessToken error: %v", err)
	}
	if out.SubjectID != in.SubjectID {
		t.Fatalf("subject = %q, want %q", out.SubjectID, in.SubjectID)
	}
	if out.Role != in.Role {
		t.Fatalf("role = %q, want %q", out.Role, in.Role)
	}
	if out.Email != in.Email {
		t.Fatalf("email = %q, want %q", out.Email, in.Email)
	}
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	codec := newTestCodec()
	in := Identity{SubjectID: "user-2", Role: RoleCustomer}

	tok, _, err := codec.IssueRefreshToken(in)
	if err != nil {
		t.Fatalf("IssueRefreshToken error: %v", err)
	}
	out, err := codec.VerifyRefreshToken(tok)
	if err != nil {
		t.Fatalf("VerifyRefreshToken error: %v", err)
	}
	if out.SubjectID != in.SubjectID || out.Role != in.Role {
		t.Fatalf("claim mismatch: got %+v", out)
	}
}

func TestTokenClassesAreNotInterchangeable(t *testing.T) {
	codec := newTestCodec()
	id := Identity{SubjectID: "user-3", Role: RoleAdmin}

	access, _, err := codec.IssueAccessToken(id)
	if err != nil {
		t.Fatalf("IssueAccessToken error: %v", err)
	}
	refresh, _, err := codec.IssueRefreshToken(id)
	if err != nil {
		t.Fatalf("IssueRefreshToken error: %v", err)
	}

	if _, err := codec.VerifyAccessToken(refresh); err == nil {
		t.Fatal("refresh token verified against the access secret")
	}
	if _, err := codec.VerifyRefreshToken(access); err == nil {
		t.Fatal("access token verified against the refresh secret")
	}
}

// The exp claim is second-granular, so expiry is driven through the codec's
// clock instead of a sub-second TTL and a sleep.
func TestExpiredTokenFailsVerification(t *testing.T) {
	codec := NewTokenCodec(testAccessSecret, testRefreshSecret, 2*time.Second, 2*time.Second)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	codec.now = func() time.Time { return now }

	tok, _, err := codec.IssueAccessToken(Identity{SubjectID: "user-4", Role: RoleCustomer})
	if err != nil {
		t.Fatalf("IssueAccessToken error: %v", err)
	}

	if _, err := codec.VerifyAccessToken(tok); err != nil {
		t.Fatalf("token rejected inside its validity window: %v", err)
	}
	now = base.Add(time.Second)
	if _, err := codec.VerifyAccessToken(tok); err != nil {
		t.Fatalf("token rejected before expiry: %v", err)
	}

	now = base.Add(3 * time.Second)
	if _, err := codec.VerifyAccessToken(tok); err == nil {
		t.Fatal("expired token verified")
	}
}

// A TTL under a second truncates to the issue instant and the token is
// never inside its window.
func TestSubSecondTTLExpiresImmediately(t *testing.T) {
	codec := NewTokenCodec(testAccessSecret, testRefreshSecret, 50*time.Millisecond, 50*time.Millisecond)
	base := time.Date(2026, 3, 1, 12, 0, 0, 500*int(time.Millisecond), time.UTC)
	codec.now = func() time.Time { return base }

	tok, _, err := codec.IssueAccessToken(Identity{SubjectID: "user-5", Role: RoleCustomer})
	if err != nil {
		t.Fatalf("IssueAccessToken error: %v", err)
	}
	if _, err := codec.VerifyAccessToken(tok); err == nil {
		t.Fatal("token with a truncated-away TTL verified")
	}
}

func TestMalformedTokenFailsVerification(t *testing.T) {
	codec := newTestCodec()
	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := codec.VerifyAccessToken(tok); err == nil {
			t.Fatalf("malformed token %q verified", tok)
		}
	}
}

// Tokens from the previous claim schema carry the subject under "_id".
func TestLegacyClaimShapeNormalizes(t *testing.T) {
	codec := newTestCodec()

	legacy := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"_id":  "legacy-user",
		"role": "customer",
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(time.Minute).Unix(),
	})
	tok, err := legacy.SignedString(testAccessSecret)
	if err != nil {
		t.Fatalf("sign legacy token: %v", err)
	}

	out, err := codec.VerifyAccessToken(tok)
	if err != nil {
		t.Fatalf("VerifyAccessToken error: %v", err)
	}
	if out.SubjectID != "legacy-user" {
		t.Fatalf("subject = %q, want %q", out.SubjectID, "legacy-user")
	}
	if out.Email != "" {
		t.Fatalf("legacy token should have no email, got %q", out.Email)
	}
}

func TestTokenWithoutSubjectIsRejected(t *testing.T) {
	codec := newTestCodec()

	anon := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"role": "customer",
		"exp":  time.Now().Add(time.Minute).Unix(),
	})
	tok, err := anon.SignedString(testAccessSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := codec.VerifyAccessToken(tok); err == nil {
		t.Fatal("token without a subject verified")
	}
}
