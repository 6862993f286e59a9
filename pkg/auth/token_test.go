package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/stockroom-backend/pkg/config"
	"github.com/angelmondragon/stockroom-backend/pkg/enums"
	"github.com/google/uuid"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "stockroom"}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now().UTC()
	userID := uuid.New()
	vendorID := uuid.New()
	locationID := uuid.New()

	payload := AccessTokenPayload{
		UserID:     userID,
		VendorID:   &vendorID,
		LocationID: &locationID,
		Role:       enums.ActorRoleClerk,
	}

	token, err := MintAccessToken(cfg, now, 30*time.Minute, payload)
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}

	if claims.UserID != userID {
		t.Fatalf("expected user_id %s, got %s", userID, claims.UserID)
	}
	if claims.VendorID == nil || *claims.VendorID != vendorID {
		t.Fatalf("vendor id not preserved")
	}
	if claims.LocationID == nil || *claims.LocationID != locationID {
		t.Fatalf("location id not preserved")
	}
	if claims.Role != enums.ActorRoleClerk {
		t.Fatalf("unexpected role %s", claims.Role)
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("expected issuer %s, got %s", cfg.Issuer, claims.Issuer)
	}
	if claims.ID == "" {
		t.Fatal("expected generated jti")
	}

	exp := now.Add(30 * time.Minute)
	diff := claims.ExpiresAt.Sub(exp)
	if diff < 0 {
		diff = -diff
	}
	if diff >= time.Second {
		t.Fatalf("expected exp roughly %v, got %v (diff %v)", exp.UTC(), claims.ExpiresAt.UTC(), diff)
	}
}

func TestParseAccessTokenInvalidSignature(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now(), 10*time.Minute, AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.ActorRoleVendor,
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	if _, err = ParseAccessToken(cfg, token+"x"); err == nil {
		t.Fatal("expected invalid signature error")
	}
}

func TestParseAccessTokenExpired(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now().Add(-time.Hour), 15*time.Minute, AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.ActorRoleAdmin,
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	_, err = ParseAccessToken(cfg, token)
	if err == nil {
		t.Fatal("expected expiration error")
	}
	if !strings.Contains(err.Error(), "expired") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseAccessTokenWrongIssuer(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now(), time.Minute, AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.ActorRoleAdmin,
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}
	other := cfg
	other.Issuer = "someone-else"
	if _, err := ParseAccessToken(other, token); err == nil {
		t.Fatal("expected issuer mismatch error")
	}
}

func TestMintAccessTokenRejectsBadInput(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now()

	if _, err := MintAccessToken(cfg, now, time.Minute, AccessTokenPayload{UserID: uuid.New()}); err == nil {
		t.Fatal("expected invalid role error")
	}
	if _, err := MintAccessToken(cfg, now, 0, AccessTokenPayload{UserID: uuid.New(), Role: enums.ActorRoleClerk}); err == nil {
		t.Fatal("expected ttl error")
	}
	if _, err := MintAccessToken(config.JWTConfig{Issuer: "x"}, now, time.Minute, AccessTokenPayload{Role: enums.ActorRoleClerk}); err == nil {
		t.Fatal("expected missing secret error")
	}
}

func TestCanActForVendor(t *testing.T) {
	vendorID := uuid.New()
	other := uuid.New()

	admin := &AccessTokenClaims{Role: enums.ActorRoleAdmin}
	if !admin.CanActForVendor(other) {
		t.Fatal("admin should act for any vendor")
	}
	vendor := &AccessTokenClaims{Role: enums.ActorRoleVendor, VendorID: &vendorID}
	if !vendor.CanActForVendor(vendorID) {
		t.Fatal("vendor should act for itself")
	}
	if vendor.CanActForVendor(other) {
		t.Fatal("vendor should not act for another vendor")
	}
	clerk := &AccessTokenClaims{Role: enums.ActorRoleClerk}
	if clerk.CanActForVendor(vendorID) {
		t.Fatal("clerk without vendor claim should be denied")
	}
	var nilClaims *AccessTokenClaims
	if nilClaims.CanActForVendor(vendorID) {
		t.Fatal("nil claims should be denied")
	}
}

func TestVerifierAcceptsBearerPrefixAndLeeway(t *testing.T) {
	cfg := testJWTConfig()
	cfg.Leeway = time.Minute
	token, err := MintAccessToken(cfg, time.Now().Add(-90*time.Second), time.Minute, AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.ActorRoleClerk,
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	verifier, err := NewVerifier(cfg)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	if _, err := verifier.Verify("Bearer " + token); err != nil {
		t.Fatalf("expected token within leeway to verify: %v", err)
	}

	cfg.Leeway = 0
	strict, _ := NewVerifier(cfg)
	if _, err := strict.Verify(token); err == nil {
		t.Fatal("expected expired token without leeway")
	}
}

func TestVerifierRejectsMissingUserID(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now(), time.Minute, AccessTokenPayload{Role: enums.ActorRoleAdmin})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}
	if _, err := ParseAccessToken(cfg, token); err == nil {
		t.Fatal("expected missing user_id to be rejected")
	}
	if _, err := NewVerifier(config.JWTConfig{Secret: "s"}); err == nil {
		t.Fatal("expected missing issuer error")
	}
}

func TestCanActAtLocation(t *testing.T) {
	store := uuid.New()
	other := uuid.New()

	pinned := &AccessTokenClaims{Role: enums.ActorRoleClerk, LocationID: &store}
	if !pinned.CanActAtLocation(store) || pinned.CanActAtLocation(other) {
		t.Fatal("clerk pinned to a location should only act there")
	}
	roaming := &AccessTokenClaims{Role: enums.ActorRoleClerk}
	if !roaming.CanActAtLocation(other) {
		t.Fatal("clerk without location claim may act anywhere in the vendor")
	}
	vendor := &AccessTokenClaims{Role: enums.ActorRoleVendor, LocationID: &store}
	if !vendor.CanActAtLocation(other) {
		t.Fatal("location pin only applies to clerks")
	}
	var nilClaims *AccessTokenClaims
	if nilClaims.CanActAtLocation(store) {
		t.Fatal("nil claims should be denied")
	}
}
