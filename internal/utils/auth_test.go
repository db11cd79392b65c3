package utils

import (
	"testing"
	"time"

	"github.com/ventortech/merpwms/internal/models"
)

func TestPasswordHashing(t *testing.T) {
	password := "secret123"

	// Test Hashing
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	if hash == password {
		t.Error("Hash should not match plaintext password")
	}
	if len(hash) == 0 {
		t.Error("Hash should not be empty")
	}

	if !CheckPasswordHash(password, hash) {
		t.Error("Password should match hash")
	}

	if CheckPasswordHash("wrongpassword", hash) {
		t.Error("Wrong password should not match hash")
	}
}

func TestJWT(t *testing.T) {
	secret := "test-secret-key-12345"

	user := &models.UserAuth{
		ID:    "uuid-1234",
		Login: "picker",
		Email: "test@example.com",
		Role:  "admin",
	}

	accessToken, refreshToken, err := GenerateTokens(user, secret)
	if err != nil {
		t.Fatalf("Failed to generate tokens: %v", err)
	}
	if accessToken == "" || refreshToken == "" {
		t.Error("Tokens should not be empty")
	}

	claims, err := ValidateSessionToken(accessToken, secret)
	if err != nil {
		t.Fatalf("Failed to validate token: %v", err)
	}

	if claims["id"] != user.ID {
		t.Errorf("Expected user ID %s, got %v", user.ID, claims["id"])
	}
	if claims["login"] != user.Login {
		t.Errorf("Expected login %s, got %v", user.Login, claims["login"])
	}

	_, err = ValidateToken(accessToken, "wrong-key")
	if err == nil {
		t.Error("Validation should fail with wrong key")
	}

	if _, err := ValidatePendingToken(accessToken, secret); err != ErrTokenPurpose {
		t.Errorf("Access token must not pass as pending token, got %v", err)
	}

	if _, err := ValidateSessionToken(refreshToken, secret); err != ErrTokenPurpose {
		t.Errorf("Refresh token must not open a session, got %v", err)
	}
	refreshClaims, err := ValidateToken(refreshToken, secret)
	if err != nil {
		t.Fatalf("Failed to parse refresh token: %v", err)
	}
	if refreshClaims["typ"] != TokenRefresh {
		t.Errorf("Expected refresh type, got %v", refreshClaims["typ"])
	}
}

func TestPendingToken(t *testing.T) {
	secret := "test-secret-key-12345"

	token, err := GeneratePendingToken("uuid-1234", SecretDigest("JBSWY3DPEHPK3PXP"), secret, 10*time.Minute)
	if err != nil {
		t.Fatalf("Failed to generate pending token: %v", err)
	}

	claims, err := ValidatePendingToken(token, secret)
	if err != nil {
		t.Fatalf("Failed to validate pending token: %v", err)
	}
	if claims.UserID != "uuid-1234" {
		t.Errorf("Expected uid uuid-1234, got %s", claims.UserID)
	}
	if claims.SecretDigest != SecretDigest("JBSWY3DPEHPK3PXP") {
		t.Error("Digest should pin the provisioned secret")
	}

	if _, err := ValidateSessionToken(token, secret); err == nil {
		t.Error("Pending token must not open a session")
	}

	expired, _ := GeneratePendingToken("uuid-1234", "", secret, -time.Minute)
	if _, err := ValidatePendingToken(expired, secret); err == nil {
		t.Error("Expired pending token should be rejected")
	}
}

func TestSecretDigest(t *testing.T) {
	if SecretDigest("") != "" {
		t.Error("Empty secret has no digest")
	}
	if SecretDigest("A") == SecretDigest("B") {
		t.Error("Different secrets should have different digests")
	}
	if len(SecretDigest("A")) != 24 {
		t.Errorf("Unexpected digest length %d", len(SecretDigest("A")))
	}
}
