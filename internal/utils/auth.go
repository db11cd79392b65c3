package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/ventortech/merpwms/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// PurposeOTP marks tokens issued between the password and the OTP step
const PurposeOTP = "otp"

// Token types of the session pair
const (
	TokenAccess  = "access"
	TokenRefresh = "refresh"
)

var ErrTokenPurpose = errors.New("token has wrong purpose")

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), 10)
	return string(bytes), err
}

// CheckPasswordHash compares a password with a hash
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// GenerateTokens generates Access and Refresh tokens
func GenerateTokens(user *models.UserAuth, secret string) (string, string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"id":    user.ID,
		"login": user.Login,
		"email": user.Email,
		"role":  user.Role,
		"typ":   TokenAccess,
		"jti":   uuid.NewString(),
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour * 1).Unix(), // 1 hour expiration
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	accessToken, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", "", err
	}

	refreshClaims := jwt.MapClaims{
		"id":  user.ID,
		"typ": TokenRefresh,
		"jti": uuid.NewString(),
		"exp": now.Add(time.Hour * 24 * 90).Unix(), // 90 days
	}
	refreshTokenObj := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims)
	refreshToken, err := refreshTokenObj.SignedString([]byte(secret))
	if err != nil {
		return "", "", err
	}

	return accessToken, refreshToken, nil
}

// SecretDigest returns a short fingerprint of a TOTP secret. It lets a
// pending token pin the secret that was shown to the user without carrying
// the secret itself.
func SecretDigest(secret string) string {
	if secret == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:12])
}

// GeneratePendingToken issues the short-lived token that stands in for the
// password while the user completes the OTP step. secretDigest pins the
// secret shown to the user, if any.
func GeneratePendingToken(userID, secretDigest, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"purpose": PurposeOTP,
		"uid":     userID,
		"sec":     secretDigest,
		"jti":     uuid.NewString(),
		"iat":     now.Unix(),
		"exp":     now.Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// PendingClaims is the content of a valid pending token
type PendingClaims struct {
	UserID       string
	SecretDigest string
}

// ValidatePendingToken parses a pending token and checks its purpose
func ValidatePendingToken(tokenString, secret string) (*PendingClaims, error) {
	claims, err := ValidateToken(tokenString, secret)
	if err != nil {
		return nil, err
	}
	if p, _ := claims["purpose"].(string); p != PurposeOTP {
		return nil, ErrTokenPurpose
	}
	uid, _ := claims["uid"].(string)
	if uid == "" {
		return nil, errors.New("pending token without user")
	}
	digest, _ := claims["sec"].(string)
	return &PendingClaims{UserID: uid, SecretDigest: digest}, nil
}

// ValidateToken parses and validates a token
func ValidateToken(tokenString string, secret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

// ValidateSessionToken accepts access tokens only. Refresh and pending OTP
// tokens never open a session.
func ValidateSessionToken(tokenString, secret string) (jwt.MapClaims, error) {
	claims, err := ValidateToken(tokenString, secret)
	if err != nil {
		return nil, err
	}
	if _, pending := claims["purpose"]; pending {
		return nil, ErrTokenPurpose
	}
	if typ, _ := claims["typ"].(string); typ != TokenAccess {
		return nil, ErrTokenPurpose
	}
	return claims, nil
}
