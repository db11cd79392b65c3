package twofactor

import (
	"encoding/base32"
	"fmt"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"
)

// secretSize is the number of random bytes in a new secret
const secretSize = 10

// TOTP generates and checks time based one-time passwords
type TOTP interface {
	// Generate returns a new base32 secret and its provisioning URI
	Generate(issuer, account string) (secret, uri string, err error)
	// URI returns the provisioning URI of an existing secret
	URI(issuer, account, secret string) (string, error)
	Validate(code, secret string) bool
}

// QREncoder renders a string as a PNG QR code
type QREncoder interface {
	Encode(content string) ([]byte, error)
}

// PquernaTOTP implements TOTP with RFC 6238 defaults (SHA1, 6 digits, 30s)
type PquernaTOTP struct{}

func (PquernaTOTP) Generate(issuer, account string) (string, string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		SecretSize:  secretSize,
		Algorithm:   otp.AlgorithmSHA1,
		Digits:      otp.DigitsSix,
	})
	if err != nil {
		return "", "", fmt.Errorf("generate totp key: %w", err)
	}
	return key.Secret(), key.URL(), nil
}

func (PquernaTOTP) URI(issuer, account, secret string) (string, error) {
	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(secret)
	if err != nil {
		return "", fmt.Errorf("decode secret: %w", err)
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		Secret:      raw,
		Algorithm:   otp.AlgorithmSHA1,
		Digits:      otp.DigitsSix,
	})
	if err != nil {
		return "", fmt.Errorf("build provisioning uri: %w", err)
	}
	return key.URL(), nil
}

func (PquernaTOTP) Validate(code, secret string) bool {
	if code == "" || secret == "" {
		return false
	}
	return totp.Validate(code, secret)
}

// PNGEncoder renders QR codes with go-qrcode
type PNGEncoder struct {
	Size int
}

func (e PNGEncoder) Encode(content string) ([]byte, error) {
	size := e.Size
	if size <= 0 {
		size = 256
	}
	return qrcode.Encode(content, qrcode.Medium, size)
}
