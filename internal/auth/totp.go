package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"
)

const (
	totpPeriod = 30
	totpSkew   = 1 // one step either side for clock drift
	qrSize     = 256
)

var totpValidateOpts = totp.ValidateOpts{
	Period:    totpPeriod,
	Skew:      totpSkew,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// Enrollment is what an account needs to register an authenticator app.
// Secret is the base32 shared secret; QRCode is a PNG data URL of URL.
type Enrollment struct {
	Secret string
	URL    string
	QRCode string
}

// TOTPManager generates TOTP keys and seals secrets at rest with AES-256-GCM
type TOTPManager struct {
	encryptionKey []byte // 32-byte AES-256 key
	issuer        string
}

// NewTOTPManager creates a new TOTP manager.
// encryptionKey must be exactly 32 bytes for AES-256
func NewTOTPManager(encryptionKey []byte, issuer string) (*TOTPManager, error) {
	if len(encryptionKey) != 32 {
		return nil, fmt.Errorf("encryption key must be exactly 32 bytes, got %d", len(encryptionKey))
	}

	return &TOTPManager{
		encryptionKey: encryptionKey,
		issuer:        issuer,
	}, nil
}

// GenerateEnrollment creates a fresh TOTP key for accountName and renders its QR code
func (tm *TOTPManager) GenerateEnrollment(accountName string) (*Enrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      tm.issuer,
		AccountName: accountName,
		Period:      totpPeriod,
		SecretSize:  20,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	png, err := qrcode.Encode(key.URL(), qrcode.Medium, qrSize)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR code: %w", err)
	}

	return &Enrollment{
		Secret: key.Secret(),
		URL:    key.URL(),
		QRCode: "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
	}, nil
}

// SealSecret encrypts a TOTP secret for storage. The result is
// base64(nonce || ciphertext).
func (tm *TOTPManager) SealSecret(secret string) (string, error) {
	gcm, err := tm.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(secret), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// OpenSecret reverses SealSecret
func (tm *TOTPManager) OpenSecret(sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("failed to decode sealed secret: %w", err)
	}

	gcm, err := tm.gcm()
	if err != nil {
		return "", err
	}

	if len(raw) < gcm.NonceSize() {
		return "", fmt.Errorf("sealed secret too short")
	}

	nonce, ciphertext := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt secret: %w", err)
	}

	return string(plaintext), nil
}

func (tm *TOTPManager) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(tm.encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// IsTwoFactorEnabled is true only when the flag is set and a secret exists.
// A flag left on without a secret does not demand a second factor.
func IsTwoFactorEnabled(enabled bool, secret string) bool {
	return enabled && strings.TrimSpace(secret) != ""
}

// VerifyTwoFactorToken checks a 6-digit code against a base32 secret at now,
// accepting the previous and next 30-second step.
func VerifyTwoFactorToken(token, secret string, now time.Time) bool {
	_, ok := MatchTwoFactorStep(token, secret, now)
	return ok
}

// MatchTwoFactorStep is VerifyTwoFactorToken that also reports which time
// step (unix seconds / 30) the code belongs to, so callers can refuse a
// step they have already accepted.
func MatchTwoFactorStep(token, secret string, now time.Time) (int64, bool) {
	token = strings.TrimSpace(token)
	if token == "" || secret == "" {
		return 0, false
	}

	opts := totpValidateOpts
	opts.Skew = 0
	for offset := -totpSkew; offset <= totpSkew; offset++ {
		at := now.Add(time.Duration(offset*totpPeriod) * time.Second)
		valid, err := totp.ValidateCustom(token, secret, at, opts)
		if err != nil {
			return 0, false
		}
		if valid {
			return at.Unix() / totpPeriod, true
		}
	}
	return 0, false
}
