package login

import (
	"encoding/base64"
	"fmt"

	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
)

// AccountStore is the persistence-backed lookup the bcrypt/TOTP
// authenticator needs; internal/persistence supplies the concrete
// implementation.
type AccountStore interface {
	PasswordHash(username string) (hash string, ok bool, err error)
	MFASecret(username string) (secret string, enabled bool, err error)
	SetMFASecret(username, secret string) error
}

// BcryptTOTPAuthenticator implements Authenticator against bcrypt
// password hashes and pquerna/otp TOTP secrets.
type BcryptTOTPAuthenticator struct {
	store  AccountStore
	issuer string
}

// NewBcryptTOTPAuthenticator builds an Authenticator backed by store.
func NewBcryptTOTPAuthenticator(store AccountStore, issuer string) *BcryptTOTPAuthenticator {
	return &BcryptTOTPAuthenticator{store: store, issuer: issuer}
}

func (a *BcryptTOTPAuthenticator) AccountExists(username string) (bool, error) {
	_, ok, err := a.store.PasswordHash(username)
	return ok, err
}

func (a *BcryptTOTPAuthenticator) CheckPassword(username, password string) (bool, error) {
	hash, ok, err := a.store.PasswordHash(username)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil, nil
}

func (a *BcryptTOTPAuthenticator) MFAEnabled(username string) (bool, error) {
	_, enabled, err := a.store.MFASecret(username)
	return enabled, err
}

func (a *BcryptTOTPAuthenticator) CheckMFA(username, code string) (bool, error) {
	secret, enabled, err := a.store.MFASecret(username)
	if err != nil {
		return false, err
	}
	if !enabled {
		return true, nil
	}
	return totp.Validate(code, secret), nil
}

func (a *BcryptTOTPAuthenticator) EnrollMFA(username string) (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      a.issuer,
		AccountName: username,
	})
	if err != nil {
		return "", fmt.Errorf("login: generate TOTP key: %w", err)
	}
	if err := a.store.SetMFASecret(username, key.Secret()); err != nil {
		return "", fmt.Errorf("login: persist TOTP secret: %w", err)
	}
	uri := key.URL()
	// Web clients render the data URI as an inline QR image; telnet
	// users type the otpauth URI into their app by hand.
	if qrPNG, err := enrollmentQRPNG(uri, 256); err == nil {
		uri += "\ndata:image/png;base64," + base64.StdEncoding.EncodeToString(qrPNG)
	}
	return uri, nil
}

// HashPassword bcrypt-hashes a plaintext password for account
// creation at the default cost.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("login: hash password: %w", err)
	}
	return string(hash), nil
}
