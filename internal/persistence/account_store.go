package persistence

import "fmt"

// AccountStore adapts a Repository into the small credential-lookup
// surface internal/login's Authenticator needs, keeping login's
// package free of any dependency on PlayerRecord's full shape.
type AccountStore struct {
	repo Repository
}

// NewAccountStore builds a login.AccountStore backed by repo.
func NewAccountStore(repo Repository) *AccountStore {
	return &AccountStore{repo: repo}
}

// PasswordHash implements login.AccountStore.
func (a *AccountStore) PasswordHash(username string) (string, bool, error) {
	rec, ok, err := a.repo.FindByName(username)
	if err != nil || !ok {
		return "", ok, err
	}
	return rec.PasswordHash, true, nil
}

// MFASecret implements login.AccountStore.
func (a *AccountStore) MFASecret(username string) (string, bool, error) {
	rec, ok, err := a.repo.FindByName(username)
	if err != nil || !ok {
		return "", false, err
	}
	return rec.MFASecret, rec.MFAEnabled, nil
}

// SetMFASecret implements login.AccountStore: persists the enrolled
// secret and flips MFAEnabled on.
func (a *AccountStore) SetMFASecret(username, secret string) error {
	rec, ok, err := a.repo.FindByName(username)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("persistence: no such account %q", username)
	}
	rec.MFASecret = secret
	rec.MFAEnabled = true
	return a.repo.Save(rec)
}
