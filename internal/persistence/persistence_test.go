package persistence

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestFileBackendCreateFindAndSave(t *testing.T) {
	dir := t.TempDir()
	fb, err := NewFileBackend(dir)
	require.NoError(t, err)

	rec := &PlayerRecord{Name: "Rin", PasswordHash: "hash1", CurrentRoomID: "zone1:start"}
	created, err := fb.Create(rec)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	found, ok, err := fb.FindByName("rin")
	require.NoError(t, err)
	require.True(t, ok, "name lookup is case-insensitive")
	require.Equal(t, created.ID, found.ID)

	found.Gold = 42
	require.NoError(t, fb.Save(found))

	reloaded, ok, err := fb.FindByID(created.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(42), reloaded.Gold)
}

func TestFileBackendRejectsDuplicateNameCaseInsensitively(t *testing.T) {
	dir := t.TempDir()
	fb, err := NewFileBackend(dir)
	require.NoError(t, err)

	_, err = fb.Create(&PlayerRecord{Name: "Rin", PasswordHash: "h"})
	require.NoError(t, err)

	_, err = fb.Create(&PlayerRecord{Name: "RIN", PasswordHash: "h2"})
	require.ErrorIs(t, err, ErrNameTaken)
}

func TestFileBackendIndexSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	fb, err := NewFileBackend(dir)
	require.NoError(t, err)
	created, err := fb.Create(&PlayerRecord{Name: "Rin", PasswordHash: "h"})
	require.NoError(t, err)

	reopened, err := NewFileBackend(dir)
	require.NoError(t, err)
	found, ok, err := reopened.FindByName("Rin")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, created.ID, found.ID)

	next, err := reopened.Create(&PlayerRecord{Name: "Bo", PasswordHash: "h2"})
	require.NoError(t, err)
	require.NotEqual(t, created.ID, next.ID, "id counter must continue past the highest id on disk")
}

type fakeDelegate struct {
	records map[string]*PlayerRecord
	saves   int
}

func newFakeDelegate() *fakeDelegate {
	return &fakeDelegate{records: make(map[string]*PlayerRecord)}
}

func (f *fakeDelegate) FindByName(name string) (*PlayerRecord, bool, error) {
	for _, r := range f.records {
		if lower(r.Name) == lower(name) {
			return r, true, nil
		}
	}
	return nil, false, nil
}

func (f *fakeDelegate) FindByID(id string) (*PlayerRecord, bool, error) {
	r, ok := f.records[id]
	return r, ok, nil
}

func (f *fakeDelegate) Create(rec *PlayerRecord) (*PlayerRecord, error) {
	clone := *rec
	clone.ID = "1"
	f.records[clone.ID] = &clone
	return &clone, nil
}

func (f *fakeDelegate) Save(rec *PlayerRecord) error {
	f.saves++
	clone := *rec
	f.records[rec.ID] = &clone
	return nil
}

func TestCoalescerServesDirtyReadsBeforeFlush(t *testing.T) {
	delegate := newFakeDelegate()
	created, err := delegate.Create(&PlayerRecord{Name: "Rin", PasswordHash: "h"})
	require.NoError(t, err)

	c := NewCoalescer(delegate, time.Hour, zerolog.Nop())
	defer c.Shutdown()

	created.Gold = 99
	require.NoError(t, c.Save(created))
	require.Equal(t, 0, delegate.saves, "save must not perform I/O on the caller's goroutine")

	found, ok, err := c.FindByID(created.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(99), found.Gold, "dirty cache is consulted before the delegate")
}

func TestCoalescerShutdownForcesFullFlush(t *testing.T) {
	delegate := newFakeDelegate()
	created, err := delegate.Create(&PlayerRecord{Name: "Rin", PasswordHash: "h"})
	require.NoError(t, err)

	c := NewCoalescer(delegate, time.Hour, zerolog.Nop())
	created.Gold = 7
	require.NoError(t, c.Save(created))

	c.Shutdown()

	require.Equal(t, 1, delegate.saves, "shutdown performs a synchronous full flush")
	persisted, ok, err := delegate.FindByID(created.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(7), persisted.Gold)
}

func TestAccountStoreAdapter(t *testing.T) {
	delegate := newFakeDelegate()
	_, err := delegate.Create(&PlayerRecord{Name: "Rin", PasswordHash: "bcrypt-hash"})
	require.NoError(t, err)

	store := NewAccountStore(delegate)

	hash, ok, err := store.PasswordHash("Rin")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "bcrypt-hash", hash)

	_, enabled, err := store.MFASecret("Rin")
	require.NoError(t, err)
	require.False(t, enabled)

	require.NoError(t, store.SetMFASecret("Rin", "totp-secret"))

	secret, enabled, err := store.MFASecret("Rin")
	require.NoError(t, err)
	require.True(t, enabled)
	require.Equal(t, "totp-secret", secret)
}
