package persistence

import "ambonmud/internal/apperror"

// Repository is the persistence contract every layer implements:
// case-insensitive name lookup, id lookup, atomic-id-allocating
// create, and save. Every decorator in this package (Coalescer,
// CacheDecorator) and every durable backend (FileBackend, SQLBackend)
// implements it, so they compose transparently.
type Repository interface {
	FindByName(name string) (*PlayerRecord, bool, error)
	FindByID(id string) (*PlayerRecord, bool, error)
	Create(rec *PlayerRecord) (*PlayerRecord, error)
	Save(rec *PlayerRecord) error
}

// ErrNameTaken is returned by Create when the name is already in use
// (case-insensitively); two accounts may never differ only by case.
var ErrNameTaken = apperror.New(apperror.CategoryPersistence, apperror.ReasonNameTaken)
