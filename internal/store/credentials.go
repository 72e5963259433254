// Package store persists the session credential in a local SQLite database
// so that a later CLI run can resume the session.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fivetwenty-io/rentals-client/internal/constants"
	"github.com/fivetwenty-io/rentals-client/pkg/rentals"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// credentialRecord is one stored credential. Rows are keyed so that the
// session lives under a single well-known key.
type credentialRecord struct {
	Key          string `gorm:"column:storage_key;primaryKey"`
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	UpdatedAt    time.Time
}

func (credentialRecord) TableName() string {
	return "credentials"
}

// CredentialStore implements rentals.CredentialPersister on SQLite.
type CredentialStore struct {
	db  *gorm.DB
	key string
}

// Option configures the store.
type Option func(*CredentialStore)

// WithKey stores the credential under key instead of "authToken".
func WithKey(key string) Option {
	return func(s *CredentialStore) {
		s.key = key
	}
}

// Open opens (creating if needed) the database at path. The special path
// ":memory:" keeps the database in memory.
func Open(path string, debug bool, opts ...Option) (*CredentialStore, error) {
	if path != ":memory:" {
		err := os.MkdirAll(filepath.Dir(path), constants.ConfigDirPerm)
		if err != nil {
			return nil, fmt.Errorf("creating credential directory: %w", err)
		}

		err = restrictFile(path)
		if err != nil {
			return nil, err
		}
	}

	logMode := logger.Silent
	if debug {
		logMode = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logMode)})
	if err != nil {
		return nil, fmt.Errorf("opening credential database: %w", err)
	}

	err = db.AutoMigrate(&credentialRecord{})
	if err != nil {
		return nil, fmt.Errorf("migrating credential database: %w", err)
	}

	store := &CredentialStore{db: db, key: constants.StorageKeyAuthToken}
	for _, opt := range opts {
		opt(store)
	}

	return store, nil
}

// restrictFile creates path if needed and limits it to the owner, since it
// holds session tokens.
func restrictFile(path string) error {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, constants.ConfigFilePerm)
	if err != nil {
		return fmt.Errorf("creating credential database: %w", err)
	}

	err = file.Close()
	if err != nil {
		return fmt.Errorf("creating credential database: %w", err)
	}

	err = os.Chmod(path, constants.ConfigFilePerm)
	if err != nil {
		return fmt.Errorf("restricting credential database: %w", err)
	}

	return nil
}

// Load implements rentals.CredentialPersister.Load. A missing row is not an
// error: it returns nil.
func (s *CredentialStore) Load(ctx context.Context) (*rentals.Credential, error) {
	var record credentialRecord

	err := s.db.WithContext(ctx).First(&record, "storage_key = ?", s.key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil //nolint:nilnil // absence is a valid state
	}

	if err != nil {
		return nil, fmt.Errorf("reading credential: %w", err)
	}

	return &rentals.Credential{
		AccessToken:  record.AccessToken,
		RefreshToken: record.RefreshToken,
		ExpiresAt:    record.ExpiresAt,
	}, nil
}

// Save implements rentals.CredentialPersister.Save.
func (s *CredentialStore) Save(ctx context.Context, credential *rentals.Credential) error {
	record := credentialRecord{
		Key:          s.key,
		AccessToken:  credential.AccessToken,
		RefreshToken: credential.RefreshToken,
		ExpiresAt:    credential.ExpiresAt,
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "storage_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"access_token", "refresh_token", "expires_at", "updated_at"}),
	}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("writing credential: %w", err)
	}

	return nil
}

// Delete implements rentals.CredentialPersister.Delete.
func (s *CredentialStore) Delete(ctx context.Context) error {
	err := s.db.WithContext(ctx).Delete(&credentialRecord{}, "storage_key = ?", s.key).Error
	if err != nil {
		return fmt.Errorf("deleting credential: %w", err)
	}

	return nil
}

// Close closes the database.
func (s *CredentialStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting database handle: %w", err)
	}

	return sqlDB.Close()
}
