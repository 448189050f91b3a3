// Package docstoretest provides a document store backed by a private
// in-memory sqlite database.
package docstoretest

import (
	"testing"

	"anoa.com/lmsforum/pkg/database"
	"anoa.com/lmsforum/pkg/docstore"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Open returns a migrated in-memory database closed at test cleanup.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := database.Open("sqlite://:memory:")
	require.NoError(t, err)
	require.NoError(t, docstore.Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func New(t testing.TB) docstore.Store {
	t.Helper()
	return docstore.New(Open(t))
}
