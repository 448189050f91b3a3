package bootstrap

import (
	"anoa.com/lmsforum/pkg/docstore"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return docstore.Migrate(db)
}
