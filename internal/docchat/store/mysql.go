package store

import (
	"gorm.io/gorm"

	"github.com/kart-io/docchat/internal/model"
)

// datastore implements the Factory interface.
type datastore struct {
	db *gorm.DB
}

// NewFactory creates a storage factory backed by the given GORM database.
func NewFactory(db *gorm.DB) Factory {
	return &datastore{db: db}
}

// Documents returns the document store.
func (ds *datastore) Documents() DocumentStore {
	return newDocuments(ds.db)
}

// Conversations returns the conversation store.
func (ds *datastore) Conversations() ConversationStore {
	return newConversations(ds.db)
}

// AutoMigrate migrates the database schema.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Document{},
		&model.Conversation{},
		&model.Message{},
	)
}

// Close closes the factory and underlying connections.
func (ds *datastore) Close() error {
	sqlDB, err := ds.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
