package database

import "livemarket/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.RoomRecord{},
		&models.MessageRecord{},
	}
}
