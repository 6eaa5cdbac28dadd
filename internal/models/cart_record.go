package models

import "time"

// CartRecord is the durable form of a cart: the encoded state plus the
// version used for optimistic concurrency between tabs.
type CartRecord struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)"`
	Payload   string    `gorm:"type:text"`
	Version   int64     `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"index"`
}
