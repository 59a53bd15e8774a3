package model

import "time"

// Exception is a persisted record of an aborted operation, kept for auditing.
type Exception struct {
	ID uint `gorm:"primaryKey" json:"id"`

	Module string `gorm:"size:100;index" json:"module"` // e.g. "portfolio"
	Method string `gorm:"size:100" json:"method"`       // e.g. "Buy"
	UserID uint   `gorm:"index" json:"user_id"`
	Symbol string `gorm:"size:20" json:"symbol,omitempty"`

	Message string `gorm:"type:text" json:"message"`
	Level   string `gorm:"size:20;index" json:"level"` // warn | error

	CreatedAt time.Time `json:"created_at"`
}

func (Exception) TableName() string {
	return "exceptions"
}
