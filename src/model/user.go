package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is the account holding a cash balance. Authentication data lives
// outside this service; only the identity and the balance are tracked here.
type User struct {
	ID       uint            `gorm:"primaryKey" json:"id"`
	Username string          `gorm:"size:100;uniqueIndex;not null" json:"username"`
	Email    string          `gorm:"size:255" json:"email"`
	Balance  decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"balance"`

	// Version is bumped on every balance write and guards compare-and-swap updates.
	Version   int64     `gorm:"not null" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
