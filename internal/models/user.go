// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// User represents a registered Buffonomics account.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"uniqueIndex;not null" json:"email"`
	Username  string    `gorm:"uniqueIndex;not null" json:"username"`
	Password  string    `gorm:"not null" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Principal is the identity attached to an authenticated request.
type Principal struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// Follow is a user's subscription to one politician's trading activity.
type Follow struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserKey        string    `gorm:"not null;uniqueIndex:idx_follow_user_politician;index" json:"userKey"`
	PoliticianKey  string    `gorm:"not null;uniqueIndex:idx_follow_user_politician" json:"politicianKey"`
	PoliticianName string    `json:"politicianName"`
	CreatedAt      time.Time `json:"createdAt"`
}
