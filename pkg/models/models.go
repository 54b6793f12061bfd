package models

import (
	"time"

	"gorm.io/gorm"
)

// Agent status values
const (
	AgentStatusActive     = "active"
	AgentStatusInactive   = "inactive"
	AgentStatusProcessing = "processing"
)

// User represents an account on the CodeSherpa platform
type User struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Name           string `json:"name" gorm:"size:255;not null"`
	Email          string `json:"email" gorm:"size:255;uniqueIndex;not null"`
	HashedPassword string `json:"-" gorm:"not null"`
	IsActive       bool   `json:"is_active" gorm:"default:true"`

	// Relationships
	Agents   []Agent   `json:"-" gorm:"foreignKey:UserID"`
	Projects []Project `json:"-" gorm:"foreignKey:UserID"`
	Chats    []Chat    `json:"-" gorm:"foreignKey:UserID"`
}

// Agent is a user-owned agent configuration
type Agent struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Name        string `json:"name" gorm:"size:255;not null"`
	Description string `json:"description"`
	Status      string `json:"status" gorm:"size:32;default:'active';not null"` // active, inactive, processing
	UserID      uint   `json:"user_id" gorm:"index;not null"`
}

// IsValidAgentStatus reports whether status is one of the known agent states
func IsValidAgentStatus(status string) bool {
	switch status {
	case AgentStatusActive, AgentStatusInactive, AgentStatusProcessing:
		return true
	}
	return false
}

// Project groups a user's work
type Project struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Name        string `json:"name" gorm:"size:255;not null"`
	Description string `json:"description"`
	UserID      uint   `json:"user_id" gorm:"index;not null"`
}

// Chat is one stored message and the agent response to it
type Chat struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
	UpdatedAt time.Time `json:"updated_at"`

	Message  string  `json:"message" gorm:"type:text;not null"`
	Response *string `json:"response" gorm:"type:text"`
	UserID   uint    `json:"user_id" gorm:"index;not null"`
}

// All returns every model managed by auto-migration
func All() []interface{} {
	return []interface{}{
		&User{},
		&Agent{},
		&Project{},
		&Chat{},
	}
}
