package models

import (
	"time"

	"github.com/google/uuid"
)

// UserRole joins users to roles with a composite identity. Assignments cascade
// with their user; the referenced role is restricted from deletion while any
// assignment exists.
type UserRole struct {
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	RoleID    int64     `gorm:"column:role_id;primaryKey"`
	User      *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Role      *Role     `gorm:"foreignKey:RoleID;constraint:OnDelete:RESTRICT"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
