package models

import (
	"time"

	"gorm.io/gorm"
)

// UserAuth represents a user in the system
// Standardized: Go (PascalCase) -> DB (snake_case) -> JSON (camelCase)
type UserAuth struct {
	ID                string     `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Login             string     `gorm:"unique;not null" json:"login"`
	Password          string     `gorm:"not null" json:"-"`
	Email             string     `gorm:"unique;not null" json:"email"`
	Name              string     `json:"name,omitempty"`
	Role              string     `gorm:"default:'user'" json:"role"`
	CompanyID         *int64     `gorm:"index" json:"companyId,omitempty"`
	IsActive          bool       `gorm:"default:true" json:"isActive"`
	LastLogin         *time.Time `json:"lastLogin,omitempty"`
	PreferredLanguage string     `gorm:"default:'en'" json:"preferredLanguage"`

	// Two factor authentication. Secret and QR image are written on the
	// first successful OTP challenge and cleared when 2FA is disabled.
	Enable2FA     bool   `gorm:"column:enable_2fa;default:false" json:"enable2fa"`
	SecretCode2FA string `gorm:"column:secret_code_2fa" json:"-"`
	QRImage2FA    string `gorm:"column:qr_image_2fa;type:text" json:"-"` // base64 PNG

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Company *ResCompany `gorm:"foreignKey:CompanyID" json:"company,omitempty"`
}

// TableName specifies the table name for UserAuth model
func (UserAuth) TableName() string {
	return "user_auths"
}

// IsAdmin reports whether the user may run bulk administration actions
func (u UserAuth) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// HasQRCode reports whether the 2FA provisioning has been completed
func (u UserAuth) HasQRCode() bool {
	return u.QRImage2FA != ""
}

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)
