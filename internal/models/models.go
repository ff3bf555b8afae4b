package models

import (
	"time"
)

const (
	OrderStatusPlaced    = "placed"
	OrderStatusCancelled = "cancelled"
)

const (
	PurposePasswordReset     = "password_reset"
	PurposeEmailVerification = "email_verification"
)

type User struct {
	ID              uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Username        string     `gorm:"uniqueIndex;not null"     json:"username"`
	Email           string     `gorm:"uniqueIndex;not null"     json:"email"`
	PasswordHash    string     `gorm:"not null"                 json:"-"`
	EmailVerifiedAt *time.Time `json:"email_verified_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type Session struct {
	ID        uint      `gorm:"primaryKey"           json:"id"`
	Token     string    `gorm:"uniqueIndex;not null" json:"-"`
	UserID    uint      `gorm:"index;not null"       json:"user_id"`
	ExpiresAt time.Time `gorm:"not null"             json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

type OTP struct {
	ID        uint       `gorm:"primaryKey"     json:"id"`
	UserID    uint       `gorm:"index;not null" json:"user_id"`
	OTPHash   string     `gorm:"not null"       json:"-"`
	OTPSalt   string     `gorm:"not null"       json:"-"`
	Purpose   string     `gorm:"index;not null" json:"purpose"`
	ExpiresAt time.Time  `gorm:"not null"       json:"expires_at"`
	Attempts  int        `gorm:"default:0"      json:"attempts"`
	UsedAt    *time.Time `json:"used_at"`
	CreatedAt time.Time  `json:"created_at"`
}

type PasswordReset struct {
	ID        uint      `gorm:"primaryKey"           json:"id"`
	UserID    uint      `gorm:"index;not null"       json:"user_id"`
	Token     string    `gorm:"uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time `gorm:"not null"             json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

type EmailVerification struct {
	ID        uint      `gorm:"primaryKey"           json:"id"`
	UserID    uint      `gorm:"index;not null"       json:"user_id"`
	Token     string    `gorm:"uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time `gorm:"not null"             json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

type OrderItem struct {
	Name     string  `json:"name"`
	Quantity uint    `json:"quantity"`
	Price    float64 `json:"price"`
}

type Order struct {
	ID         uint        `gorm:"primaryKey"      json:"id"`
	UserID     uint        `gorm:"index;not null"  json:"user_id"`
	Items      []OrderItem `gorm:"serializer:json" json:"items"`
	QRValue    string      `gorm:"not null"        json:"qr_value"`
	RoomNumber string      `gorm:"not null"        json:"room_number"`
	Status     string      `gorm:"not null"        json:"status"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}
