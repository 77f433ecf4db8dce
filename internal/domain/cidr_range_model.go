package domain

import "time"

// CidrRange stores an IPv4 block that random addresses may be drawn from.
type CidrRange struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	// CIDR holds the network string as supplied (e.g. 192.0.2.0/24).
	CIDR    string `gorm:"size:43;uniqueIndex;not null"`
	Source  string `gorm:"size:512;not null;default:''"`
	Enabled bool   `gorm:"not null;default:true"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}
