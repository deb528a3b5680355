package models

import "time"

// User carries the persisted user record. Presence columns are written only
// by the presence path; they are corroborated by the live connection registry.
type User struct {
	ID         int       `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	Email      string    `db:"email" json:"email"`
	Phone      string    `db:"phone" json:"phone"`
	ProfilePic string    `db:"profile_pic" json:"profile_pic,omitempty"`
	IsOnline   bool      `db:"is_online" json:"is_online"`
	LastSeen   time.Time `db:"last_seen" json:"last_seen"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
