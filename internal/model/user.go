// Package model defines the data structures used throughout the application.
package model

import "time"

// User is a registered account.
//
// Username is unique and compared case-sensitively. PasswordHash holds the
// full bcrypt output (cost and salt included) and is never serialized.
type User struct {
	ID           string    `json:"id"        db:"id"            bson:"_id"`
	Username     string    `json:"username"  db:"username"      bson:"username"`
	PasswordHash string    `json:"-"         db:"password_hash" bson:"password"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"    bson:"created_at"`
}
