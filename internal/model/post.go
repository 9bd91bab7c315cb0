package model

import "time"

// Post is a published photo with its caption.
//
// Image always holds PNG bytes; whatever format was uploaded is decoded and
// re-encoded before it reaches storage. Seq is the insertion-order marker
// assigned by the store and is the only field listing order depends on.
type Post struct {
	ID        string    `json:"id"        db:"id"         bson:"_id"`
	OwnerID   string    `json:"ownerId"   db:"owner_id"   bson:"user_id"`
	Image     []byte    `json:"-"         db:"image"      bson:"image"`
	Caption   string    `json:"caption"   db:"caption"    bson:"caption"`
	Width     int       `json:"width"     db:"width"      bson:"width"`
	Height    int       `json:"height"    db:"height"     bson:"height"`
	Seq       int64     `json:"-"         db:"seq"        bson:"seq"`
	CreatedAt time.Time `json:"createdAt" db:"created_at" bson:"created_at"`
}
