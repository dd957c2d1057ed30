package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Notification is a flushed, persisted achievement notification. Rows
// carry the grant source reference so revocation can delete exactly
// the notification tied to a revoked grant.
type Notification struct {
	bun.BaseModel `bun:"table:notifications,alias:n"`

	ID         int64     `bun:"id,pk,autoincrement"`
	ProfileID  int64     `bun:"profile_id,notnull"`
	Message    string    `bun:"message,notnull"`
	SourceType string    `bun:"source_type,notnull"`
	SourceID   int64     `bun:"source_id,notnull"`
	Read       bool      `bun:"read,notnull,default:false"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
}
