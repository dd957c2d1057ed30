package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Title is a cosmetic reward a definition may link to.
type Title struct {
	bun.BaseModel `bun:"table:titles,alias:t"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Name      string    `bun:"name,notnull,unique"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

// TitleGrant ties a title to a profile, tagged with the grant that
// produced it. Cascade removal goes by exact (source_type, source_id),
// never wholesale by title.
type TitleGrant struct {
	bun.BaseModel `bun:"table:title_grants,alias:tg"`

	ID         int64     `bun:"id,pk,autoincrement"`
	ProfileID  int64     `bun:"profile_id,notnull"`
	TitleID    int64     `bun:"title_id,notnull"`
	SourceType string    `bun:"source_type,notnull"`
	SourceID   int64     `bun:"source_id,notnull"`
	GrantedAt  time.Time `bun:"granted_at,notnull"`

	Title *Title `bun:"rel:belongs-to,join:title_id=id"`
}
