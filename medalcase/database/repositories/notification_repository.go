package repositories

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/medalcase/medalcase/medalcase/database/models"
)

// NotificationRepository persists flushed notifications. Deletion goes
// by exact source reference so revoking one grant never touches
// notifications produced by other grants.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	GetByProfile(ctx context.Context, profileID int64, unreadOnly bool) ([]*models.Notification, error)
	MarkRead(ctx context.Context, id int64) error
	DeleteBySource(ctx context.Context, db bun.IDB, sourceType string, sourceID int64) error
}

type notificationRepository struct {
	*BaseRepository
}

func NewNotificationRepository(db *bun.DB) NotificationRepository {
	return &notificationRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *notificationRepository) Create(ctx context.Context, n *models.Notification) error {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	_, err := r.GetDB().NewInsert().
		Model(n).
		Exec(timeoutCtx)
	return r.HandleError("create", "notification", err)
}

func (r *notificationRepository) GetByProfile(ctx context.Context, profileID int64, unreadOnly bool) ([]*models.Notification, error) {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var notifications []*models.Notification
	query := r.GetDB().NewSelect().
		Model(&notifications).
		Where("n.profile_id = ?", profileID).
		Order("created_at DESC")
	if unreadOnly {
		query = query.Where("n.read = false")
	}

	if err := query.Scan(timeoutCtx); err != nil {
		return nil, r.HandleErrorWithID("get_by_profile", "notification", profileID, err)
	}
	return notifications, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, id int64) error {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	_, err := r.GetDB().NewUpdate().
		Model((*models.Notification)(nil)).
		Set("read = true").
		Where("id = ?", id).
		Exec(timeoutCtx)
	return r.HandleErrorWithID("mark_read", "notification", id, err)
}

func (r *notificationRepository) DeleteBySource(ctx context.Context, db bun.IDB, sourceType string, sourceID int64) error {
	_, err := db.NewDelete().
		Model((*models.Notification)(nil)).
		Where("source_type = ?", sourceType).
		Where("source_id = ?", sourceID).
		Exec(ctx)
	return r.HandleError("delete_by_source", "notification", err)
}
