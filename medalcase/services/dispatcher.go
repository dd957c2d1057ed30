package services

import (
	"context"
	"log/slog"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"

	"github.com/medalcase/medalcase/medalcase/database/models"
	"github.com/medalcase/medalcase/medalcase/database/repositories"
)

// NotificationDispatcher persists flushed notification payloads and
// optionally mirrors them to the profile's Discord DMs. The DM is best
// effort: a delivery failure never fails the dispatch.
type NotificationDispatcher struct {
	notifications repositories.NotificationRepository
	profiles      repositories.ProfileRepository
	client        bot.Client
	sendDMs       bool
}

func NewNotificationDispatcher(
	notifications repositories.NotificationRepository,
	profiles repositories.ProfileRepository,
	client bot.Client,
	sendDMs bool,
) *NotificationDispatcher {
	return &NotificationDispatcher{
		notifications: notifications,
		profiles:      profiles,
		client:        client,
		sendDMs:       sendDMs,
	}
}

func (d *NotificationDispatcher) Dispatch(ctx context.Context, n *models.Notification) error {
	if err := d.notifications.Create(ctx, n); err != nil {
		return err
	}

	if d.client != nil && d.sendDMs {
		d.sendDM(ctx, n)
	}
	return nil
}

func (d *NotificationDispatcher) sendDM(ctx context.Context, n *models.Notification) {
	profile, err := d.profiles.Get(ctx, n.ProfileID)
	if err != nil || profile.DiscordID == "" {
		return
	}

	userID, err := snowflake.Parse(profile.DiscordID)
	if err != nil {
		return
	}

	dmChannel, err := d.client.Rest().CreateDMChannel(userID)
	if err != nil {
		slog.Warn("Failed to open DM channel",
			slog.String("type", "notify"),
			slog.Int64("profile_id", n.ProfileID),
			slog.Any("error", err))
		return
	}

	if _, err = d.client.Rest().CreateMessage(dmChannel.ID(), discord.MessageCreate{
		Content: n.Message,
	}); err != nil {
		slog.Warn("Failed to send notification DM",
			slog.String("type", "notify"),
			slog.Int64("profile_id", n.ProfileID),
			slog.Any("error", err))
	}
}
