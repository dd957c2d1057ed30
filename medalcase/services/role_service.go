package services

import (
	"context"
	"fmt"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/snowflake/v2"
)

// RoleGranter is the external identity/role side effect. Calls are
// scheduled after the granting transaction commits so a rollback never
// desynchronizes the external system from local state.
type RoleGranter interface {
	GrantRole(ctx context.Context, discordID, roleID string) error
	RevokeRole(ctx context.Context, discordID, roleID string) error
}

// RoleService grants and revokes Discord guild roles.
type RoleService struct {
	client  bot.Client
	guildID snowflake.ID
}

func NewRoleService(client bot.Client, guildID snowflake.ID) *RoleService {
	return &RoleService{client: client, guildID: guildID}
}

func (s *RoleService) GrantRole(_ context.Context, discordID, roleID string) error {
	userID, err := snowflake.Parse(discordID)
	if err != nil {
		return fmt.Errorf("invalid discord id %q: %w", discordID, err)
	}
	role, err := snowflake.Parse(roleID)
	if err != nil {
		return fmt.Errorf("invalid role id %q: %w", roleID, err)
	}
	return s.client.Rest().AddMemberRole(s.guildID, userID, role)
}

func (s *RoleService) RevokeRole(_ context.Context, discordID, roleID string) error {
	userID, err := snowflake.Parse(discordID)
	if err != nil {
		return fmt.Errorf("invalid discord id %q: %w", discordID, err)
	}
	role, err := snowflake.Parse(roleID)
	if err != nil {
		return fmt.Errorf("invalid role id %q: %w", roleID, err)
	}
	return s.client.Rest().RemoveMemberRole(s.guildID, userID, role)
}
