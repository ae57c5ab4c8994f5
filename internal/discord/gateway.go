package discord

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"github.com/effektcommunity/invitebot/internal/invites"
)

var (
	logger = log.With().Str("component", "discord").Logger()
)

// NewSession builds an authenticated gateway session with the guild and
// guild-member intents the bot needs for invite and join tracking.
func NewSession(botToken string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers
	return s, nil
}

// Gateway adapts a discordgo session to the capability interface the invite
// controller depends on.
type Gateway struct {
	s *discordgo.Session
}

var _ invites.Gateway = (*Gateway)(nil)

func NewGateway(s *discordgo.Session) *Gateway {
	return &Gateway{s: s}
}

func (g *Gateway) GuildName(guildID string) (string, error) {
	guild, err := g.s.Guild(guildID)
	if err != nil {
		return "", err
	}
	return guild.Name, nil
}

func (g *Gateway) ChannelName(channelID string) (string, error) {
	channel, err := g.s.Channel(channelID)
	if err != nil {
		return "", err
	}
	return channel.Name, nil
}

func (g *Gateway) GuildInvites(guildID string) ([]invites.Invite, error) {
	raw, err := g.s.GuildInvites(guildID)
	if err != nil {
		return nil, err
	}
	out := make([]invites.Invite, 0, len(raw))
	for _, inv := range raw {
		out = append(out, toInvite(inv))
	}
	return out, nil
}

func (g *Gateway) CreateChannelInvite(channelID string, maxUses int, maxAge time.Duration) (invites.Invite, error) {
	inv, err := g.s.ChannelInviteCreate(channelID, discordgo.Invite{
		MaxAge:  int(maxAge.Seconds()),
		MaxUses: maxUses,
		Unique:  true,
	})
	if err != nil {
		return invites.Invite{}, err
	}
	return toInvite(inv), nil
}

func (g *Gateway) DeleteInvite(code string) error {
	_, err := g.s.InviteDelete(code)
	return err
}

func (g *Gateway) GuildRole(guildID, roleID string) (invites.Role, error) {
	roles, err := g.s.GuildRoles(guildID)
	if err != nil {
		return invites.Role{}, err
	}
	for _, r := range roles {
		if r.ID == roleID {
			return invites.Role{ID: r.ID, Name: r.Name}, nil
		}
	}
	return invites.Role{}, invites.ErrRoleNotFound
}

func (g *Gateway) AddMemberRole(guildID, userID, roleID string) error {
	return g.s.GuildMemberRoleAdd(guildID, userID, roleID)
}

func (g *Gateway) SendDirectMessage(userID, content string) error {
	ch, err := g.s.UserChannelCreate(userID)
	if err != nil {
		return err
	}
	_, err = g.s.ChannelMessageSend(ch.ID, content)
	return err
}

// toInvite projects the SDK invite onto the controller's record. Expiry is
// derived from creation time plus max age rather than trusting the SDK to
// populate it.
func toInvite(inv *discordgo.Invite) invites.Invite {
	out := invites.Invite{
		Code:      inv.Code,
		Uses:      inv.Uses,
		MaxUses:   inv.MaxUses,
		CreatedAt: inv.CreatedAt,
	}
	if inv.MaxAge > 0 {
		out.ExpiresAt = inv.CreatedAt.Add(time.Duration(inv.MaxAge) * time.Second)
	}
	return out
}
