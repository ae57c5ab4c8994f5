package invites

import "time"

// Invite is a snapshot of a guild invite as reported by the chat platform.
// Uses is incremented by the platform each time someone joins through it.
type Invite struct {
	Code      string
	Uses      int
	MaxUses   int
	CreatedAt time.Time
	ExpiresAt time.Time
}

// URL returns the public join link for the invite.
func (i Invite) URL() string {
	return "https://discord.gg/" + i.Code
}

// Member identifies a guild member that just joined.
type Member struct {
	ID       string
	GuildID  string
	Username string
}

// Role is a guild permission group.
type Role struct {
	ID   string
	Name string
}

// CachedInvite is the advisory cache's projection of a premium invite.
type CachedInvite struct {
	InviteLink string
	Uses       int
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// Gateway is the narrow set of chat-platform capabilities the controller
// needs. The discordgo-backed implementation lives in internal/discord; tests
// substitute a fake.
type Gateway interface {
	GuildName(guildID string) (string, error)
	ChannelName(channelID string) (string, error)
	GuildInvites(guildID string) ([]Invite, error)
	CreateChannelInvite(channelID string, maxUses int, maxAge time.Duration) (Invite, error)
	DeleteInvite(code string) error
	GuildRole(guildID, roleID string) (Role, error)
	AddMemberRole(guildID, userID, roleID string) error
	SendDirectMessage(userID, content string) error
}
