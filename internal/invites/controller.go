package invites

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var (
	logger = log.With().Str("component", "invites").Logger()
)

const (
	// Premium invites are created with two uses but treated as one-shot:
	// the first join (uses 0 -> 1) triggers the role grant and the invite
	// is deleted before the second slot can be consumed.
	premiumMaxUses = 2

	premiumInviteTTL = 600 * time.Second

	welcomeMessage = "Welcome to Effekt.community Premium Channel! " +
		"We have detected that you joined with a premium link, and a premium " +
		"role has been assigned to your account. Enjoy your premium benefits!"
)

// Controller owns the premium-invite lifecycle: it keeps the advisory cache
// of premium invites in sync with the platform and runs the
// consume -> reward -> revoke sequence when a member joins.
type Controller struct {
	gw Gateway

	guildID   string
	channelID string
	roleID    string

	mu              sync.Mutex
	guildResolved   bool
	channelResolved bool
	cache           []CachedInvite
}

func NewController(gw Gateway, guildID, channelID, roleID string) *Controller {
	return &Controller{
		gw:        gw,
		guildID:   guildID,
		channelID: channelID,
		roleID:    roleID,
	}
}

// Bootstrap resolves the configured guild and channel and performs the
// initial cache fill. It is called once, on the platform's ready signal.
// A failed channel resolution is not fatal: join handling and bulk deletion
// only need the guild.
func (c *Controller) Bootstrap() error {
	guildName, err := c.gw.GuildName(c.guildID)
	if err != nil {
		return fmt.Errorf("resolve guild %s: %w", c.guildID, err)
	}
	c.mu.Lock()
	c.guildResolved = true
	c.mu.Unlock()
	logger.Info().Str("guild", guildName).Msg("Resolved guild")

	channelName, err := c.gw.ChannelName(c.channelID)
	if err != nil {
		logger.Error().Err(err).Str("channel_id", c.channelID).Msg("Channel not found")
	} else {
		c.mu.Lock()
		c.channelResolved = true
		c.mu.Unlock()
		logger.Info().Str("channel", channelName).Msg("Resolved channel")
	}

	c.RefreshCache()
	return nil
}

// RefreshCache replaces the cached premium-invite snapshot wholesale with a
// full fetch from the platform, filtered to invites created with the premium
// use limit. Failures leave the previous cache in place.
func (c *Controller) RefreshCache() {
	c.mu.Lock()
	ready := c.guildResolved
	c.mu.Unlock()
	if !ready {
		logger.Warn().Msg("Guild not resolved, skipping cache refresh")
		return
	}

	fetched, err := c.gw.GuildInvites(c.guildID)
	if err != nil {
		logger.Error().Err(err).Msg("Error fetching invites")
		return
	}

	snapshot := make([]CachedInvite, 0, len(fetched))
	for _, inv := range fetched {
		if inv.MaxUses != premiumMaxUses {
			continue
		}
		snapshot = append(snapshot, CachedInvite{
			InviteLink: inv.Code,
			Uses:       inv.Uses,
			CreatedAt:  inv.CreatedAt,
			ExpiresAt:  inv.ExpiresAt,
		})
	}

	c.mu.Lock()
	c.cache = snapshot
	c.mu.Unlock()
	logger.Info().Int("count", len(snapshot)).Msg("Cached premium invites")
}

// Cache returns a copy of the current premium-invite snapshot. The snapshot
// is advisory: join handling always re-fetches from the platform.
func (c *Controller) Cache() []CachedInvite {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CachedInvite, len(c.cache))
	copy(out, c.cache)
	return out
}

// CreatePremiumInvite creates a unique two-use invite for the configured
// channel with a 600 second lifetime and returns its public URL.
func (c *Controller) CreatePremiumInvite() (string, error) {
	c.mu.Lock()
	ready := c.guildResolved && c.channelResolved
	c.mu.Unlock()
	if !ready {
		return "", ErrNotReady
	}

	inv, err := c.gw.CreateChannelInvite(c.channelID, premiumMaxUses, premiumInviteTTL)
	if err != nil {
		return "", fmt.Errorf("create invite: %w", err)
	}

	c.RefreshCache()
	return inv.URL(), nil
}

// HandleMemberJoin runs the consume -> reward -> revoke sequence for a
// member-added event. It re-fetches the invite set to get fresh use counts
// and picks the invite whose count just reached one; with several candidates
// the earliest-created wins. The role grant is the committing step: the
// welcome message and the invite deletion are best-effort follow-ups whose
// failure is logged but never undoes the grant.
func (c *Controller) HandleMemberJoin(m Member) error {
	c.mu.Lock()
	ready := c.guildResolved
	c.mu.Unlock()
	if !ready {
		return ErrNotReady
	}

	current, err := c.gw.GuildInvites(c.guildID)
	if err != nil {
		return fmt.Errorf("fetch invites: %w", err)
	}

	used, ok := consumedInvite(current)
	if !ok {
		logger.Info().Str("member", m.Username).Msg("No invite link found with increased uses")
		return nil
	}
	logger.Info().Str("member", m.Username).Str("invite", used.Code).
		Msg("Member joined with a premium invite link")

	role, err := c.gw.GuildRole(c.guildID, c.roleID)
	if err != nil {
		if errors.Is(err, ErrRoleNotFound) {
			logger.Warn().Str("role_id", c.roleID).Msg("Premium role not found")
			return nil
		}
		return fmt.Errorf("fetch role: %w", err)
	}

	if err := c.gw.AddMemberRole(m.GuildID, m.ID, role.ID); err != nil {
		return fmt.Errorf("assign role %s to %s: %w", role.Name, m.Username, err)
	}
	logger.Info().Str("member", m.Username).Str("role", role.Name).Msg("Assigned premium role")

	if err := c.gw.SendDirectMessage(m.ID, welcomeMessage); err != nil {
		logger.Warn().Err(err).Str("member", m.Username).Msg("Failed to send welcome message")
	}

	if err := c.gw.DeleteInvite(used.Code); err != nil {
		logger.Warn().Err(err).Str("invite", used.Code).Msg("Failed to delete consumed invite")
	} else {
		logger.Info().Str("invite", used.Code).Msg("Deleted invite link")
	}

	c.RefreshCache()
	return nil
}

// consumedInvite picks the invite whose use count is exactly one,
// earliest-created first.
func consumedInvite(invs []Invite) (Invite, bool) {
	var best Invite
	found := false
	for _, inv := range invs {
		if inv.Uses != 1 {
			continue
		}
		if !found || inv.CreatedAt.Before(best.CreatedAt) {
			best = inv
			found = true
		}
	}
	return best, found
}

// DeleteAllInvites removes every invite in the guild regardless of use limit.
// Deletions run concurrently; the call fails if any single deletion fails,
// with no rollback of the ones that succeeded.
func (c *Controller) DeleteAllInvites() error {
	c.mu.Lock()
	ready := c.guildResolved
	c.mu.Unlock()
	if !ready {
		return ErrNotReady
	}

	all, err := c.gw.GuildInvites(c.guildID)
	if err != nil {
		return fmt.Errorf("fetch invites: %w", err)
	}

	var g errgroup.Group
	for _, inv := range all {
		inv := inv
		g.Go(func() error {
			return c.gw.DeleteInvite(inv.Code)
		})
	}
	err = g.Wait()

	c.RefreshCache()
	if err != nil {
		return fmt.Errorf("delete invites: %w", err)
	}
	logger.Info().Int("count", len(all)).Msg("All invites deleted")
	return nil
}
