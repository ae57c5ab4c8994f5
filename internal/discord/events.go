package discord

import (
	"github.com/bwmarrin/discordgo"

	"github.com/effektcommunity/invitebot/internal/invites"
)

// Bind registers the gateway event handlers: ready triggers the controller's
// bootstrap (guild/channel resolution and initial cache fill), member-added
// runs the join sequence. Event handlers have no caller to report to, so
// failures end at the log.
func Bind(s *discordgo.Session, ctrl *invites.Controller) {
	s.AddHandler(func(_ *discordgo.Session, _ *discordgo.Ready) {
		logger.Info().Msg("Bot is ready")
		if err := ctrl.Bootstrap(); err != nil {
			logger.Error().Err(err).Msg("Error during bot initialization")
		}
	})

	s.AddHandler(func(_ *discordgo.Session, e *discordgo.GuildMemberAdd) {
		if e.User == nil {
			return
		}
		member := invites.Member{
			ID:       e.User.ID,
			GuildID:  e.GuildID,
			Username: e.User.Username,
		}
		logger.Info().Str("member", member.Username).Msg("New member joined")
		if err := ctrl.HandleMemberJoin(member); err != nil {
			logger.Error().Err(err).Str("member", member.Username).Msg("Error processing new member")
		}
	})
}
