package services

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/kminds/kuet-auth-bot/utils"
)

// maxNicknameLength is Discord's limit on guild nicknames.
const maxNicknameLength = 32

// DiscordService performs the guild side effects of verification through
// the bot's REST session.
type DiscordService struct {
	session       *discordgo.Session
	logsChannelID string
	logger        *zap.Logger
}

func NewDiscordService(session *discordgo.Session, logsChannelID string, logger *zap.Logger) *DiscordService {
	return &DiscordService{
		session:       session,
		logsChannelID: logsChannelID,
		logger:        logger.Named("discord"),
	}
}

func (d *DiscordService) AddRole(ctx context.Context, guildID, userID, roleID string) error {
	return d.session.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx))
}

func (d *DiscordService) SetNickname(ctx context.Context, guildID, userID, nickname string) error {
	nickname = utils.Truncate(nickname, maxNicknameLength)
	return d.session.GuildMemberNickname(guildID, userID, nickname, discordgo.WithContext(ctx))
}

// PostVerificationLog sends embed to the verification logs channel. It is a
// no-op when no channel is configured.
func (d *DiscordService) PostVerificationLog(ctx context.Context, embed *discordgo.MessageEmbed) error {
	if d.logsChannelID == "" {
		return nil
	}
	_, err := d.session.ChannelMessageSendEmbed(d.logsChannelID, embed, discordgo.WithContext(ctx))
	return err
}
