package controllers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kminds/kuet-auth-bot/config"
	"github.com/kminds/kuet-auth-bot/models"
	"github.com/kminds/kuet-auth-bot/repositories"
	"github.com/kminds/kuet-auth-bot/services"
	"github.com/kminds/kuet-auth-bot/utils"
)

// OTPIssuer issues and consumes verification codes.
type OTPIssuer interface {
	CreateOTP(ctx context.Context, email, discordID string) (string, error)
	VerifyOTP(ctx context.Context, code, discordID string) (string, error)
}

// IdentityLinker stores verified identities.
type IdentityLinker interface {
	Upsert(ctx context.Context, email, name, discordID, term string) (*models.User, error)
	FindByDiscordID(ctx context.Context, discordID string) (*models.User, error)
	SetBatch(ctx context.Context, discordID string, batch int) (*models.User, error)
}

// GuildActions applies verification side effects to the guild.
type GuildActions interface {
	AddRole(ctx context.Context, guildID, userID, roleID string) error
	SetNickname(ctx context.Context, guildID, userID, nickname string) error
	PostVerificationLog(ctx context.Context, embed *discordgo.MessageEmbed) error
}

// AuthController handles the /auth command group.
type AuthController struct {
	otp      OTPIssuer
	users    IdentityLinker
	guild    GuildActions
	otpCfg   config.OTPConfig
	guildCfg config.GuildConfig
	validate *validator.Validate
	logger   *zap.Logger
}

func NewAuthController(otp OTPIssuer, users IdentityLinker, guild GuildActions, otpCfg config.OTPConfig, guildCfg config.GuildConfig, logger *zap.Logger) *AuthController {
	return &AuthController{
		otp:      otp,
		users:    users,
		guild:    guild,
		otpCfg:   otpCfg,
		guildCfg: guildCfg,
		validate: newValidator(),
		logger:   logger.Named("auth"),
	}
}

func (ac *AuthController) log(cmd *models.Command) *zap.Logger {
	return ac.logger.With(
		zap.String("command", cmd.Name),
		zap.String("invocation_id", cmd.InvocationID),
		zap.String("discord_id", cmd.UserID),
	)
}

// Login issues an OTP for the given student email prefix.
func (ac *AuthController) Login(ctx context.Context, cmd *models.Command, r models.Responder) error {
	log := ac.log(cmd)

	input := strings.ToLower(strings.TrimSpace(cmd.Option("email")))
	if strings.Contains(input, "@") && !strings.HasSuffix(input, ac.domain()) {
		return r.Respond(ctx, utils.ErrorEmbed("Login Failed", fmt.Sprintf("Only %s addresses can be verified.", ac.domain())))
	}
	req := models.LoginRequest{Email: utils.EmailPrefix(input)}
	if err := ac.validate.Struct(req); err != nil {
		return r.Respond(ctx, utils.ErrorEmbed("Login Failed", userMessage(newValidationError(err), "")))
	}

	if _, err := ac.otp.CreateOTP(ctx, req.Email, cmd.UserID); err != nil {
		if !isExpected(err) {
			log.Error("login failed", zap.Error(err))
		}
		return r.Respond(ctx, utils.ErrorEmbed("Login Failed", userMessage(err, "An error occurred during login.")))
	}

	fullEmail := services.NormalizeEmail(req.Email, ac.otpCfg.EmailDomain)
	return r.Respond(ctx, utils.SuccessEmbed("Login Requested",
		fmt.Sprintf("A verification code has been sent to %s.\n\nUse `/auth verify <code>` to complete authentication.", fullEmail)))
}

// Verify consumes the code and links the Discord account to the email.
func (ac *AuthController) Verify(ctx context.Context, cmd *models.Command, r models.Responder) error {
	log := ac.log(cmd)

	req := models.VerifyRequest{
		Code: strings.TrimSpace(cmd.Option("code")),
		Name: utils.SanitizeName(cmd.Option("name")),
	}
	if err := ac.validateVerify(req); err != nil {
		return r.Respond(ctx, utils.ErrorEmbed("Verification Failed", userMessage(err, "")))
	}

	email, err := ac.otp.VerifyOTP(ctx, req.Code, cmd.UserID)
	if err != nil {
		if !isExpected(err) {
			log.Error("verification failed", zap.Error(err))
		}
		return r.Respond(ctx, utils.ErrorEmbed("Verification Failed", userMessage(err, "An error occurred during verification.")))
	}

	user, err := ac.users.Upsert(ctx, email, req.Name, cmd.UserID, "")
	if err != nil {
		if !isExpected(err) {
			log.Error("failed to link user", zap.String("email", email), zap.Error(err))
		}
		return r.Respond(ctx, utils.ErrorEmbed("Verification Failed", userMessage(err, "An error occurred during verification.")))
	}
	log.Info("user verified", zap.String("email", user.Email))

	logEmbed := utils.InfoEmbed("New Verification", "")
	logEmbed.Fields = []*discordgo.MessageEmbedField{
		utils.Field("User", "<@"+cmd.UserID+">", true),
		utils.Field("Name", utils.EscapeMarkdown(user.Name), true),
		utils.Field("Email", user.Email, true),
	}
	if err := ac.guild.PostVerificationLog(ctx, logEmbed); err != nil {
		log.Warn("failed to post verification log", zap.Error(err))
	}

	return r.Respond(ctx, utils.SuccessEmbed("Authentication Successful",
		fmt.Sprintf("You have been authenticated as **%s** (%s).\n**Role:** %s\n**Term:** %s",
			utils.EscapeMarkdown(user.Name), user.Email, user.Role, orNotSet(user.Term))))
}

// Status shows the caller's linked identity.
func (ac *AuthController) Status(ctx context.Context, cmd *models.Command, r models.Responder) error {
	user, err := ac.users.FindByDiscordID(ctx, cmd.UserID)
	if err != nil {
		ac.log(cmd).Error("status lookup failed", zap.Error(err))
		return r.Respond(ctx, utils.ErrorEmbed("Status Unavailable", "An error occurred while checking your status."))
	}
	if user == nil {
		return r.Respond(ctx, utils.WarningEmbed("Not Authenticated",
			"You are not authenticated. Use `/auth login` to start the authentication process."))
	}

	status := "❌ Inactive"
	if user.IsActive() {
		status = "✅ Active"
	}
	embed := utils.InfoEmbed("Authentication Status", "")
	embed.Fields = []*discordgo.MessageEmbedField{
		utils.Field("Name", utils.EscapeMarkdown(user.Name), true),
		utils.Field("Email", user.Email, true),
		utils.Field("Role", string(user.Role), true),
		utils.Field("Term", orNotSet(user.Term), true),
		utils.Field("Status", status, true),
	}
	if user.Batch > 0 {
		embed.Fields = append(embed.Fields, utils.Field("Batch", fmt.Sprint(user.Batch), true))
	}
	return r.Respond(ctx, embed)
}

// Acknowledge assigns the batch derived from a verified member's email.
func (ac *AuthController) Acknowledge(ctx context.Context, cmd *models.Command, r models.Responder) error {
	log := ac.log(cmd)

	if cmd.GuildID == "" {
		return r.Respond(ctx, utils.ErrorEmbed("Acknowledge Failed", "This command can only be used in a server."))
	}
	req := models.AcknowledgeRequest{UserID: cmd.Option("user")}
	if err := ac.validate.Struct(req); err != nil {
		return r.Respond(ctx, utils.ErrorEmbed("Acknowledge Failed", userMessage(newValidationError(err), "")))
	}
	target := req.UserID

	user, err := ac.users.FindByDiscordID(ctx, target)
	if err != nil {
		log.Error("acknowledge lookup failed", zap.String("target", target), zap.Error(err))
		return r.Respond(ctx, utils.ErrorEmbed("Acknowledge Failed", "An error occurred while acknowledging the user."))
	}
	if user == nil {
		return r.Respond(ctx, utils.ErrorEmbed("Acknowledge Failed", fmt.Sprintf("<@%s> has not verified their email yet.", target)))
	}

	batch, token, err := utils.BatchFromEmail(user.Email)
	if err != nil {
		return r.Respond(ctx, utils.ErrorEmbed("Acknowledge Failed", fmt.Sprintf("Could not derive a batch from %s.", user.Email)))
	}
	if _, err := ac.users.SetBatch(ctx, target, batch); err != nil {
		log.Error("failed to store batch", zap.String("target", target), zap.Error(err))
		return r.Respond(ctx, utils.ErrorEmbed("Acknowledge Failed", "An error occurred while acknowledging the user."))
	}

	var failed []string
	roles := []string{ac.guildCfg.VerifiedRoleID, ac.guildCfg.BatchRoleIDs[token]}
	for _, roleID := range roles {
		if roleID == "" {
			continue
		}
		if err := ac.guild.AddRole(ctx, cmd.GuildID, target, roleID); err != nil {
			log.Warn("failed to add role", zap.String("target", target), zap.String("role_id", roleID), zap.Error(err))
			failed = append(failed, "<@&"+roleID+">")
		}
	}
	if err := ac.guild.SetNickname(ctx, cmd.GuildID, target, user.Name); err != nil {
		log.Warn("failed to set nickname", zap.String("target", target), zap.Error(err))
		failed = append(failed, "nickname")
	}
	log.Info("member acknowledged", zap.String("target", target), zap.Int("batch", batch))

	fields := []*discordgo.MessageEmbedField{
		utils.Field("Member", "<@"+target+">", true),
		utils.Field("Name", utils.EscapeMarkdown(user.Name), true),
		utils.Field("Batch", fmt.Sprint(batch), true),
	}
	if len(failed) > 0 {
		embed := utils.WarningEmbed("Partially Acknowledged", "Batch saved, but these could not be applied: "+strings.Join(failed, ", "))
		embed.Fields = fields
		return r.Respond(ctx, embed)
	}
	embed := utils.SuccessEmbed("Member Acknowledged", "")
	embed.Fields = fields
	return r.Respond(ctx, embed)
}

// Autocomplete suggests completions for the login email option.
func (ac *AuthController) Autocomplete(input string) []*discordgo.ApplicationCommandOptionChoice {
	return utils.PrefixSuggestions(input, ac.domain())
}

func (ac *AuthController) domain() string {
	d := ac.otpCfg.EmailDomain
	if d != "" && !strings.HasPrefix(d, "@") {
		d = "@" + d
	}
	return d
}

func (ac *AuthController) validateVerify(req models.VerifyRequest) error {
	if err := ac.validate.Struct(req); err != nil {
		return newValidationError(err)
	}
	if err := ac.validate.Var(req.Code, fmt.Sprintf("len=%d", ac.otpCfg.Length)); err != nil {
		return &ValidationError{Messages: []string{
			fmt.Sprintf("Verification code must be exactly %d characters.", ac.otpCfg.Length),
		}}
	}
	return nil
}

func orNotSet(s string) string {
	if s == "" {
		return "Not set"
	}
	return s
}

// isExpected reports whether err is a user-facing outcome rather than a
// fault worth an error log.
func isExpected(err error) bool {
	var um userMessager
	return errors.As(err, &um) ||
		errors.Is(err, services.ErrInvalidOrExpired) ||
		errors.Is(err, services.ErrNotificationFailed) ||
		errors.Is(err, repositories.ErrEmailAlreadyLinked)
}
