package routes

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/kminds/kuet-auth-bot/config"
	"github.com/kminds/kuet-auth-bot/controllers"
	"github.com/kminds/kuet-auth-bot/middleware"
	"github.com/kminds/kuet-auth-bot/models"
	"github.com/kminds/kuet-auth-bot/security"
	"github.com/kminds/kuet-auth-bot/utils"
)

// AuthCommandName is the top level slash command; the actions are its
// subcommands.
const AuthCommandName = "auth"

var ErrNotAuthCommand = errors.New("interaction is not an /auth command")

// Router dispatches /auth subcommands to their guarded handlers.
type Router struct {
	handlers     map[string]models.CommandHandler
	autocomplete func(input string) []*discordgo.ApplicationCommandOptionChoice
	logger       *zap.Logger
}

// RegisterCommands wires every subcommand to its controller method behind the
// logging, recover, rate limit and permission middleware.
func RegisterCommands(ac *controllers.AuthController, policies map[string]security.Policy, limiter *middleware.RateLimiter, logger *zap.Logger) *Router {
	logger = logger.Named("commands")
	rt := &Router{
		handlers:     make(map[string]models.CommandHandler),
		autocomplete: ac.Autocomplete,
		logger:       logger,
	}

	actions := map[string]models.CommandHandler{
		config.ActionLogin:       ac.Login,
		config.ActionVerify:      ac.Verify,
		config.ActionStatus:      ac.Status,
		config.ActionAcknowledge: ac.Acknowledge,
	}
	for name, h := range actions {
		rt.handlers[name] = models.Chain(h,
			middleware.CommandLogger(logger),
			middleware.Recover(logger),
			limiter.RateLimit(),
			middleware.RequirePermission(policies[name], logger),
		)
	}
	return rt
}

// Dispatch runs the handler registered for cmd.Name.
func (rt *Router) Dispatch(ctx context.Context, cmd *models.Command, r models.Responder) error {
	h, ok := rt.handlers[cmd.Name]
	if !ok {
		rt.logger.Warn("unknown subcommand", zap.String("command", cmd.Name))
		return r.Respond(ctx, utils.ErrorEmbed("Unknown Command", fmt.Sprintf("`/auth %s` is not supported.", cmd.Name)))
	}
	return h(ctx, cmd, r)
}

// HandleInteraction converts an application command interaction and
// dispatches it. Conversion failures get a generic reply.
func (rt *Router) HandleInteraction(ctx context.Context, i *discordgo.Interaction, r models.Responder) error {
	cmd, err := CommandFromInteraction(i)
	if err != nil {
		rt.logger.Warn("rejected interaction", zap.String("interaction_id", i.ID), zap.Error(err))
		return r.Respond(ctx, utils.ErrorEmbed("Error", "This command could not be processed."))
	}
	return rt.Dispatch(ctx, cmd, r)
}

// Autocomplete returns the choices for the focused option of i.
func (rt *Router) Autocomplete(i *discordgo.Interaction) []*discordgo.ApplicationCommandOptionChoice {
	if i.Type != discordgo.InteractionApplicationCommandAutocomplete {
		return nil
	}
	data := i.ApplicationCommandData()
	if data.Name != AuthCommandName || len(data.Options) == 0 {
		return nil
	}
	for _, opt := range data.Options[0].Options {
		if opt.Focused && opt.Name == "email" {
			return rt.autocomplete(fmt.Sprint(opt.Value))
		}
	}
	return []*discordgo.ApplicationCommandOptionChoice{}
}

// CommandFromInteraction flattens an /auth interaction into a Command. The
// channel of a direct message is reported as security.DirectMessageChannel.
func CommandFromInteraction(i *discordgo.Interaction) (*models.Command, error) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return nil, fmt.Errorf("unexpected interaction type %s", i.Type)
	}
	data := i.ApplicationCommandData()
	if data.Name != AuthCommandName || len(data.Options) == 0 {
		return nil, ErrNotAuthCommand
	}
	sub := data.Options[0]
	if sub.Type != discordgo.ApplicationCommandOptionSubCommand {
		return nil, ErrNotAuthCommand
	}

	cmd := &models.Command{
		Name:    sub.Name,
		GuildID: i.GuildID,
		Options: make(map[string]string, len(sub.Options)),
	}

	var user *discordgo.User
	if i.Member != nil {
		user = i.Member.User
		cmd.RoleIDs = i.Member.Roles
	} else {
		user = i.User
	}
	if user == nil {
		return nil, errors.New("interaction has no invoking user")
	}
	id, err := models.ParseDiscordID(user.ID)
	if err != nil {
		return nil, err
	}
	cmd.UserID = id

	if i.GuildID == "" {
		cmd.ChannelID = security.DirectMessageChannel
	} else {
		cmd.ChannelID = i.ChannelID
	}

	for _, opt := range sub.Options {
		switch opt.Type {
		case discordgo.ApplicationCommandOptionString:
			cmd.Options[opt.Name] = opt.StringValue()
		case discordgo.ApplicationCommandOptionUser:
			if u := opt.UserValue(nil); u != nil {
				cmd.Options[opt.Name] = u.ID
			}
		default:
			cmd.Options[opt.Name] = fmt.Sprint(opt.Value)
		}
	}
	return cmd, nil
}

// CommandDefinitions describes /auth for registration with Discord.
func CommandDefinitions(codeLength int) []*discordgo.ApplicationCommand {
	emailMin, codeMin, nameMin := 9, codeLength, 2
	dm := true
	return []*discordgo.ApplicationCommand{{
		Name:         AuthCommandName,
		Description:  "Authentication commands",
		DMPermission: &dm,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        config.ActionLogin,
				Description: "Start the login process with your KUET student email",
				Options: []*discordgo.ApplicationCommandOption{{
					Type:         discordgo.ApplicationCommandOptionString,
					Name:         "email",
					Description:  "Your KUET student email prefix (e.g. zihad2107071)",
					Required:     true,
					Autocomplete: true,
					MinLength:    &emailMin,
					MaxLength:    20,
				}},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        config.ActionVerify,
				Description: "Verify your email with the code sent to you",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "code",
						Description: "The verification code sent to your email",
						Required:    true,
						MinLength:   &codeMin,
						MaxLength:   codeLength,
					},
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "name",
						Description: "Your full name (2-50 characters)",
						Required:    true,
						MinLength:   &nameMin,
						MaxLength:   50,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        config.ActionStatus,
				Description: "Check your authentication status",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        config.ActionAcknowledge,
				Description: "Assign the batch role to a verified member",
				Options: []*discordgo.ApplicationCommandOption{{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "The user to acknowledge",
					Required:    true,
				}},
			},
		},
	}}
}
