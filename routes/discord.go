package routes

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/kminds/kuet-auth-bot/models"
)

// commandTimeout bounds the work done for one interaction. Discord keeps the
// interaction token valid for 15 minutes.
const commandTimeout = 30 * time.Second

// InteractionSession is the part of *discordgo.Session the transports use.
type InteractionSession interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// sessionResponder edits the deferred ephemeral reply of an interaction.
type sessionResponder struct {
	session     InteractionSession
	interaction *discordgo.Interaction
}

func (r *sessionResponder) Respond(ctx context.Context, embed *discordgo.MessageEmbed) error {
	_, err := r.session.InteractionResponseEdit(r.interaction, &discordgo.WebhookEdit{
		Embeds: &[]*discordgo.MessageEmbed{embed},
	}, discordgo.WithContext(ctx))
	return err
}

// NewResponder returns a Responder that edits i's deferred reply.
func NewResponder(session InteractionSession, i *discordgo.Interaction) models.Responder {
	return &sessionResponder{session: session, interaction: i}
}

func deferredEphemeral() *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	}
}

func autocompleteResult(choices []*discordgo.ApplicationCommandOptionChoice) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: choices},
	}
}

// GatewayHandler handles interactions received over the gateway. Commands
// are acknowledged with an ephemeral deferred reply before any work starts.
func GatewayHandler(rt *Router, logger *zap.Logger) func(*discordgo.Session, *discordgo.InteractionCreate) {
	logger = logger.Named("gateway")
	return func(s *discordgo.Session, ic *discordgo.InteractionCreate) {
		handleGatewayInteraction(s, ic.Interaction, rt, logger)
	}
}

func handleGatewayInteraction(s InteractionSession, i *discordgo.Interaction, rt *Router, logger *zap.Logger) {
	switch i.Type {
	case discordgo.InteractionApplicationCommandAutocomplete:
		if err := s.InteractionRespond(i, autocompleteResult(rt.Autocomplete(i))); err != nil {
			logger.Warn("failed to send autocomplete choices", zap.String("interaction_id", i.ID), zap.Error(err))
		}

	case discordgo.InteractionApplicationCommand:
		if err := s.InteractionRespond(i, deferredEphemeral()); err != nil {
			logger.Error("failed to defer interaction", zap.String("interaction_id", i.ID), zap.Error(err))
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		if err := rt.HandleInteraction(ctx, i, NewResponder(s, i)); err != nil {
			logger.Error("failed to handle interaction", zap.String("interaction_id", i.ID), zap.Error(err))
		}
	}
}
