package models

import (
	"context"

	"github.com/bwmarrin/discordgo"
)

// Command is one slash-command invocation, detached from the transport it
// arrived on (gateway event or HTTP interaction).
type Command struct {
	Name         string
	InvocationID string
	UserID       string
	GuildID      string
	ChannelID    string
	RoleIDs      []string
	Options      map[string]string
}

// Option returns the named option value or "" when it was not supplied.
func (c *Command) Option(name string) string {
	if c.Options == nil {
		return ""
	}
	return c.Options[name]
}

// Responder delivers the (ephemeral) reply for a deferred command.
type Responder interface {
	Respond(ctx context.Context, embed *discordgo.MessageEmbed) error
}

// CommandHandler handles a command. Returned errors are logged by the
// dispatcher; user-facing replies are the handler's job.
type CommandHandler func(ctx context.Context, cmd *Command, r Responder) error

// CommandMiddleware wraps a handler.
type CommandMiddleware func(next CommandHandler) CommandHandler

// Chain applies middleware so that the first one listed runs outermost.
func Chain(h CommandHandler, mw ...CommandMiddleware) CommandHandler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}
