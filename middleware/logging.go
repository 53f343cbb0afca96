// middleware/logging.go
package middleware

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kminds/kuet-auth-bot/models"
)

// CommandLogger tags each invocation with an id and logs its outcome.
func CommandLogger(logger *zap.Logger) models.CommandMiddleware {
	return func(next models.CommandHandler) models.CommandHandler {
		return func(ctx context.Context, cmd *models.Command, r models.Responder) error {
			if cmd.InvocationID == "" {
				cmd.InvocationID = uuid.NewString()
			}
			start := time.Now()
			err := next(ctx, cmd, r)

			fields := []zap.Field{
				zap.String("command", cmd.Name),
				zap.String("invocation_id", cmd.InvocationID),
				zap.String("discord_id", cmd.UserID),
				zap.String("channel_id", cmd.ChannelID),
				zap.Duration("latency", time.Since(start)),
			}
			if err != nil {
				logger.Error("command failed", append(fields, zap.Error(err))...)
				return err
			}
			logger.Info("command handled", fields...)
			return nil
		}
	}
}
