// middleware/permission.go
package middleware

import (
	"context"

	"go.uber.org/zap"

	"github.com/kminds/kuet-auth-bot/models"
	"github.com/kminds/kuet-auth-bot/security"
	"github.com/kminds/kuet-auth-bot/utils"
)

// RequirePermission evaluates policy before the handler runs. A denied
// invocation gets the permission denied embed and never reaches the handler.
func RequirePermission(policy security.Policy, logger *zap.Logger) models.CommandMiddleware {
	return func(next models.CommandHandler) models.CommandHandler {
		return func(ctx context.Context, cmd *models.Command, r models.Responder) error {
			decision := security.Evaluate(policy, security.Invocation{
				UserID:    cmd.UserID,
				ChannelID: cmd.ChannelID,
				RoleIDs:   cmd.RoleIDs,
			})
			if !decision.Allowed {
				logger.Info("command denied",
					zap.String("command", cmd.Name),
					zap.String("invocation_id", cmd.InvocationID),
					zap.String("discord_id", cmd.UserID),
					zap.String("channel_id", cmd.ChannelID),
					zap.String("reason", string(decision.Reason)),
				)
				return r.Respond(ctx, utils.PermissionDeniedEmbed(decision.Reason.Message()))
			}
			return next(ctx, cmd, r)
		}
	}
}
