// middleware/recover.go
package middleware

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kminds/kuet-auth-bot/models"
	"github.com/kminds/kuet-auth-bot/utils"
)

// Recover turns a panicking handler into the generic error reply.
func Recover(logger *zap.Logger) models.CommandMiddleware {
	return func(next models.CommandHandler) models.CommandHandler {
		return func(ctx context.Context, cmd *models.Command, r models.Responder) (err error) {
			defer func() {
				if p := recover(); p != nil {
					logger.Error("command handler panicked",
						zap.String("command", cmd.Name),
						zap.String("invocation_id", cmd.InvocationID),
						zap.Any("panic", p),
						zap.Stack("stack"),
					)
					if rerr := r.Respond(ctx, utils.ErrorEmbed("Error", "An unexpected error occurred. Please try again later.")); rerr != nil {
						err = rerr
						return
					}
					err = fmt.Errorf("panic in %s: %v", cmd.Name, p)
				}
			}()
			return next(ctx, cmd, r)
		}
	}
}
