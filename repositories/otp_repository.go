package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kminds/kuet-auth-bot/config"
	"github.com/kminds/kuet-auth-bot/models"
)

// OTPRepository stores OTPs in MongoDB. Expiry is enforced by the
// expires_at guard on every query and physically by the TTL index created
// in config.SetupCollections; the unique discord_id index makes a second
// live OTP for the same requester impossible.
type OTPRepository struct {
	otps      *mongo.Collection
	issuances *mongo.Collection
	timeout   time.Duration
}

func NewOTPRepository(db *mongo.Database) *OTPRepository {
	return &OTPRepository{
		otps:      db.Collection(config.OTPsCollection),
		issuances: db.Collection(config.OTPIssuancesCollection),
		timeout:   10 * time.Second,
	}
}

func (r *OTPRepository) Insert(ctx context.Context, otp *models.OTP) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// Expired documents the TTL monitor has not reaped yet would trip the
	// unique index.
	_, err := r.otps.DeleteMany(ctx, bson.M{
		"discord_id": otp.DiscordID,
		"expires_at": bson.M{"$lte": otp.CreatedAt},
	})
	if err != nil {
		return "", fmt.Errorf("purge expired otps: %w", err)
	}

	otp.ID = primitive.NewObjectID().Hex()
	if _, err := r.otps.InsertOne(ctx, otp); err != nil {
		otp.ID = ""
		if mongo.IsDuplicateKeyError(err) {
			return "", models.ErrDuplicateActiveOTP
		}
		return "", fmt.Errorf("insert otp: %w", err)
	}

	issuance := models.OTPIssuance{ID: otp.ID, DiscordID: otp.DiscordID, CreatedAt: otp.CreatedAt}
	if _, err := r.issuances.InsertOne(ctx, issuance); err != nil {
		return otp.ID, fmt.Errorf("insert otp issuance: %w", err)
	}
	return otp.ID, nil
}

func (r *OTPRepository) FindActiveByRequester(ctx context.Context, discordID string, now time.Time) (*models.OTP, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var otp models.OTP
	err := r.otps.FindOne(ctx, bson.M{
		"discord_id": discordID,
		"expires_at": bson.M{"$gt": now},
	}).Decode(&otp)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("find active otp: %w", err)
	}
	return &otp, nil
}

func (r *OTPRepository) FindRecentByRequester(ctx context.Context, discordID string, since time.Time) (*models.OTPIssuance, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var issuance models.OTPIssuance
	err := r.issuances.FindOne(ctx,
		bson.M{
			"discord_id": discordID,
			"created_at": bson.M{"$gte": since},
		},
		options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	).Decode(&issuance)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("find recent otp issuance: %w", err)
	}
	return &issuance, nil
}

// FindAndDeleteByCodeAndRequester consumes a live OTP in one round trip, so
// concurrent attempts with the same code see exactly one success.
func (r *OTPRepository) FindAndDeleteByCodeAndRequester(ctx context.Context, code, discordID string, now time.Time) (*models.OTP, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var otp models.OTP
	err := r.otps.FindOneAndDelete(ctx, bson.M{
		"code":       code,
		"discord_id": discordID,
		"expires_at": bson.M{"$gt": now},
	}).Decode(&otp)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("consume otp: %w", err)
	}
	return &otp, nil
}

func (r *OTPRepository) DeleteByID(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.otps.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete otp: %w", err)
	}
	if _, err := r.issuances.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete otp issuance: %w", err)
	}
	return nil
}
