package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kminds/kuet-auth-bot/config"
	"github.com/kminds/kuet-auth-bot/models"
)

// ErrEmailAlreadyLinked is returned when the verified email already belongs
// to a different Discord account.
var ErrEmailAlreadyLinked = errors.New("email is already linked to another discord account")

type UserRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{
		collection: db.Collection(config.UsersCollection),
		now:        time.Now,
	}
}

// Upsert links a verified email to a Discord account, creating the user on
// first verification. The role is only set on insert so re-verifying never
// demotes a teacher or admin.
func (r *UserRepository) Upsert(ctx context.Context, email, name, discordID, term string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	now := r.now().UTC()
	set := bson.M{
		"email":      strings.ToLower(email),
		"name":       name,
		"discord_id": discordID,
		"status":     models.UserStatusActive,
		"updated_at": now,
	}
	if term != "" {
		set["term"] = term
	}
	update := bson.M{
		"$set": set,
		"$setOnInsert": bson.M{
			"role":       models.RoleStudent,
			"created_at": now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var user models.User
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"discord_id": discordID}, update, opts).Decode(&user)
	if mongo.IsDuplicateKeyError(err) {
		// A concurrent first verification may have inserted the user, and the
		// server can report that on either unique index. The retry matches it.
		err = r.collection.FindOneAndUpdate(ctx, bson.M{"discord_id": discordID}, update, opts).Decode(&user)
	}
	if err != nil {
		// discord_id and email are the only unique keys on users.
		if mongo.IsDuplicateKeyError(err) && !isDuplicateOn(err, "discord_id") {
			return nil, ErrEmailAlreadyLinked
		}
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return &user, nil
}

// isDuplicateOn reports whether err is a duplicate key error raised by the
// single-field unique index on field.
func isDuplicateOn(err error, field string) bool {
	if err == nil || !mongo.IsDuplicateKeyError(err) {
		return false
	}
	var se mongo.ServerError
	if !errors.As(err, &se) {
		return false
	}
	index := "index: " + field + "_1 "
	return se.HasErrorCodeWithMessage(11000, index) || se.HasErrorCodeWithMessage(11001, index)
}

// FindByDiscordID returns nil when the account has never been verified.
func (r *UserRepository) FindByDiscordID(ctx context.Context, discordID string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"discord_id": discordID}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

// SetBatch records the admission batch derived for the user.
func (r *UserRepository) SetBatch(ctx context.Context, discordID string, batch int) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			"batch":      batch,
			"updated_at": r.now().UTC(),
		},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var user models.User
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"discord_id": discordID}, update, opts).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("set user batch: %w", err)
	}
	return &user, nil
}
