package repositories

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/kminds/kuet-auth-bot/models"
)

// Lua keeps the guard and the write (or the compare and the delete) in one
// atomic step on the server.
var (
	insertOTPScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'expires_at')
if cur and tonumber(cur) > tonumber(ARGV[7]) then
  return 0
end
redis.call('DEL', KEYS[1])
redis.call('HSET', KEYS[1], 'id', ARGV[1], 'code', ARGV[2], 'email', ARGV[3], 'discord_id', ARGV[4], 'created_at', ARGV[5], 'expires_at', ARGV[6])
redis.call('PEXPIREAT', KEYS[1], ARGV[6])
redis.call('HSET', KEYS[2], 'id', ARGV[1], 'created_at', ARGV[5])
redis.call('PEXPIREAT', KEYS[2], ARGV[8])
redis.call('SET', KEYS[3], ARGV[4])
redis.call('PEXPIREAT', KEYS[3], ARGV[9])
return 1
`)

	consumeOTPScript = redis.NewScript(`
local v = redis.call('HMGET', KEYS[1], 'id', 'code', 'email', 'discord_id', 'created_at', 'expires_at')
if not v[1] or v[2] ~= ARGV[1] or tonumber(v[6]) <= tonumber(ARGV[2]) then
  return false
end
redis.call('DEL', KEYS[1])
return v
`)

	deleteOTPScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'id') == ARGV[1] then
  redis.call('DEL', KEYS[1])
end
if redis.call('HGET', KEYS[2], 'id') == ARGV[1] then
  redis.call('DEL', KEYS[2])
end
redis.call('DEL', KEYS[3])
return 1
`)
)

// RedisOTPRepository stores OTPs as Redis hashes that expire at expires_at.
type RedisOTPRepository struct {
	client    *redis.Client
	retention time.Duration
	timeout   time.Duration
}

// NewRedisOTPRepository keeps issuance markers for retention after creation.
func NewRedisOTPRepository(client *redis.Client, retention time.Duration) *RedisOTPRepository {
	return &RedisOTPRepository{client: client, retention: retention, timeout: 10 * time.Second}
}

func activeKey(discordID string) string { return "otp:active:" + discordID }
func issuedKey(discordID string) string { return "otp:issued:" + discordID }
func idKey(id string) string { return "otp:id:" + id }

func unixMilli(t time.Time) string { return strconv.FormatInt(t.UnixMilli(), 10) }

func parseMilli(v string) (time.Time, error) {
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

func (r *RedisOTPRepository) Insert(ctx context.Context, otp *models.OTP) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	id := uuid.NewString()
	retainUntil := otp.CreatedAt.Add(r.retention)
	idUntil := otp.ExpiresAt
	if retainUntil.After(idUntil) {
		idUntil = retainUntil
	}
	ok, err := insertOTPScript.Run(ctx, r.client,
		[]string{activeKey(otp.DiscordID), issuedKey(otp.DiscordID), idKey(id)},
		id, otp.Code, otp.Email, otp.DiscordID,
		unixMilli(otp.CreatedAt), unixMilli(otp.ExpiresAt), unixMilli(otp.CreatedAt),
		unixMilli(retainUntil), unixMilli(idUntil),
	).Int()
	if err != nil {
		return "", fmt.Errorf("insert otp: %w", err)
	}
	if ok == 0 {
		return "", models.ErrDuplicateActiveOTP
	}
	otp.ID = id
	return id, nil
}

func (r *RedisOTPRepository) FindActiveByRequester(ctx context.Context, discordID string, now time.Time) (*models.OTP, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	fields, err := r.client.HGetAll(ctx, activeKey(discordID)).Result()
	if err != nil {
		return nil, fmt.Errorf("find active otp: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	otp, err := otpFromFields(fields["id"], fields["code"], fields["email"], fields["discord_id"], fields["created_at"], fields["expires_at"])
	if err != nil {
		return nil, err
	}
	if !otp.Active(now) {
		return nil, nil
	}
	return otp, nil
}

func (r *RedisOTPRepository) FindRecentByRequester(ctx context.Context, discordID string, since time.Time) (*models.OTPIssuance, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	fields, err := r.client.HGetAll(ctx, issuedKey(discordID)).Result()
	if err != nil {
		return nil, fmt.Errorf("find recent otp issuance: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	createdAt, err := parseMilli(fields["created_at"])
	if err != nil {
		return nil, fmt.Errorf("decode otp issuance: %w", err)
	}
	if createdAt.Before(since) {
		return nil, nil
	}
	return &models.OTPIssuance{ID: fields["id"], DiscordID: discordID, CreatedAt: createdAt}, nil
}

func (r *RedisOTPRepository) FindAndDeleteByCodeAndRequester(ctx context.Context, code, discordID string, now time.Time) (*models.OTP, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := consumeOTPScript.Run(ctx, r.client, []string{activeKey(discordID)}, code, unixMilli(now)).Slice()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("consume otp: %w", err)
	}
	if len(res) != 6 {
		return nil, fmt.Errorf("consume otp: unexpected reply of %d fields", len(res))
	}
	vals := make([]string, len(res))
	for i, v := range res {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("consume otp: field %d has type %T", i, v)
		}
		vals[i] = s
	}
	return otpFromFields(vals[0], vals[1], vals[2], vals[3], vals[4], vals[5])
}

func (r *RedisOTPRepository) DeleteByID(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	discordID, err := r.client.Get(ctx, idKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("resolve otp id: %w", err)
	}
	err = deleteOTPScript.Run(ctx, r.client,
		[]string{activeKey(discordID), issuedKey(discordID), idKey(id)}, id,
	).Err()
	if err != nil {
		return fmt.Errorf("delete otp: %w", err)
	}
	return nil
}

func otpFromFields(id, code, email, discordID, createdAt, expiresAt string) (*models.OTP, error) {
	created, err := parseMilli(createdAt)
	if err != nil {
		return nil, fmt.Errorf("decode otp created_at: %w", err)
	}
	expires, err := parseMilli(expiresAt)
	if err != nil {
		return nil, fmt.Errorf("decode otp expires_at: %w", err)
	}
	return &models.OTP{
		ID:        id,
		Code:      code,
		Email:     email,
		DiscordID: discordID,
		CreatedAt: created,
		ExpiresAt: expires,
	}, nil
}
