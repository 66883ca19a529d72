package redislock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "lock:"

// トークンが一致するときだけ削除します。TTL 切れ後に他者が取得したロックを消さないためです。
const unlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`

type client interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// Locker は Redis の SETNX を使ったスロットロックです。appointment.SlotLocker を実装します。
type Locker struct {
	client   client
	ttl      time.Duration
	newToken func() string
}

// Options は Redis 接続の設定です。
type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// New は Redis に接続し、疎通確認を行った Locker を返します。
func New(ctx context.Context, opts Options) (*Locker, error) {
	const op = "redislock.New"

	c := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := c.Ping(pingCtx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return newLocker(c, opts.TTL), nil
}

func newLocker(c client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Locker{client: c, ttl: ttl, newToken: uuid.NewString}
}

// TryLock はロックを取得します。既に保持されていれば ok=false を返します。
func (l *Locker) TryLock(ctx context.Context, key string) (string, bool, error) {
	const op = "redislock.Locker.TryLock"

	token := l.newToken()
	ok, err := l.client.SetNX(ctx, keyPrefix+key, token, l.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Unlock は自分が取得したロックを解放します。
func (l *Locker) Unlock(ctx context.Context, key, token string) error {
	const op = "redislock.Locker.Unlock"

	if token == "" {
		return nil
	}
	if err := l.client.Eval(ctx, unlockScript, []string{keyPrefix + key}, token).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Ping は Redis への疎通を確認します。readiness チェックで使います。
func (l *Locker) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Close は接続を閉じます。
func (l *Locker) Close() error {
	return l.client.Close()
}
