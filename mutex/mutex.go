package mutex

import (
	"fmt"
	"time"

	"github.com/go-redis/redis"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis"
)

const (
	cycleLockExpiration        = time.Minute * 5
	notificationLockExpiration = time.Minute * 5
	cycleKey                   = "gptk:cycle"
	notificationKeyPattern     = "gptk:notify:%v:chat:%v"
)

type Builder struct {
	rs *redsync.Redsync
}

func NewBuilder(address string) *Builder {
	client := redis.NewClient(&redis.Options{Addr: address})
	pool := goredis.NewPool(client)
	rs := redsync.New(pool)
	return &Builder{rs: rs}
}

// Cycle guards against overlapping update cycles. Single try: a tick that
// cannot take the lock skips its run instead of waiting.
func (c *Builder) Cycle() *redsync.Mutex {
	return c.rs.NewMutex(cycleKey, redsync.WithExpiry(cycleLockExpiration), redsync.WithTries(1))
}

// Notification dedups delivery of one notification body to one chat across
// restarts. Never unlocked explicitly: a crash mid-broadcast must not renotify
// the chats that were already reached, so the lock is left to expire.
func (c *Builder) Notification(digest string, chatId int64) *redsync.Mutex {
	key := fmt.Sprintf(notificationKeyPattern, digest, chatId)
	return c.rs.NewMutex(key, redsync.WithExpiry(notificationLockExpiration), redsync.WithTries(1))
}
