package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimitKeyPrefix 限流计数key前缀
const RateLimitKeyPrefix = KeyPrefix + "rl:"

// 计数与设置过期在同一脚本内完成，没有过期时间的key会被补上
var incrWithTTLScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if tonumber(ARGV[1]) > 0 and redis.call('PTTL', KEYS[1]) < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// IncrWithTTL 固定窗口计数：首次计数时设置过期时间
func IncrWithTTL(ctx context.Context, key string, window time.Duration) (int64, error) {
	if client == nil {
		return 0, ErrNotInitialized
	}
	count, err := incrWithTTLScript.Run(ctx, client, []string{RateLimitKeyPrefix + key}, window.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("限流计数失败: %w", err)
	}
	return count, nil
}
