package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionKeyPrefix 会话缓存key前缀，值为用户ID
const SessionKeyPrefix = KeyPrefix + "session:"

func sessionKey(tokenHash string) string {
	return SessionKeyPrefix + tokenHash
}

// CacheSession 缓存有效会话，ttl 不得超过令牌剩余有效期
func CacheSession(ctx context.Context, tokenHash string, userID uint, ttl time.Duration) error {
	if client == nil {
		return ErrNotInitialized
	}
	if ttl <= 0 {
		return nil
	}
	if err := client.Set(ctx, sessionKey(tokenHash), userID, ttl).Err(); err != nil {
		return fmt.Errorf("缓存会话失败: %w", err)
	}
	return nil
}

// GetCachedSession 读取会话缓存，未命中时 found 为 false
func GetCachedSession(ctx context.Context, tokenHash string) (userID uint, found bool, err error) {
	if client == nil {
		return 0, false, ErrNotInitialized
	}
	val, err := client.Get(ctx, sessionKey(tokenHash)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("读取会话缓存失败: %w", err)
	}
	id, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("解析会话缓存失败: %w", err)
	}
	return uint(id), true, nil
}

// EvictSessions 删除会话缓存（登出、停用用户）
func EvictSessions(ctx context.Context, tokenHashes ...string) error {
	if client == nil {
		return ErrNotInitialized
	}
	if len(tokenHashes) == 0 {
		return nil
	}
	keys := make([]string, 0, len(tokenHashes))
	for _, h := range tokenHashes {
		keys = append(keys, sessionKey(h))
	}
	if err := client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("删除会话缓存失败: %w", err)
	}
	return nil
}
