// Package license 生成插件授权码
package license

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Prefix 授权码前缀
const Prefix = "SNC-VST"

var keyPattern = regexp.MustCompile(`^SNC-VST-\d{4}-\d{3,}-[0-9A-F]{6}$`)

// GenerateKey 生成授权码：SNC-VST-<年份>-<用户ID补零至3位>-<6位大写十六进制>
// 唯一性依赖随机后缀，由数据库唯一索引兜底
func GenerateKey(now time.Time, userID uint) (string, error) {
	suffix := make([]byte, 3)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("generate license suffix: %w", err)
	}
	return fmt.Sprintf("%s-%d-%03d-%s", Prefix, now.Year(), userID, strings.ToUpper(hex.EncodeToString(suffix))), nil
}

// ValidKey 校验授权码格式
func ValidKey(key string) bool {
	return keyPattern.MatchString(key)
}
