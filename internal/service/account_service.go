package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"vst-portal/config"
	"vst-portal/internal/repository"
	"vst-portal/pkg/logger"
	"vst-portal/pkg/password"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AvatarURLPrefix 头像访问路径前缀
const AvatarURLPrefix = "/uploads/avatars/"

// 允许的头像类型及保存扩展名
var avatarExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// 按扩展名返回的内容类型
var avatarContentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

var avatarNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+\.[A-Za-z0-9]+$`)

// UpdateProfileInput 个人资料修改参数，空字符串表示不修改
type UpdateProfileInput struct {
	Email           string
	Username        string
	CurrentPassword string
	NewPassword     string
	AvatarURL       string
}

// AccountService 个人资料与头像
type AccountService struct {
	profiles profileReader
	cfg      config.UploadConfig
	now      func() time.Time
}

// NewAccountService 创建AccountService实例
func NewAccountService(db *gorm.DB, cfg config.UploadConfig) *AccountService {
	return &AccountService{
		profiles: newProfileReader(db),
		cfg:      cfg,
		now:      time.Now,
	}
}

// Profile 当前用户资料
func (s *AccountService) Profile(ctx context.Context, userID uint) (*Profile, error) {
	return s.profiles.load(ctx, userID)
}

// UpdateProfile 修改邮箱、用户名、密码、头像地址
func (s *AccountService) UpdateProfile(ctx context.Context, userID uint, in UpdateProfileInput) (*Profile, error) {
	user, err := s.profiles.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}

	email := strings.TrimSpace(in.Email)
	if email == "" {
		email = user.Email
	}
	username := strings.TrimSpace(in.Username)
	if username == "" {
		username = user.Username
	}

	taken, err := s.profiles.users.ExistsEmailOrUsername(ctx, email, username, userID)
	if err != nil {
		return nil, fmt.Errorf("检查用户唯一性失败: %w", err)
	}
	if taken {
		return nil, ErrEmailOrUsernameTaken
	}

	fields := map[string]interface{}{
		"email":    email,
		"username": username,
	}
	if in.NewPassword != "" {
		if !password.Verify(in.CurrentPassword, user.PasswordHash) {
			return nil, ErrInvalidCurrentPassword
		}
		if err := password.Validate(in.NewPassword); err != nil {
			return nil, err
		}
		hash, err := password.Hash(in.NewPassword)
		if err != nil {
			return nil, fmt.Errorf("密码哈希失败: %w", err)
		}
		fields["password_hash"] = hash
	}
	if avatar := strings.TrimSpace(in.AvatarURL); avatar != "" {
		// 本站头像只能指向自己上传的文件
		if strings.HasPrefix(avatar, AvatarURLPrefix) && !ownsAvatar(userID, avatar) {
			return nil, ErrInvalidAvatarName
		}
		fields["avatar_url"] = avatar
	}

	if err := s.profiles.users.UpdateFields(ctx, userID, fields); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailOrUsernameTaken
		}
		return nil, fmt.Errorf("更新用户失败: %w", err)
	}
	logger.Info("用户资料已更新", zap.Uint("user_id", userID), zap.Bool("password_changed", in.NewPassword != ""))
	return s.profiles.load(ctx, userID)
}

// UploadAvatar 保存头像文件并更新 avatar_url，成功后删除旧头像
func (s *AccountService) UploadAvatar(ctx context.Context, userID uint, fh *multipart.FileHeader) (string, error) {
	if fh == nil {
		return "", ErrNoAvatarFile
	}
	mediaType, _, err := mime.ParseMediaType(fh.Header.Get("Content-Type"))
	if err != nil {
		return "", ErrInvalidAvatarType
	}
	ext, ok := avatarExtensions[mediaType]
	if !ok {
		return "", ErrInvalidAvatarType
	}
	if fh.Size > s.cfg.MaxAvatarBytes {
		return "", ErrAvatarTooLarge
	}

	user, err := s.profiles.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("查询用户失败: %w", err)
	}

	if err := os.MkdirAll(s.cfg.AvatarDir, 0o755); err != nil {
		return "", fmt.Errorf("创建头像目录失败: %w", err)
	}
	filename := fmt.Sprintf("avatar_%d_%d.%s", userID, s.now().Unix(), ext)
	dst := filepath.Join(s.cfg.AvatarDir, filename)
	if err := s.saveFile(fh, dst); err != nil {
		return "", err
	}

	avatarURL := AvatarURLPrefix + filename
	if err := s.profiles.users.UpdateFields(ctx, userID, map[string]interface{}{"avatar_url": avatarURL}); err != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("更新头像失败: %w", err)
	}

	if old := user.AvatarURL; old != avatarURL && ownsAvatar(userID, old) {
		oldPath := filepath.Join(s.cfg.AvatarDir, strings.TrimPrefix(old, AvatarURLPrefix))
		if err := os.Remove(oldPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("删除旧头像失败", zap.String("path", oldPath), zap.Error(err))
		}
	}
	logger.Info("头像已更新", zap.Uint("user_id", userID), zap.String("file", filename))
	return avatarURL, nil
}

// ownsAvatar 头像地址是否指向该用户上传的文件
func ownsAvatar(userID uint, avatarURL string) bool {
	name, ok := strings.CutPrefix(avatarURL, AvatarURLPrefix)
	if !ok || !avatarNamePattern.MatchString(name) {
		return false
	}
	return strings.HasPrefix(name, fmt.Sprintf("avatar_%d_", userID))
}

// saveFile 复制上传内容，实际大小超过限制时删除并返回 ErrAvatarTooLarge
func (s *AccountService) saveFile(fh *multipart.FileHeader, dst string) error {
	src, err := fh.Open()
	if err != nil {
		return fmt.Errorf("读取上传文件失败: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("创建头像文件失败: %w", err)
	}
	written, err := io.Copy(out, io.LimitReader(src, s.cfg.MaxAvatarBytes+1))
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("保存头像文件失败: %w", err)
	}
	if written > s.cfg.MaxAvatarBytes {
		_ = os.Remove(dst)
		return ErrAvatarTooLarge
	}
	return nil
}

// AvatarFile 返回头像文件路径与内容类型，拒绝目录穿越
func (s *AccountService) AvatarFile(name string) (string, string, error) {
	if !avatarNamePattern.MatchString(name) || filepath.Base(name) != name {
		return "", "", ErrInvalidAvatarName
	}
	path := filepath.Join(s.cfg.AvatarDir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", "", ErrAvatarNotFound
	}
	contentType, ok := avatarContentTypes[strings.ToLower(filepath.Ext(name))]
	if !ok {
		contentType = "application/octet-stream"
	}
	return path, contentType, nil
}
