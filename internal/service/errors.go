package service

import "errors"

// 业务错误，handler 通过 errors.Is 映射为HTTP状态码
var (
	ErrInvalidCredentials     = errors.New("invalid email or password")
	ErrAccountDisabled        = errors.New("account is disabled")
	ErrAdminRequired          = errors.New("admin role required")
	ErrUserExists             = errors.New("user with this email or username already exists")
	ErrEmailOrUsernameTaken   = errors.New("email or username already taken")
	ErrInvalidCurrentPassword = errors.New("invalid current password")
	ErrUserNotFound           = errors.New("user not found")
	ErrInvalidUserStatus      = errors.New("invalid user status")
	ErrCannotDisableSelf      = errors.New("cannot disable your own account")
	ErrInvalidSubscription    = errors.New("invalid subscription status")
	ErrNoSubscription         = errors.New("user has no subscription")

	ErrCustomerOnly      = errors.New("only customers can open support chats")
	ErrChatNotFound      = errors.New("chat not found")
	ErrChatAccessDenied  = errors.New("chat not found or access denied")
	ErrChatClosed        = errors.New("chat is closed")
	ErrInvalidChatStatus = errors.New("invalid status")
	ErrEmptyMessage      = errors.New("message cannot be empty")
	ErrEmptySubject      = errors.New("subject and message are required")

	ErrNoAvatarFile      = errors.New("avatar file is required")
	ErrInvalidAvatarType = errors.New("invalid file type")
	ErrAvatarTooLarge    = errors.New("file is too large")
	ErrInvalidAvatarName = errors.New("invalid avatar file name")
	ErrAvatarNotFound    = errors.New("avatar not found")
)
