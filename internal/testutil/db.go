// Package testutil 测试用的内存数据库与数据构造
package testutil

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"vst-portal/internal/model"
	"vst-portal/internal/repository"
	"vst-portal/pkg/password"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// NewDB 每个测试独立的 sqlite 内存库，已迁移并写入内置角色
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	password.SetCost(bcrypt.MinCost)

	dsn := fmt.Sprintf("file:vst_test_%d?mode=memory&cache=shared", dbSeq.Add(1))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	// 内存库随最后一个连接关闭而销毁
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, conn.AutoMigrate(model.AllModels()...))
	require.NoError(t, repository.NewRoleRepository(conn).EnsureRoles(context.Background()))
	return conn
}

// CreateUser 直接写入用户并分配角色，不创建授权与订阅
func CreateUser(t testing.TB, conn *gorm.DB, email, username, plain string, roles ...model.RoleName) *model.User {
	t.Helper()
	ctx := context.Background()
	hash, err := password.Hash(plain)
	require.NoError(t, err)

	user := &model.User{Email: email, Username: username, PasswordHash: hash, Status: model.UserStatusActive}
	require.NoError(t, repository.NewUserRepository(conn).Create(ctx, user))

	roleRepo := repository.NewRoleRepository(conn)
	for _, r := range roles {
		require.NoError(t, roleRepo.Assign(ctx, user.ID, r))
	}
	return user
}
