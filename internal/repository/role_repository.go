package repository

import (
	"context"
	"fmt"

	"vst-portal/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RoleRepository 角色数据仓储
type RoleRepository struct {
	db *gorm.DB
}

// NewRoleRepository 创建RoleRepository实例
func NewRoleRepository(db *gorm.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

// WithTx 返回绑定到事务的仓储
func (r *RoleRepository) WithTx(tx *gorm.DB) *RoleRepository {
	return &RoleRepository{db: tx}
}

// EnsureRoles 写入内置角色，已存在则跳过
func (r *RoleRepository) EnsureRoles(ctx context.Context) error {
	for _, name := range model.AllRoles {
		role := model.Role{Name: name}
		if err := r.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&role).Error; err != nil {
			return fmt.Errorf("初始化角色 %s 失败: %w", name, err)
		}
	}
	return nil
}

// Assign 为用户分配角色，重复分配忽略
func (r *RoleRepository) Assign(ctx context.Context, userID uint, role model.RoleName) error {
	var rec model.Role
	if err := r.db.WithContext(ctx).Where("name = ?", role).First(&rec).Error; err != nil {
		return fmt.Errorf("角色 %s 不存在: %w", role, notFound(err))
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.UserRole{UserID: userID, RoleID: rec.ID}).Error
}

// RolesOf 用户拥有的角色
func (r *RoleRepository) RolesOf(ctx context.Context, userID uint) ([]model.RoleName, error) {
	var names []model.RoleName
	err := r.db.WithContext(ctx).
		Table("roles AS r").
		Joins("JOIN user_roles ur ON ur.role_id = r.id").
		Where("ur.user_id = ?", userID).
		Order("r.id").
		Pluck("r.name", &names).Error
	return names, err
}

// HasRole 用户是否拥有角色，每次实时查询
func (r *RoleRepository) HasRole(ctx context.Context, userID uint, role model.RoleName) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("user_roles AS ur").
		Joins("JOIN roles r ON r.id = ur.role_id").
		Where("ur.user_id = ? AND r.name = ?", userID, role).
		Count(&count).Error
	return count > 0, err
}
