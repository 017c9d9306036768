package model

// RoleName 角色名称，封闭集合
type RoleName string

const (
	RoleCustomer RoleName = "customer"
	RoleAdmin    RoleName = "admin"
)

// AllRoles 需要在启动时写入 roles 表的角色
var AllRoles = []RoleName{RoleCustomer, RoleAdmin}

// Valid 是否为已知角色
func (r RoleName) Valid() bool {
	switch r {
	case RoleCustomer, RoleAdmin:
		return true
	}
	return false
}

// Role 角色
type Role struct {
	ID   uint     `gorm:"primaryKey"`
	Name RoleName `gorm:"type:varchar(32);not null;uniqueIndex;comment:角色名"`
}

func (Role) TableName() string { return "roles" }

// UserRole 用户-角色关联（多对多）
type UserRole struct {
	UserID uint `gorm:"primaryKey;autoIncrement:false;comment:用户ID"`
	RoleID uint `gorm:"primaryKey;autoIncrement:false;index;comment:角色ID"`
}

func (UserRole) TableName() string { return "user_roles" }

// HasRole 角色列表中是否包含指定角色
func HasRole(roles []RoleName, want RoleName) bool {
	for _, r := range roles {
		if r == want {
			return true
		}
	}
	return false
}
