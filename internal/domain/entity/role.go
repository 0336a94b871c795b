// Package entity 定义领域实体
package entity

// Role 对话角色枚举
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid 是否为受支持的角色
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}
