package postgres

import (
	"context"

	"gorm.io/gorm"

	"creative-canvas-api/internal/domain/repository"
)

// TxManager 事务管理器
type TxManager struct {
	client *Client
}

// NewTxManager 创建事务管理器
func NewTxManager(client *Client) *TxManager {
	return &TxManager{client: client}
}

// WithTransaction 在事务中执行操作；已在事务中时以保存点嵌套
func (m *TxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return getDB(ctx, m.client.db).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, repository.TxKey{}, tx))
	})
}

func inTx(ctx context.Context) bool {
	tx, ok := ctx.Value(repository.TxKey{}).(*gorm.DB)
	return ok && tx != nil
}

// getDB 优先返回上下文中的事务
func getDB(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(repository.TxKey{}).(*gorm.DB); ok && tx != nil {
		return tx.WithContext(ctx)
	}
	return db.WithContext(ctx)
}
