package repository

import (
	"context"
	"course_connect_backend/internal/config"
	"course_connect_backend/pkg/logger"
	"course_connect_backend/pkg/tracing"
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MySQL 死锁与锁等待超时错误码
const (
	mysqlErrDeadlock        = 1213
	mysqlErrLockWaitTimeout = 1205
)

// Transactor 带超时、隔离级别和死锁重试的事务执行器
type Transactor struct {
	DB  *gorm.DB
	Cfg config.OrderingConfig
}

func NewTransactor(db *gorm.DB, cfg config.OrderingConfig) *Transactor {
	return &Transactor{DB: db, Cfg: cfg}
}

// Run 在一个事务中执行 fn，fn 返回错误或超时即回滚
func (t *Transactor) Run(ctx context.Context, isolation string, fn func(tx *gorm.DB) error) (err error) {
	ctx, cancel := context.WithTimeout(ctx, t.Cfg.TxTimeout())
	defer cancel()

	ctx, span := tracing.Start(ctx, "db.transaction", attribute.String("isolation", isolation))
	defer func() { tracing.End(span, err) }()

	attempts := t.Cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	for i := 0; i < attempts; i++ {
		span.SetAttributes(attribute.Int("attempt", i+1))
		err = t.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if tx.Dialector.Name() == "mysql" && t.Cfg.LockWaitSecs > 0 {
				if err := tx.Exec("SET SESSION innodb_lock_wait_timeout = ?", t.Cfg.LockWaitSecs).Error; err != nil {
					return err
				}
				// 连接会回到连接池，结束前恢复全局默认值
				defer resetLockWait(tx)
			}
			return fn(tx)
		}, TxOptions(isolation))

		if err == nil || !IsRetryable(err) {
			return err
		}

		logger.Log.Warn("Transaction conflict, retrying",
			zap.Int("attempt", i+1),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(i+1) * 50 * time.Millisecond):
		}
	}
	return err
}

func resetLockWait(tx *gorm.DB) {
	if err := tx.Exec("SET SESSION innodb_lock_wait_timeout = DEFAULT").Error; err != nil {
		logger.Log.Warn("Failed to reset innodb_lock_wait_timeout", zap.Error(err))
	}
}

// TxOptions 将配置中的隔离级别转换为 sql.TxOptions，空字符串使用数据库默认
func TxOptions(isolation string) *sql.TxOptions {
	switch isolation {
	case "serializable":
		return &sql.TxOptions{Isolation: sql.LevelSerializable}
	case "repeatable_read":
		return &sql.TxOptions{Isolation: sql.LevelRepeatableRead}
	case "read_committed":
		return &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	default:
		return nil
	}
}

// IsRetryable 死锁和锁等待超时可以重试
func IsRetryable(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlErrDeadlock || mysqlErr.Number == mysqlErrLockWaitTimeout
	}
	return false
}
