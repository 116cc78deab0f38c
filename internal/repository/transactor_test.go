package repository

import (
	"context"
	"course_connect_backend/internal/config"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// mysqlNamed 在 sqlite 上模拟 mysql 方言名，用于走 mysql 专属分支
type mysqlNamed struct {
	gorm.Dialector
}

func (mysqlNamed) Name() string { return "mysql" }

type sessionRecorder struct {
	statements []string
}

// openMySQLNamed SET SESSION 语句被记录后替换为 SELECT 1 执行
func openMySQLNamed(t *testing.T) (*gorm.DB, *sessionRecorder) {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(mysqlNamed{sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))},
		&gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	rec := &sessionRecorder{}
	err = db.Callback().Raw().Before("gorm:raw").Register("test:session_vars", func(tx *gorm.DB) {
		sql := tx.Statement.SQL.String()
		if !strings.HasPrefix(sql, "SET SESSION") {
			return
		}
		rec.statements = append(rec.statements, fmt.Sprint(sql, tx.Statement.Vars))
		tx.Statement.SQL.Reset()
		tx.Statement.SQL.WriteString("SELECT 1")
		tx.Statement.Vars = nil
	})
	require.NoError(t, err)
	return db, rec
}

func TestRunResetsLockWaitAfterTransaction(t *testing.T) {
	db, rec := openMySQLNamed(t)
	tx := NewTransactor(db, config.OrderingConfig{TxTimeoutSecs: 5, MaxRetries: 1, LockWaitSecs: 3})

	err := tx.Run(context.Background(), "", func(*gorm.DB) error {
		rec.statements = append(rec.statements, "work")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"SET SESSION innodb_lock_wait_timeout = ?[3]",
		"work",
		"SET SESSION innodb_lock_wait_timeout = DEFAULT[]",
	}, rec.statements)

	rec.statements = nil
	err = tx.Run(context.Background(), "", func(*gorm.DB) error {
		return errors.New("boom")
	})
	require.EqualError(t, err, "boom")
	assert.Equal(t, []string{
		"SET SESSION innodb_lock_wait_timeout = ?[3]",
		"SET SESSION innodb_lock_wait_timeout = DEFAULT[]",
	}, rec.statements)
}

func TestRunSkipsLockWaitWhenDisabled(t *testing.T) {
	db, rec := openMySQLNamed(t)
	tx := NewTransactor(db, config.OrderingConfig{TxTimeoutSecs: 5, MaxRetries: 1})

	require.NoError(t, tx.Run(context.Background(), "", func(*gorm.DB) error { return nil }))
	assert.Empty(t, rec.statements)
}

func TestRunRetriesDeadlock(t *testing.T) {
	db, _ := openMySQLNamed(t)
	tx := NewTransactor(db, config.OrderingConfig{TxTimeoutSecs: 5, MaxRetries: 3})

	calls := 0
	err := tx.Run(context.Background(), "", func(*gorm.DB) error {
		calls++
		if calls < 3 {
			return &mysql.MySQLError{Number: mysqlErrDeadlock, Message: "deadlock"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = tx.Run(context.Background(), "", func(*gorm.DB) error {
		calls++
		return errors.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRunRecordsTransactionSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	db, _ := openMySQLNamed(t)
	tx := NewTransactor(db, config.OrderingConfig{TxTimeoutSecs: 5, MaxRetries: 1})

	require.NoError(t, tx.Run(context.Background(), "", func(*gorm.DB) error { return nil }))
	require.Error(t, tx.Run(context.Background(), "", func(*gorm.DB) error { return errors.New("boom") }))

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "db.transaction", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "boom", spans[1].Status().Description)
}

func TestTxOptions(t *testing.T) {
	assert.Nil(t, TxOptions(""))
	assert.NotNil(t, TxOptions("serializable"))
	assert.NotNil(t, TxOptions("read_committed"))
}
