package db

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/stockroom-backend/pkg/config"
	"github.com/angelmondragon/stockroom-backend/pkg/logger"
)

func bufferedQueryLogger(slow time.Duration) (*queryLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "db-test", Output: &buf})
	return newQueryLogger(logg, slow), &buf
}

func statement(sql string, rows int64) func() (string, int64) {
	return func() (string, int64) { return sql, rows }
}

func TestQueryLoggerReportsSlowAndFailedStatements(t *testing.T) {
	q, buf := bufferedQueryLogger(50 * time.Millisecond)
	ctx := context.Background()

	q.Trace(ctx, time.Now(), statement("SELECT 1", 1), nil)
	assert.Zero(t, buf.Len(), "fast successful statements are not logged at warn")

	q.Trace(ctx, time.Now(), statement("SELECT * FROM inventory", 0), gorm.ErrRecordNotFound)
	assert.Zero(t, buf.Len(), "missing rows are expected")

	q.Trace(ctx, time.Now().Add(-time.Second), statement("SELECT * FROM stock_movements", 40), nil)
	assert.Contains(t, buf.String(), "db.slow_query")
	assert.Contains(t, buf.String(), "stock_movements")

	buf.Reset()
	q.Trace(ctx, time.Now(), statement("UPDATE inventory SET quantity = 1", 0), errors.New("deadlock detected"))
	assert.Contains(t, buf.String(), "db.query_failed")
	assert.Contains(t, buf.String(), "deadlock detected")
}

func TestQueryLoggerSilentMode(t *testing.T) {
	q, buf := bufferedQueryLogger(time.Millisecond)
	silent := q.LogMode(gormlogger.Silent)
	silent.Trace(context.Background(), time.Now().Add(-time.Second), statement("SELECT 1", 1), errors.New("boom"))
	assert.Zero(t, buf.Len())
	assert.Equal(t, gormlogger.Warn, q.level, "LogMode returns a copy")
}

func TestNewOpensSQLiteWithSingleConnection(t *testing.T) {
	client, err := New(context.Background(), config.DBConfig{
		Driver: DialectSQLite,
		DSN:    "file:dbnew?mode=memory&cache=shared",
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	sqlDB, err := client.DB().DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
	require.NoError(t, client.Ping(context.Background()))

	_, err = New(context.Background(), config.DBConfig{Driver: "mysql", DSN: "x"}, nil)
	require.Error(t, err)
}
