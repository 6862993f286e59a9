package sessions

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockRepo(t *testing.T) (Repository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	conn, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB, DriverName: "postgres"}), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return NewRepository(conn), mock
}

func TestIncrementCounterIssuesSingleGuardedUpdate(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectExec(`^UPDATE pos_sessions SET walk_in_sales = walk_in_sales \+ \$1, updated_at = \$2 WHERE id = \$3 AND status = \$4$`).
		WithArgs(2, sqlmock.AnyArg(), id, "open").
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := repo.IncrementCounter(context.Background(), id, "walk_in_sales", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementCounterReportsUntouchedRow(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectExec(`^UPDATE pos_sessions SET pickup_orders_fulfilled = pickup_orders_fulfilled \+ \$1`).
		WithArgs(1, sqlmock.AnyArg(), id, "open").
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := repo.IncrementCounter(context.Background(), id, "pickup_orders_fulfilled", 1)
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddToTotalIssuesSingleGuardedUpdate(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectExec(`^UPDATE pos_sessions SET total_sales = total_sales \+ \$1, updated_at = \$2 WHERE id = \$3 AND status = \$4$`).
		WithArgs("-12.5", sqlmock.AnyArg(), id, "open").
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := repo.AddToTotal(context.Background(), id, decimal.RequireFromString("-12.50"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.NoError(t, mock.ExpectationsWereMet())
}
