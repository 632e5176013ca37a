package postgres

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapdesk/golang_services/internal/queue_consumer_service/domain"
)

func newQueueRepoTest(t *testing.T) (pgxmock.PgxPoolIface, *PgQueueRepository) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return mockPool, NewPgQueueRepository(mockPool, logger)
}

func TestPgQueueRepository_Claim(t *testing.T) {
	itemID := uuid.New()

	t.Run("PendingRowClaimed", func(t *testing.T) {
		mockPool, repo := newQueueRepoTest(t)

		rows := mockPool.NewRows([]string{"payload", "attempts"}).
			AddRow([]byte(`{"entry":[]}`), 3)
		mockPool.ExpectQuery(`UPDATE webhook_queue`).
			WithArgs(domain.QueueStatusProcessing, "consumer-1", pgxmock.AnyArg(), itemID, domain.QueueStatusPending).
			WillReturnRows(rows)

		claimed, err := repo.Claim(context.Background(), itemID, "consumer-1")
		require.NoError(t, err)
		assert.Equal(t, itemID, claimed.ID)
		assert.Equal(t, 3, claimed.Attempts)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("AlreadyClaimedRowIsLost", func(t *testing.T) {
		mockPool, repo := newQueueRepoTest(t)

		mockPool.ExpectQuery(`UPDATE webhook_queue`).
			WithArgs(domain.QueueStatusProcessing, "consumer-2", pgxmock.AnyArg(), itemID, domain.QueueStatusPending).
			WillReturnError(pgx.ErrNoRows)

		claimed, err := repo.Claim(context.Background(), itemID, "consumer-2")
		assert.ErrorIs(t, err, domain.ErrClaimLost)
		assert.Nil(t, claimed)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

// Every writeback has to land on a row this instance still holds in
// processing. The UPDATEs carry the status guard, so a row another mover
// already transitioned affects nothing and the caller sees ErrNotFound.
func TestPgQueueRepository_WritebacksGuardProcessingStatus(t *testing.T) {
	itemID := uuid.New()

	t.Run("MarkProcessed", func(t *testing.T) {
		mockPool, repo := newQueueRepoTest(t)

		mockPool.ExpectExec(`UPDATE webhook_queue`).
			WithArgs(domain.QueueStatusProcessed, pgxmock.AnyArg(), "consumer-1", itemID, domain.QueueStatusProcessing).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.MarkProcessed(context.Background(), itemID, "consumer-1"))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("MarkProcessed_RowNoLongerProcessing", func(t *testing.T) {
		mockPool, repo := newQueueRepoTest(t)

		mockPool.ExpectExec(`UPDATE webhook_queue`).
			WithArgs(domain.QueueStatusProcessed, pgxmock.AnyArg(), "consumer-1", itemID, domain.QueueStatusProcessing).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.MarkProcessed(context.Background(), itemID, "consumer-1")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("MarkRetry", func(t *testing.T) {
		mockPool, repo := newQueueRepoTest(t)

		mockPool.ExpectExec(`UPDATE webhook_queue`).
			WithArgs(domain.QueueStatusPending, "transient failure", pgxmock.AnyArg(), itemID, domain.QueueStatusProcessing).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.MarkRetry(context.Background(), itemID, "transient failure"))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("MarkError", func(t *testing.T) {
		mockPool, repo := newQueueRepoTest(t)

		mockPool.ExpectExec(`UPDATE webhook_queue`).
			WithArgs(domain.QueueStatusError, "attempts exhausted", pgxmock.AnyArg(), itemID, domain.QueueStatusProcessing).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.MarkError(context.Background(), itemID, "attempts exhausted"))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("MarkError_TerminalRowUntouched", func(t *testing.T) {
		mockPool, repo := newQueueRepoTest(t)

		mockPool.ExpectExec(`UPDATE webhook_queue`).
			WithArgs(domain.QueueStatusError, "attempts exhausted", pgxmock.AnyArg(), itemID, domain.QueueStatusProcessing).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.MarkError(context.Background(), itemID, "attempts exhausted")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestGuardTransition(t *testing.T) {
	assert.NoError(t, guardTransition(domain.QueueStatusProcessing, domain.QueueStatusProcessed))
	assert.NoError(t, guardTransition(domain.QueueStatusProcessing, domain.QueueStatusPending))
	assert.NoError(t, guardTransition(domain.QueueStatusProcessing, domain.QueueStatusError))

	err := guardTransition(domain.QueueStatusProcessed, domain.QueueStatusPending)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "illegal queue status transition")
}

func TestPgQueueRepository_Enqueue(t *testing.T) {
	mockPool, repo := newQueueRepoTest(t)

	mockPool.ExpectExec(`INSERT INTO webhook_queue`).
		WithArgs(pgxmock.AnyArg(), domain.QueueStatusPending, []byte(`{"entry":[]}`), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, err := repo.Enqueue(context.Background(), []byte(`{"entry":[]}`))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPgQueueRepository_PendingPage(t *testing.T) {
	mockPool, repo := newQueueRepoTest(t)

	first, second := uuid.New(), uuid.New()
	rows := mockPool.NewRows([]string{"id"}).AddRow(first).AddRow(second)
	mockPool.ExpectQuery(`SELECT id FROM webhook_queue`).
		WithArgs(domain.QueueStatusPending, 10).
		WillReturnRows(rows)

	ids, err := repo.PendingPage(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{first, second}, ids)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
