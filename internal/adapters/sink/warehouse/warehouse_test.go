package warehouse

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketpulse/internal/domain/models"
)

func newMock(t *testing.T) (*Adapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewWithDB(db, "snapshots"), mock
}

func sampleBatch(observedAt time.Time) models.Batch {
	return models.Batch{
		{Source: "binance", EntityKey: "BTCUSDT", ObservedAt: observedAt,
			Measures: map[string]float64{"close": 50000}},
		{Source: "binance", EntityKey: "ETHUSDT", ObservedAt: observedAt,
			Measures: map[string]float64{"close": 3000}},
	}
}

func TestUpsertSnapshotsOneTransaction(t *testing.T) {
	a, mock := newMock(t)
	observedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(`(?s)INSERT INTO snapshots.+ON CONFLICT \(source, entity_key, observed_at\)`)
	prep.ExpectExec().
		WithArgs("binance", "BTCUSDT", observedAt, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().
		WithArgs("binance", "ETHUSDT", observedAt, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	written, err := a.UpsertSnapshots(context.Background(), sampleBatch(observedAt))
	require.NoError(t, err)
	assert.Equal(t, 2, written)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSnapshotsRollsBackOnError(t *testing.T) {
	a, mock := newMock(t)
	observedAt := time.Now()

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO snapshots")
	prep.ExpectExec().WillReturnError(errors.New("constraint violated"))
	mock.ExpectRollback()

	_, err := a.UpsertSnapshots(context.Background(), sampleBatch(observedAt))
	require.Error(t, err)

	var sinkErr *models.SinkError
	require.ErrorAs(t, err, &sinkErr)
	assert.Equal(t, models.SinkConstraint, sinkErr.Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSnapshotsEmptyBatchSkipsDB(t *testing.T) {
	a, mock := newMock(t)

	written, err := a.UpsertSnapshots(context.Background(), models.Batch{})
	require.NoError(t, err)
	assert.Zero(t, written)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetHistory(t *testing.T) {
	a, mock := newMock(t)
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	newer := from.Add(2 * time.Hour)

	rows := sqlmock.NewRows([]string{"source", "entity_key", "observed_at", "measures"}).
		AddRow("binance", "BTCUSDT", newer, []byte(`{"close": 50100}`)).
		AddRow("binance", "BTCUSDT", from, []byte(`{"close": 50000}`))

	mock.ExpectQuery("SELECT source, entity_key, observed_at, measures").
		WithArgs("binance", "BTCUSDT", from, to).
		WillReturnRows(rows)

	snaps, err := a.GetHistory(context.Background(), "binance", "BTCUSDT", from, to, 0)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, newer, snaps[0].ObservedAt)
	assert.InDelta(t, 50100.0, snaps[0].Measures["close"], 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRollupCandlesCoversEveryTimeframe(t *testing.T) {
	a, mock := newMock(t)

	for _, tf := range rollupTimeframes {
		mock.ExpectExec(`(?s)INSERT INTO candles.+FROM snapshots.+ON CONFLICT \(source, entity_key, timeframe, bucket\)`).
			WithArgs(tf.name, tf.seconds, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 5))
	}

	require.NoError(t, a.RollupCandles(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRollupCandlesStopsOnError(t *testing.T) {
	a, mock := newMock(t)

	mock.ExpectExec(`(?s)INSERT INTO candles`).
		WithArgs("1m", int64(60), sqlmock.AnyArg()).
		WillReturnError(errors.New("relation missing"))

	err := a.RollupCandles(context.Background())
	require.Error(t, err)

	var sinkErr *models.SinkError
	require.ErrorAs(t, err, &sinkErr)
	assert.Equal(t, models.SinkConstraint, sinkErr.Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetHistoryAppliesLimit(t *testing.T) {
	a, mock := newMock(t)
	from := time.Now().Add(-time.Hour)
	to := time.Now()

	mock.ExpectQuery(`(?s)SELECT source, entity_key, observed_at, measures.+LIMIT \$5`).
		WithArgs("binance", "BTCUSDT", from, to, 10).
		WillReturnRows(sqlmock.NewRows([]string{"source", "entity_key", "observed_at", "measures"}))

	snaps, err := a.GetHistory(context.Background(), "binance", "BTCUSDT", from, to, 10)
	require.NoError(t, err)
	assert.Empty(t, snaps)
	assert.NoError(t, mock.ExpectationsWereMet())
}
