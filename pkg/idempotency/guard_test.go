package idempotency

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/tipledger-backend/pkg/db/models"
)

const processedEventsDDL = `CREATE TABLE processed_events (
	id TEXT PRIMARY KEY,
	event_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	payload BLOB,
	processed_at DATETIME,
	CONSTRAINT processed_events_event_id_key UNIQUE (event_id)
)`

func newGuard(t *testing.T) (*Guard, *gorm.DB) {
	t.Helper()
	dsn := "file:guard_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, conn.Exec(processedEventsDDL).Error)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	guard, err := NewGuard(conn)
	require.NoError(t, err)
	return guard, conn
}

func TestGuardMarksOnce(t *testing.T) {
	ctx := context.Background()
	guard, conn := newGuard(t)
	eventID := uuid.NewString()

	processed, err := guard.IsProcessed(ctx, eventID)
	require.NoError(t, err)
	assert.False(t, processed)

	recorded, err := guard.MarkProcessed(ctx, eventID, "TIP_CONFIRMED", json.RawMessage(`{"eventId":"x"}`))
	require.NoError(t, err)
	assert.True(t, recorded)

	processed, err = guard.IsProcessed(ctx, eventID)
	require.NoError(t, err)
	assert.True(t, processed)

	recorded, err = guard.MarkProcessed(ctx, eventID, "TIP_CONFIRMED", nil)
	require.NoError(t, err)
	assert.False(t, recorded, "second mark must report the existing row")

	var count int64
	require.NoError(t, conn.Table("processed_events").Where("event_id = ?", eventID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestGuardConcurrentMarksRecordOneRow(t *testing.T) {
	ctx := context.Background()
	guard, conn := newGuard(t)
	eventID := uuid.NewString()

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			recorded, err := guard.MarkProcessed(ctx, eventID, "TIP_REVERSED", nil)
			assert.NoError(t, err)
			if recorded {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	var count int64
	require.NoError(t, conn.Table("processed_events").Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestGuardRequiresEventID(t *testing.T) {
	guard, _ := newGuard(t)
	_, err := guard.IsProcessed(context.Background(), " ")
	require.Error(t, err)
	_, err = guard.MarkProcessed(context.Background(), "", "TIP_CONFIRMED", nil)
	require.Error(t, err)

	_, err = NewGuard(nil)
	require.Error(t, err)
}

func TestGuardPurgeBefore(t *testing.T) {
	ctx := context.Background()
	guard, conn := newGuard(t)
	now := time.Now().UTC()

	rows := []models.ProcessedEvent{
		{EventID: "old-1", EventType: "TIP_CONFIRMED", ProcessedAt: now.Add(-40 * 24 * time.Hour)},
		{EventID: "old-2", EventType: "TIP_REVERSED", ProcessedAt: now.Add(-31 * 24 * time.Hour)},
		{EventID: "fresh", EventType: "TIP_CONFIRMED", ProcessedAt: now.Add(-time.Hour)},
	}
	require.NoError(t, conn.Create(&rows).Error)

	deleted, err := guard.PurgeBefore(ctx, now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	processed, err := guard.IsProcessed(ctx, "fresh")
	require.NoError(t, err)
	assert.True(t, processed)

	_, err = guard.PurgeBefore(ctx, time.Time{})
	require.Error(t, err)
}
