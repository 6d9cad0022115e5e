package syncqueue

import (
	"errors"
	"path/filepath"
	"testing"

	"restoran-pos-terminal/internal/database"
	"restoran-pos-terminal/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "pos.db"))
	require.NoError(t, err)
	return db
}

func liveEntries(t *testing.T, db *gorm.DB, table, record string) []models.SyncQueueEntry {
	t.Helper()
	var entries []models.SyncQueueEntry
	require.NoError(t, db.Where("table_name = ? AND record_id = ? AND status IN ?",
		table, record,
		[]models.SyncEntryStatus{models.SyncEntryPending, models.SyncEntryDeferred}).
		Find(&entries).Error)
	return entries
}

func TestEntryTableColumnMapping(t *testing.T) {
	db := testDB(t)

	require.Equal(t, "sync_queue", models.SyncQueueEntry{}.TableName())

	require.NoError(t, Enqueue(db, models.TableOrders, "local-1", models.SyncOpUpsert))

	// Table alanı table_name kolonuna yazılır; ham sorgu ve struct okuması
	// aynı satırı görmeli
	var entry models.SyncQueueEntry
	require.NoError(t, db.Where("table_name = ?", models.TableOrders).First(&entry).Error)
	require.Equal(t, models.TableOrders, entry.Table)
}

func TestEnqueueDedupesLiveEntries(t *testing.T) {
	db := testDB(t)

	require.NoError(t, Enqueue(db, models.TableOrders, "local-1", models.SyncOpUpsert))
	require.NoError(t, Enqueue(db, models.TableOrders, "local-1", models.SyncOpUpsert))
	require.NoError(t, Enqueue(db, models.TableOrders, "local-1", models.SyncOpUpsert))

	entries := liveEntries(t, db, models.TableOrders, "local-1")
	require.Len(t, entries, 1)
	require.Equal(t, models.SyncEntryPending, entries[0].Status)
}

func TestEnqueueKeepsDeferredStatus(t *testing.T) {
	db := testDB(t)

	require.NoError(t, EnqueueDeferred(db, models.TableOrderPayments, "pay-1", models.SyncOpUpsert))
	// Kayıt tekrar değişti; girdi tazelenir ama deferred bozulmaz
	require.NoError(t, Enqueue(db, models.TableOrderPayments, "pay-1", models.SyncOpUpsert))

	entries := liveEntries(t, db, models.TableOrderPayments, "pay-1")
	require.Len(t, entries, 1)
	require.Equal(t, models.SyncEntryDeferred, entries[0].Status)
}

func TestEnqueueAfterSyncedCreatesNewEntry(t *testing.T) {
	db := testDB(t)

	require.NoError(t, Enqueue(db, models.TableOrders, "local-1", models.SyncOpUpsert))
	entries := liveEntries(t, db, models.TableOrders, "local-1")
	require.Len(t, entries, 1)
	require.NoError(t, MarkSynced(db, &entries[0]))

	require.NoError(t, Enqueue(db, models.TableOrders, "local-1", models.SyncOpUpsert))

	var total int64
	require.NoError(t, db.Model(&models.SyncQueueEntry{}).
		Where("table_name = ? AND record_id = ?", models.TableOrders, "local-1").
		Count(&total).Error)
	require.EqualValues(t, 2, total)
	require.Len(t, liveEntries(t, db, models.TableOrders, "local-1"), 1)
}

func TestPendingReturnsOldestFirst(t *testing.T) {
	db := testDB(t)

	require.NoError(t, Enqueue(db, models.TableOrders, "a", models.SyncOpUpsert))
	require.NoError(t, Enqueue(db, models.TableOrders, "b", models.SyncOpUpsert))
	require.NoError(t, EnqueueDeferred(db, models.TableOrderPayments, "c", models.SyncOpUpsert))

	entries, err := Pending(db)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "a", entries[0].RecordID)
	require.Equal(t, "b", entries[1].RecordID)
}

func TestPromoteFlipsDeferredToPending(t *testing.T) {
	db := testDB(t)

	require.NoError(t, EnqueueDeferred(db, models.TableOrderPayments, "pay-1", models.SyncOpUpsert))
	require.NoError(t, EnqueueDeferred(db, models.TableOrderPayments, "pay-2", models.SyncOpUpsert))

	n, err := Promote(db, models.TableOrderPayments, []string{"pay-1", "pay-2", "pay-yok"})
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	entries, err := Pending(db)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestMarkFailedUnlimitedRetriesStayPending(t *testing.T) {
	db := testDB(t)

	require.NoError(t, Enqueue(db, models.TableOrders, "local-1", models.SyncOpUpsert))
	entries, err := Pending(db)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	for i := 0; i < 5; i++ {
		require.NoError(t, MarkFailed(db, &entries[0], errors.New("uzak sistem kapalı"), 0))
	}
	require.Equal(t, models.SyncEntryPending, entries[0].Status)
	require.Equal(t, 5, entries[0].Attempts)
}

func TestMarkFailedThresholdAndRequeue(t *testing.T) {
	db := testDB(t)

	require.NoError(t, Enqueue(db, models.TableOrders, "local-1", models.SyncOpUpsert))
	entries, err := Pending(db)
	require.NoError(t, err)

	require.NoError(t, MarkFailed(db, &entries[0], errors.New("zaman aşımı"), 2))
	require.Equal(t, models.SyncEntryPending, entries[0].Status)
	require.NoError(t, MarkFailed(db, &entries[0], errors.New("zaman aşımı"), 2))
	require.Equal(t, models.SyncEntryFailed, entries[0].Status)

	pending, err := Pending(db)
	require.NoError(t, err)
	require.Empty(t, pending)

	n, err := RequeueFailed(db)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	pending, err = Pending(db)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, 0, pending[0].Attempts)
}
