package syncengine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"restoran-pos-terminal/internal/config"
	"restoran-pos-terminal/internal/database"
	"restoran-pos-terminal/internal/models"
	"restoran-pos-terminal/internal/syncqueue"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeRemote: her upsert denemesini kaydeder, başarısız dönenler dahil;
// failFor ile belirli LocalID'ler için hata simüle edilir.
type fakeRemote struct {
	mu      sync.Mutex
	calls   []UpsertRequest
	failFor map[string]error
	failAll error
	nextID  int
}

func (f *fakeRemote) Upsert(_ context.Context, req UpsertRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.failAll != nil {
		return "", f.failAll
	}
	if err, ok := f.failFor[req.LocalID]; ok {
		return "", err
	}
	f.nextID++
	return fmt.Sprintf("r-%d", f.nextID), nil
}

func (f *fakeRemote) callEntities() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.Entity)
	}
	return out
}

func testEngine(t *testing.T, remote RemoteClient, maxAttempts int) (*Engine, *gorm.DB) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "pos.db"))
	require.NoError(t, err)

	lg := logrus.New()
	lg.SetOutput(io.Discard)

	cfg := &config.Config{
		SyncTimeout:     5 * time.Second,
		SyncMaxAttempts: maxAttempts,
	}
	return New(db, remote, lg, cfg), db
}

func seedOrder(t *testing.T, db *gorm.DB) *models.Order {
	t.Helper()
	ord := &models.Order{
		LocalID:       uuid.NewString(),
		BranchID:      1,
		TerminalID:    "terminal-1",
		Type:          models.OrderTypeDineIn,
		Status:        models.OrderStatusPending,
		StaffShiftID:  1,
		Subtotal:      5000,
		Total:         5000,
		PaymentStatus: models.PaymentStatusPending,
		SyncStatus:    models.SyncStatusPending,
	}
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(ord).Error; err != nil {
			return err
		}
		return syncqueue.Enqueue(tx, models.TableOrders, ord.LocalID, models.SyncOpUpsert)
	}))
	return ord
}

func seedWaitingPayment(t *testing.T, db *gorm.DB, ord *models.Order, amount int64) *models.Payment {
	t.Helper()
	payment := &models.Payment{
		LocalID:        uuid.NewString(),
		OrderID:        ord.ID,
		Amount:         amount,
		Method:         models.PaymentMethodCash,
		StaffShiftID:   1,
		IdempotencyKey: uuid.NewString(),
		SyncState:      models.SyncStateWaitingParent,
		SyncStatus:     models.SyncStatusPending,
	}
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(payment).Error; err != nil {
			return err
		}
		return syncqueue.EnqueueDeferred(tx, models.TableOrderPayments, payment.LocalID, models.SyncOpUpsert)
	}))
	return payment
}

func TestSyncForceDrainsParentThenChildInOneCall(t *testing.T) {
	remote := &fakeRemote{}
	engine, db := testEngine(t, remote, 0)

	ord := seedOrder(t, db)
	seedWaitingPayment(t, db, ord, 5000)

	synced, err := engine.SyncForce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, synced)

	// Üst kayıt çocuğundan önce gönderilmiş olmalı
	require.Equal(t, []string{models.TableOrders, models.TableOrderPayments}, remote.callEntities())

	var gotOrder models.Order
	require.NoError(t, db.First(&gotOrder, ord.ID).Error)
	require.NotNil(t, gotOrder.RemoteID)
	require.Equal(t, models.SyncStatusSynced, gotOrder.SyncStatus)

	var gotPayment models.Payment
	require.NoError(t, db.Where("order_id = ?", ord.ID).First(&gotPayment).Error)
	require.Equal(t, models.SyncStateApplied, gotPayment.SyncState)
	require.NotNil(t, gotPayment.RemoteID)

	// İkinci çağrı no-op
	synced, err = engine.SyncForce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, synced)
}

func TestAdjustmentChainSyncsInOneCall(t *testing.T) {
	remote := &fakeRemote{}
	engine, db := testEngine(t, remote, 0)

	ord := seedOrder(t, db)
	payment := seedWaitingPayment(t, db, ord, 5000)

	adj := &models.PaymentAdjustment{
		LocalID:        uuid.NewString(),
		PaymentID:      payment.ID,
		Type:           models.AdjustmentTypeRefund,
		Amount:         1000,
		IdempotencyKey: uuid.NewString(),
		SyncState:      models.SyncStateWaitingParent,
		SyncStatus:     models.SyncStatusPending,
	}
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(adj).Error; err != nil {
			return err
		}
		return syncqueue.EnqueueDeferred(tx, models.TablePaymentAdjustments, adj.LocalID, models.SyncOpUpsert)
	}))

	synced, err := engine.SyncForce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, synced)
	require.Equal(t, []string{
		models.TableOrders,
		models.TableOrderPayments,
		models.TablePaymentAdjustments,
	}, remote.callEntities())
}

func TestRemoteIDNeverOverwritten(t *testing.T) {
	remote := &fakeRemote{}
	engine, db := testEngine(t, remote, 0)

	ord := seedOrder(t, db)
	existing := "remote-ilk"
	require.NoError(t, db.Model(&models.Order{}).Where("id = ?", ord.ID).
		Update("remote_id", existing).Error)

	synced, err := engine.SyncForce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, synced)

	var got models.Order
	require.NoError(t, db.First(&got, ord.ID).Error)
	require.NotNil(t, got.RemoteID)
	require.Equal(t, existing, *got.RemoteID)
}

func TestFailedEntryDoesNotBlockBatch(t *testing.T) {
	remote := &fakeRemote{failFor: map[string]error{}}
	engine, db := testEngine(t, remote, 0)

	ordA := seedOrder(t, db)
	ordB := seedOrder(t, db)
	remote.failFor[ordA.LocalID] = errors.New("uzak sistem 500 döndü")

	synced, err := engine.SyncForce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, synced)

	var entry models.SyncQueueEntry
	require.NoError(t, db.Where("record_id = ?", ordA.LocalID).First(&entry).Error)
	require.Equal(t, models.SyncEntryPending, entry.Status)
	require.GreaterOrEqual(t, entry.Attempts, 1)
	require.Contains(t, entry.LastError, "500")

	var okOrder models.Order
	require.NoError(t, db.First(&okOrder, ordB.ID).Error)
	require.Equal(t, models.SyncStatusSynced, okOrder.SyncStatus)
}

func TestMaxAttemptsMovesToFailedUntilRequeued(t *testing.T) {
	remote := &fakeRemote{failAll: errors.New("bağlantı reddedildi")}
	engine, db := testEngine(t, remote, 1)

	ord := seedOrder(t, db)

	synced, err := engine.SyncForce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, synced)

	var entry models.SyncQueueEntry
	require.NoError(t, db.Where("record_id = ?", ord.LocalID).First(&entry).Error)
	require.Equal(t, models.SyncEntryFailed, entry.Status)

	// Operatör müdahalesi sonrası düzelen bağlantıyla senkron tamamlanır
	remote.failAll = nil
	n, err := syncqueue.RequeueFailed(db)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	synced, err = engine.SyncForce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, synced)
}

func TestPaymentSyncStateFollowsFailedEntry(t *testing.T) {
	remote := &fakeRemote{failAll: errors.New("bağlantı reddedildi")}
	engine, db := testEngine(t, remote, 1)

	ord := seedOrder(t, db)
	require.NoError(t, db.Model(&models.Order{}).Where("id = ?", ord.ID).
		Update("remote_id", "r-order").Error)
	var orderEntry models.SyncQueueEntry
	require.NoError(t, db.Where("record_id = ?", ord.LocalID).First(&orderEntry).Error)
	require.NoError(t, syncqueue.MarkSynced(db, &orderEntry))

	payment := seedWaitingPayment(t, db, ord, 5000)
	require.NoError(t, db.Model(&models.Payment{}).Where("id = ?", payment.ID).
		Update("sync_state", models.SyncStatePending).Error)
	_, err := syncqueue.Promote(db, models.TableOrderPayments, []string{payment.LocalID})
	require.NoError(t, err)

	// Eşik 1: ilk hata girdiyi failed'a, ödemeyi failed durumuna düşürür
	synced, err := engine.SyncForce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, synced)

	var got models.Payment
	require.NoError(t, db.First(&got, payment.ID).Error)
	require.Equal(t, models.SyncStateFailed, got.SyncState)

	// Operatör requeue eder, bağlantı düzelir; ödeme applied'a döner
	remote.failAll = nil
	_, err = syncqueue.RequeueFailed(db)
	require.NoError(t, err)

	synced, err = engine.SyncForce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, synced)

	require.NoError(t, db.First(&got, payment.ID).Error)
	require.Equal(t, models.SyncStateApplied, got.SyncState)
}

func TestSyncForceIgnoredWhileDraining(t *testing.T) {
	remote := &fakeRemote{}
	engine, db := testEngine(t, remote, 0)
	seedOrder(t, db)

	engine.draining.Store(true)
	synced, err := engine.SyncForce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, synced)

	engine.draining.Store(false)
	synced, err = engine.SyncForce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, synced)
}

func TestQueueSurvivesRestart(t *testing.T) {
	remote := &fakeRemote{failAll: errors.New("çevrimdışı")}
	engine, db := testEngine(t, remote, 0)

	ord := seedOrder(t, db)
	synced, err := engine.SyncForce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, synced)

	// Süreç yeniden başladı: aynı veritabanı, yeni motor, bağlantı geldi
	lg := logrus.New()
	lg.SetOutput(io.Discard)
	fresh := New(db, &fakeRemote{}, lg, &config.Config{SyncTimeout: 5 * time.Second})

	synced, err = fresh.SyncForce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, synced)

	var got models.Order
	require.NoError(t, db.First(&got, ord.ID).Error)
	require.NotNil(t, got.RemoteID)
}

func TestOrphanQueueEntryClosed(t *testing.T) {
	remote := &fakeRemote{}
	engine, db := testEngine(t, remote, 0)

	require.NoError(t, syncqueue.Enqueue(db, models.TableOrders, "hic-yok", models.SyncOpUpsert))

	synced, err := engine.SyncForce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, synced)

	var entry models.SyncQueueEntry
	require.NoError(t, db.Where("record_id = ?", "hic-yok").First(&entry).Error)
	require.Equal(t, models.SyncEntrySynced, entry.Status)
	require.Empty(t, remote.callEntities())
}

func TestIdempotencyKeyStableAcrossRetries(t *testing.T) {
	remote := &fakeRemote{failAll: errors.New("zaman aşımı")}
	engine, db := testEngine(t, remote, 0)

	ord := seedOrder(t, db)
	require.NoError(t, db.Model(&models.Order{}).Where("id = ?", ord.ID).
		Update("remote_id", "r-order").Error)
	var entry models.SyncQueueEntry
	require.NoError(t, db.Where("record_id = ?", ord.LocalID).First(&entry).Error)
	require.NoError(t, syncqueue.MarkSynced(db, &entry))

	payment := seedWaitingPayment(t, db, ord, 5000)
	require.NoError(t, db.Model(&models.Payment{}).Where("id = ?", payment.ID).
		Update("sync_state", models.SyncStatePending).Error)
	_, err := syncqueue.Promote(db, models.TableOrderPayments, []string{payment.LocalID})
	require.NoError(t, err)

	_, err = engine.SyncForce(context.Background())
	require.NoError(t, err)

	remote.failAll = nil
	_, err = engine.SyncForce(context.Background())
	require.NoError(t, err)

	// Başarısız deneme ve tekrar aynı anahtarla gitmiş olmalı
	require.GreaterOrEqual(t, len(remote.calls), 2)
	for _, call := range remote.calls {
		require.Equal(t, payment.IdempotencyKey, call.IdempotencyKey)
	}
}
