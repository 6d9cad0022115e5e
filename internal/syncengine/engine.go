package syncengine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"restoran-pos-terminal/internal/config"
	"restoran-pos-terminal/internal/models"
	"restoran-pos-terminal/internal/syncqueue"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Engine: outbox'ı uzak uca boşaltır. Tek süreç genelinde aynı anda tek
// drain çalışır; drain sürerken gelen ikinci tetik kuyruklanmaz, 0 ile döner.
type Engine struct {
	db     *gorm.DB
	remote RemoteClient
	lg     *logrus.Logger
	cfg    *config.Config

	draining atomic.Bool
}

func New(db *gorm.DB, remote RemoteClient, lg *logrus.Logger, cfg *config.Config) *Engine {
	return &Engine{db: db, remote: remote, lg: lg, cfg: cfg}
}

// SyncForce: bekleyen girdileri en eskiden yeniye dener ve senkronlanan
// adedi döndürür. Kuyruk boşken çağrılması tanımlı bir no-op'tur (0 döner).
// Tek bir girdinin hatası batch'i durdurmaz; girdi pending kalır ve bir
// sonraki geçişte tekrar denenir.
//
// Drain, ilerleme olduğu sürece geçiş tekrarlar: üst kaydın senkronuyla
// terfi eden çocuklar aynı çağrı içinde gönderilir. İlerlemeyen geçiş
// (hepsi hatalı ya da ertelenmiş) döngüyü bitirir.
func (e *Engine) SyncForce(ctx context.Context) (int, error) {
	if !e.draining.CompareAndSwap(false, true) {
		e.lg.Debug("sync zaten çalışıyor, tetik yok sayıldı")
		return 0, nil
	}
	defer e.draining.Store(false)

	total := 0
	for {
		n, err := e.drainOnce(ctx)
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 || ctx.Err() != nil {
			break
		}
	}

	if total > 0 {
		e.lg.Infof("sync tamamlandı: %d kayıt gönderildi", total)
	}
	return total, nil
}

func (e *Engine) drainOnce(ctx context.Context) (int, error) {
	entries, err := syncqueue.Pending(e.db)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	synced := 0
	for i := range entries {
		// Uygulama kapanıyorsa kalan girdiler pending olarak durur;
		// pending kalıcı olduğu için yarım kalan drain güvenlidir
		if ctx.Err() != nil {
			break
		}

		ok, err := e.processEntry(ctx, &entries[i])
		if err != nil {
			e.lg.WithFields(logrus.Fields{
				"table":  entries[i].Table,
				"record": entries[i].RecordID,
			}).Warnf("sync girdisi başarısız: %v", err)
			if mErr := syncqueue.MarkFailed(e.db, &entries[i], err, e.cfg.SyncMaxAttempts); mErr != nil {
				e.lg.Errorf("sync hata durumu yazılamadı: %v", mErr)
			}
			if entries[i].Status == models.SyncEntryFailed {
				e.markRecordFailed(&entries[i])
			}
			continue
		}
		if ok {
			synced++
		}
	}

	return synced, nil
}

// markRecordFailed: kuyruk girdisi eşiği aşıp failed'a düştüğünde ödeme
// ve düzeltme satırının sync_state alanı da failed gösterir; operatör
// requeue edince bir sonraki başarılı gönderim applied'a çeker.
func (e *Engine) markRecordFailed(entry *models.SyncQueueEntry) {
	var res *gorm.DB
	switch entry.Table {
	case models.TableOrderPayments:
		res = e.db.Model(&models.Payment{}).
			Where("local_id = ?", entry.RecordID).
			Update("sync_state", models.SyncStateFailed)
	case models.TablePaymentAdjustments:
		res = e.db.Model(&models.PaymentAdjustment{}).
			Where("local_id = ?", entry.RecordID).
			Update("sync_state", models.SyncStateFailed)
	default:
		return
	}
	if res.Error != nil {
		e.lg.Errorf("sync_state güncellenemedi: %v", res.Error)
	}
}

// processEntry: tek girdiyi dener. (false, nil) = ertelendi ya da kayıt yok,
// (true, nil) = senkronlandı, err = uzak/yerel hata (girdi retry'a kalır).
func (e *Engine) processEntry(ctx context.Context, entry *models.SyncQueueEntry) (bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.SyncTimeout)
	defer cancel()

	switch entry.Table {
	case models.TableOrders:
		return e.syncOrder(callCtx, entry)
	case models.TableOrderPayments:
		return e.syncPayment(callCtx, entry)
	case models.TablePaymentAdjustments:
		return e.syncAdjustment(callCtx, entry)
	case models.TableStaffShifts:
		return e.syncShift(callCtx, entry)
	case models.TableExpenses:
		return e.syncExpense(callCtx, entry)
	case models.TableStaffPayments:
		return e.syncStaffPayment(callCtx, entry)
	case models.TableZReports:
		return e.syncZReport(callCtx, entry)
	default:
		// Tanınmayan tablo bir programlama hatasıdır; girdiyi failed'a
		// düşürmek yerine loglayıp kapatmıyoruz ki veri kaybolmasın
		return false, fmt.Errorf("bilinmeyen sync tablosu: %s", entry.Table)
	}
}

func (e *Engine) syncOrder(ctx context.Context, entry *models.SyncQueueEntry) (bool, error) {
	var order models.Order
	if err := e.db.Preload("Items").Where("local_id = ?", entry.RecordID).First(&order).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return e.closeOrphanEntry(entry)
		}
		return false, fmt.Errorf("sipariş okunamadı: %w", err)
	}

	items := make([]map[string]interface{}, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, map[string]interface{}{
			"name":       it.Name,
			"quantity":   it.Quantity,
			"unit_price": it.UnitPrice,
			"note":       it.Note,
		})
	}

	remoteID, err := e.remote.Upsert(ctx, UpsertRequest{
		Entity:         models.TableOrders,
		LocalID:        order.LocalID,
		IdempotencyKey: order.LocalID,
		Operation:      string(entry.Operation),
		Payload: map[string]interface{}{
			"branch_id":      order.BranchID,
			"terminal_id":    order.TerminalID,
			"type":           order.Type,
			"status":         order.Status,
			"subtotal":       order.Subtotal,
			"tax":            order.Tax,
			"discount":       order.Discount,
			"delivery_fee":   order.DeliveryFee,
			"tip":            order.Tip,
			"total":          order.Total,
			"payment_status": order.PaymentStatus,
			"items":          items,
			"created_at":     order.CreatedAt.UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return false, err
	}

	err = e.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{"sync_status": models.SyncStatusSynced}
		// RemoteID bir kez yazılır, sonraki senkronlarda asla üzerine yazılmaz
		if order.RemoteID == nil {
			updates["remote_id"] = remoteID
		}
		if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).Updates(updates).Error; err != nil {
			return err
		}
		if err := syncqueue.MarkSynced(tx, entry); err != nil {
			return err
		}
		return e.promotePayments(tx, order.ID)
	})
	if err != nil {
		return false, fmt.Errorf("sipariş sync sonucu yazılamadı: %w", err)
	}
	return true, nil
}

// promotePayments: siparişin RemoteID'si geldi; waiting_parent bekleyen
// ödemeler pending'e döner ve bir sonraki geçişte gönderilir.
func (e *Engine) promotePayments(tx *gorm.DB, orderID uint) error {
	var payments []models.Payment
	if err := tx.Where("order_id = ?", orderID).Find(&payments).Error; err != nil {
		return err
	}
	ids := make([]string, 0, len(payments))
	for _, p := range payments {
		ids = append(ids, p.LocalID)
	}
	promoted, err := syncqueue.Promote(tx, models.TableOrderPayments, ids)
	if err != nil {
		return err
	}
	if promoted > 0 {
		if err := tx.Model(&models.Payment{}).
			Where("order_id = ? AND sync_state = ?", orderID, models.SyncStateWaitingParent).
			Update("sync_state", models.SyncStatePending).Error; err != nil {
			return err
		}
		e.lg.Infof("%d ödeme, siparişin senkronuyla kuyruğa terfi etti", promoted)
	}
	return nil
}

func (e *Engine) syncPayment(ctx context.Context, entry *models.SyncQueueEntry) (bool, error) {
	var payment models.Payment
	if err := e.db.Preload("Order").Where("local_id = ?", entry.RecordID).First(&payment).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return e.closeOrphanEntry(entry)
		}
		return false, fmt.Errorf("ödeme okunamadı: %w", err)
	}

	// Üst sipariş henüz uzak kimlik almadıysa bu girdi ertelenir; drain
	// takılı bir üst kayıt yüzünden durmaz, sıradaki girdiye geçer
	if payment.Order.RemoteID == nil {
		if err := e.db.Transaction(func(tx *gorm.DB) error {
			if payment.SyncState != models.SyncStateWaitingParent {
				if err := tx.Model(&models.Payment{}).Where("id = ?", payment.ID).
					Update("sync_state", models.SyncStateWaitingParent).Error; err != nil {
					return err
				}
			}
			return syncqueue.MarkDeferred(tx, entry, "üst sipariş henüz senkronlanmadı")
		}); err != nil {
			return false, err
		}
		return false, nil
	}

	remoteID, err := e.remote.Upsert(ctx, UpsertRequest{
		Entity:         models.TableOrderPayments,
		LocalID:        payment.LocalID,
		IdempotencyKey: payment.IdempotencyKey,
		Operation:      string(entry.Operation),
		Payload: map[string]interface{}{
			"order_remote_id": *payment.Order.RemoteID,
			"order_local_id":  payment.Order.LocalID,
			"amount":          payment.Amount,
			"method":          payment.Method,
			"voided":          payment.Voided,
			"created_at":      payment.CreatedAt.UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return false, err
	}

	err = e.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"sync_state":  models.SyncStateApplied,
			"sync_status": models.SyncStatusSynced,
		}
		if payment.RemoteID == nil {
			updates["remote_id"] = remoteID
		}
		if err := tx.Model(&models.Payment{}).Where("id = ?", payment.ID).Updates(updates).Error; err != nil {
			return err
		}
		if err := syncqueue.MarkSynced(tx, entry); err != nil {
			return err
		}
		return e.promoteAdjustments(tx, payment.ID)
	})
	if err != nil {
		return false, fmt.Errorf("ödeme sync sonucu yazılamadı: %w", err)
	}
	return true, nil
}

func (e *Engine) promoteAdjustments(tx *gorm.DB, paymentID uint) error {
	var adjs []models.PaymentAdjustment
	if err := tx.Where("payment_id = ?", paymentID).Find(&adjs).Error; err != nil {
		return err
	}
	ids := make([]string, 0, len(adjs))
	for _, a := range adjs {
		ids = append(ids, a.LocalID)
	}
	promoted, err := syncqueue.Promote(tx, models.TablePaymentAdjustments, ids)
	if err != nil {
		return err
	}
	if promoted > 0 {
		if err := tx.Model(&models.PaymentAdjustment{}).
			Where("payment_id = ? AND sync_state = ?", paymentID, models.SyncStateWaitingParent).
			Update("sync_state", models.SyncStatePending).Error; err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) syncAdjustment(ctx context.Context, entry *models.SyncQueueEntry) (bool, error) {
	var adj models.PaymentAdjustment
	if err := e.db.Preload("Payment").Where("local_id = ?", entry.RecordID).First(&adj).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return e.closeOrphanEntry(entry)
		}
		return false, fmt.Errorf("iade/iptal kaydı okunamadı: %w", err)
	}

	if adj.Payment.RemoteID == nil {
		if err := e.db.Transaction(func(tx *gorm.DB) error {
			if adj.SyncState != models.SyncStateWaitingParent {
				if err := tx.Model(&models.PaymentAdjustment{}).Where("id = ?", adj.ID).
					Update("sync_state", models.SyncStateWaitingParent).Error; err != nil {
					return err
				}
			}
			return syncqueue.MarkDeferred(tx, entry, "üst ödeme henüz senkronlanmadı")
		}); err != nil {
			return false, err
		}
		return false, nil
	}

	remoteID, err := e.remote.Upsert(ctx, UpsertRequest{
		Entity:         models.TablePaymentAdjustments,
		LocalID:        adj.LocalID,
		IdempotencyKey: adj.IdempotencyKey,
		Operation:      string(entry.Operation),
		Payload: map[string]interface{}{
			"payment_remote_id": *adj.Payment.RemoteID,
			"payment_local_id":  adj.Payment.LocalID,
			"type":              adj.Type,
			"amount":            adj.Amount,
			"reason":            adj.Reason,
			"created_at":        adj.CreatedAt.UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return false, err
	}

	err = e.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"sync_state":  models.SyncStateApplied,
			"sync_status": models.SyncStatusSynced,
		}
		if adj.RemoteID == nil {
			updates["remote_id"] = remoteID
		}
		if err := tx.Model(&models.PaymentAdjustment{}).Where("id = ?", adj.ID).Updates(updates).Error; err != nil {
			return err
		}
		return syncqueue.MarkSynced(tx, entry)
	})
	if err != nil {
		return false, fmt.Errorf("iade/iptal sync sonucu yazılamadı: %w", err)
	}
	return true, nil
}

func (e *Engine) syncShift(ctx context.Context, entry *models.SyncQueueEntry) (bool, error) {
	var shift models.StaffShift
	if err := e.db.Where("local_id = ?", entry.RecordID).First(&shift).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return e.closeOrphanEntry(entry)
		}
		return false, fmt.Errorf("vardiya okunamadı: %w", err)
	}

	payload := map[string]interface{}{
		"branch_id":    shift.BranchID,
		"terminal_id":  shift.TerminalID,
		"staff_id":     shift.StaffID,
		"role":         shift.Role,
		"status":       shift.Status,
		"opening_cash": shift.OpeningCash,
		"opened_at":    shift.OpenedAt.UTC().Format(time.RFC3339),
	}
	if shift.ClosingCash != nil {
		payload["closing_cash"] = *shift.ClosingCash
	}
	if shift.Variance != nil {
		payload["variance"] = *shift.Variance
	}
	if shift.ClosedAt != nil {
		payload["closed_at"] = shift.ClosedAt.UTC().Format(time.RFC3339)
	}

	remoteID, err := e.remote.Upsert(ctx, UpsertRequest{
		Entity:         models.TableStaffShifts,
		LocalID:        shift.LocalID,
		IdempotencyKey: shift.LocalID,
		Operation:      string(entry.Operation),
		Payload:        payload,
	})
	if err != nil {
		return false, err
	}

	err = e.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{"sync_status": models.SyncStatusSynced}
		if shift.RemoteID == nil {
			updates["remote_id"] = remoteID
		}
		if err := tx.Model(&models.StaffShift{}).Where("id = ?", shift.ID).Updates(updates).Error; err != nil {
			return err
		}
		return syncqueue.MarkSynced(tx, entry)
	})
	if err != nil {
		return false, fmt.Errorf("vardiya sync sonucu yazılamadı: %w", err)
	}
	return true, nil
}

func (e *Engine) syncExpense(ctx context.Context, entry *models.SyncQueueEntry) (bool, error) {
	var exp models.Expense
	if err := e.db.Where("local_id = ?", entry.RecordID).First(&exp).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return e.closeOrphanEntry(entry)
		}
		return false, fmt.Errorf("gider okunamadı: %w", err)
	}

	remoteID, err := e.remote.Upsert(ctx, UpsertRequest{
		Entity:         models.TableExpenses,
		LocalID:        exp.LocalID,
		IdempotencyKey: exp.LocalID,
		Operation:      string(entry.Operation),
		Payload: map[string]interface{}{
			"branch_id":      exp.BranchID,
			"staff_shift_id": exp.StaffShiftID,
			"type":           exp.Type,
			"amount":         exp.Amount,
			"description":    exp.Description,
			"created_at":     exp.CreatedAt.UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return false, err
	}

	err = e.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{"sync_status": models.SyncStatusSynced}
		if exp.RemoteID == nil {
			updates["remote_id"] = remoteID
		}
		if err := tx.Model(&models.Expense{}).Where("id = ?", exp.ID).Updates(updates).Error; err != nil {
			return err
		}
		return syncqueue.MarkSynced(tx, entry)
	})
	if err != nil {
		return false, fmt.Errorf("gider sync sonucu yazılamadı: %w", err)
	}
	return true, nil
}

func (e *Engine) syncStaffPayment(ctx context.Context, entry *models.SyncQueueEntry) (bool, error) {
	var sp models.StaffPayment
	if err := e.db.Where("local_id = ?", entry.RecordID).First(&sp).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return e.closeOrphanEntry(entry)
		}
		return false, fmt.Errorf("personel ödemesi okunamadı: %w", err)
	}

	remoteID, err := e.remote.Upsert(ctx, UpsertRequest{
		Entity:         models.TableStaffPayments,
		LocalID:        sp.LocalID,
		IdempotencyKey: sp.LocalID,
		Operation:      string(entry.Operation),
		Payload: map[string]interface{}{
			"branch_id":      sp.BranchID,
			"staff_shift_id": sp.StaffShiftID,
			"paid_to_id":     sp.PaidToID,
			"type":           sp.Type,
			"amount":         sp.Amount,
			"description":    sp.Description,
			"created_at":     sp.CreatedAt.UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return false, err
	}

	err = e.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{"sync_status": models.SyncStatusSynced}
		if sp.RemoteID == nil {
			updates["remote_id"] = remoteID
		}
		if err := tx.Model(&models.StaffPayment{}).Where("id = ?", sp.ID).Updates(updates).Error; err != nil {
			return err
		}
		return syncqueue.MarkSynced(tx, entry)
	})
	if err != nil {
		return false, fmt.Errorf("personel ödemesi sync sonucu yazılamadı: %w", err)
	}
	return true, nil
}

func (e *Engine) syncZReport(ctx context.Context, entry *models.SyncQueueEntry) (bool, error) {
	var report models.ZReport
	if err := e.db.Where("local_id = ?", entry.RecordID).First(&report).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return e.closeOrphanEntry(entry)
		}
		return false, fmt.Errorf("Z raporu okunamadı: %w", err)
	}

	remoteID, err := e.remote.Upsert(ctx, UpsertRequest{
		Entity:         models.TableZReports,
		LocalID:        report.LocalID,
		IdempotencyKey: report.LocalID,
		Operation:      string(entry.Operation),
		Payload: map[string]interface{}{
			"branch_id":      report.BranchID,
			"report_date":    report.ReportDate.UTC().Format("2006-01-02"),
			"gross_sales":    report.GrossSales,
			"net_sales":      report.NetSales,
			"cash_sales":     report.CashSales,
			"card_sales":     report.CardSales,
			"total_expenses": report.TotalExpenses,
			"order_count":    report.OrderCount,
			"report_data":    report.ReportData,
		},
	})
	if err != nil {
		return false, err
	}

	err = e.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{"sync_status": models.SyncStatusSynced}
		if report.RemoteID == nil {
			updates["remote_id"] = remoteID
		}
		if err := tx.Model(&models.ZReport{}).Where("id = ?", report.ID).Updates(updates).Error; err != nil {
			return err
		}
		return syncqueue.MarkSynced(tx, entry)
	})
	if err != nil {
		return false, fmt.Errorf("Z raporu sync sonucu yazılamadı: %w", err)
	}
	return true, nil
}

// closeOrphanEntry: kuyruk girdisi var ama yerel kayıt yok. Normalde
// oluşmaz (ikisi aynı transaction'da yazılır); oluşursa girdiyi loglayıp
// kapatırız, aksi halde drain sonsuza dek aynı hatayı tekrarlar.
func (e *Engine) closeOrphanEntry(entry *models.SyncQueueEntry) (bool, error) {
	e.lg.WithFields(logrus.Fields{
		"table":  entry.Table,
		"record": entry.RecordID,
	}).Warn("kuyruk girdisinin yerel kaydı yok, girdi kapatılıyor")
	if err := syncqueue.MarkSynced(e.db, entry); err != nil {
		return false, err
	}
	return false, nil
}
