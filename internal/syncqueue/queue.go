package syncqueue

import (
	"fmt"

	"restoran-pos-terminal/internal/models"

	"gorm.io/gorm"
)

// Outbox işlemleri. Hepsi tx alır: kuyruk satırı, tetikleyen kaydın
// transaction'ı içinde yazılmalı ki "yerelde var ama kuyrukta yok"
// durumu hiç oluşmasın.

// Enqueue: (table, record) için canlı (pending/deferred) satır varsa onu
// günceller, yoksa pending olarak ekler. Aynı kayıt için ikinci canlı
// satır asla oluşmaz.
func Enqueue(tx *gorm.DB, tableName, recordID string, op models.SyncOperation) error {
	return enqueueWithStatus(tx, tableName, recordID, op, models.SyncEntryPending)
}

// EnqueueDeferred: üst kaydı henüz senkronlanmamış bir çocuk için girdi
// doğrudan deferred açılır; üst kayıt senkronlanınca Promote pending'e çevirir.
func EnqueueDeferred(tx *gorm.DB, tableName, recordID string, op models.SyncOperation) error {
	return enqueueWithStatus(tx, tableName, recordID, op, models.SyncEntryDeferred)
}

func enqueueWithStatus(tx *gorm.DB, tableName, recordID string, op models.SyncOperation, status models.SyncEntryStatus) error {
	var existing models.SyncQueueEntry
	err := tx.Where("table_name = ? AND record_id = ? AND status IN ?",
		tableName, recordID,
		[]models.SyncEntryStatus{models.SyncEntryPending, models.SyncEntryDeferred}).
		First(&existing).Error

	if err == nil {
		// Canlı satır var: operasyonu tazele, mevcut durumu koru
		existing.Operation = op
		if err := tx.Save(&existing).Error; err != nil {
			return fmt.Errorf("sync kuyruğu güncellenemedi: %w", err)
		}
		return nil
	}
	if err != gorm.ErrRecordNotFound {
		return fmt.Errorf("sync kuyruğu okunamadı: %w", err)
	}

	entry := models.SyncQueueEntry{
		Table:     tableName,
		RecordID:  recordID,
		Operation: op,
		Status:    status,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("sync kuyruğuna yazılamadı: %w", err)
	}
	return nil
}

// Pending: drain sırası: en eski önce, böylece üst kayıt çocuğundan
// önce denenir.
func Pending(db *gorm.DB) ([]models.SyncQueueEntry, error) {
	var entries []models.SyncQueueEntry
	if err := db.Where("status = ?", models.SyncEntryPending).
		Order("created_at asc, id asc").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("bekleyen sync girdileri okunamadı: %w", err)
	}
	return entries, nil
}

// MarkDeferred: üst kaydı senkronlanmamış girdi normal drain'den çıkarılır.
// Bu bir hata değil, beklenen bir ara durumdur.
func MarkDeferred(tx *gorm.DB, entry *models.SyncQueueEntry, reason string) error {
	entry.Status = models.SyncEntryDeferred
	entry.LastError = reason
	if err := tx.Save(entry).Error; err != nil {
		return fmt.Errorf("sync girdisi ertelenemedi: %w", err)
	}
	return nil
}

// Promote: üst kaydı senkronlanan çocukların deferred girdilerini
// pending'e çevirir. Dönen sayı, tekrar drain'e giren girdi adedi.
func Promote(tx *gorm.DB, tableName string, recordIDs []string) (int64, error) {
	if len(recordIDs) == 0 {
		return 0, nil
	}
	res := tx.Model(&models.SyncQueueEntry{}).
		Where("table_name = ? AND record_id IN ? AND status = ?",
			tableName, recordIDs, models.SyncEntryDeferred).
		Updates(map[string]interface{}{
			"status":     models.SyncEntryPending,
			"last_error": "",
		})
	if res.Error != nil {
		return 0, fmt.Errorf("deferred girdiler terfi ettirilemedi: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// MarkSynced: terminal durum. Girdi bir daha drain'e girmez.
func MarkSynced(tx *gorm.DB, entry *models.SyncQueueEntry) error {
	entry.Status = models.SyncEntrySynced
	entry.LastError = ""
	if err := tx.Save(entry).Error; err != nil {
		return fmt.Errorf("sync girdisi kapatılamadı: %w", err)
	}
	return nil
}

// MarkFailed: deneme sayısını artırır. maxAttempts 0 (sınırsız) ise girdi
// pending kalır ve sonraki drain tekrar dener; eşik aşıldıysa failed'a
// düşer ve operatör RequeueFailed ile geri alana kadar drain dışı kalır.
// Finansal kayıt olduğu için hiçbir durumda otomatik silinmez.
func MarkFailed(tx *gorm.DB, entry *models.SyncQueueEntry, cause error, maxAttempts int) error {
	entry.Attempts++
	entry.LastError = truncate(cause.Error(), 500)
	if maxAttempts > 0 && entry.Attempts >= maxAttempts {
		entry.Status = models.SyncEntryFailed
	} else {
		entry.Status = models.SyncEntryPending
	}
	if err := tx.Save(entry).Error; err != nil {
		return fmt.Errorf("sync hatası kaydedilemedi: %w", err)
	}
	return nil
}

// RequeueFailed: manuel müdahale; failed girdileri sıfırlanmış deneme
// sayısıyla pending'e döndürür.
func RequeueFailed(db *gorm.DB) (int64, error) {
	res := db.Model(&models.SyncQueueEntry{}).
		Where("status = ?", models.SyncEntryFailed).
		Updates(map[string]interface{}{
			"status":   models.SyncEntryPending,
			"attempts": 0,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed girdiler kuyruğa alınamadı: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
