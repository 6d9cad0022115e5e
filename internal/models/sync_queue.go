package models

import "time"

type SyncEntryStatus string

const (
	SyncEntryPending  SyncEntryStatus = "pending"
	SyncEntryDeferred SyncEntryStatus = "deferred"
	SyncEntrySynced   SyncEntryStatus = "synced"
	SyncEntryFailed   SyncEntryStatus = "failed"
)

type SyncOperation string

const (
	SyncOpUpsert SyncOperation = "upsert"
	SyncOpDelete SyncOperation = "delete"
)

// SyncQueueEntry: outbox satırı. Kaydın kendisiyle aynı yerel transaction
// içinde yazılır; uzak sisteme iletilmemiş her mutasyon burada bekler.
// Aynı (table_name, record_id) için aynı anda en fazla bir canlı
// (pending/deferred) satır bulunur; tekrar enqueue mevcut satırı günceller.
type SyncQueueEntry struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Table     string          `gorm:"column:table_name;size:50;index:idx_sync_queue_key;not null" json:"table_name"`
	RecordID  string          `gorm:"size:36;index:idx_sync_queue_key;not null" json:"record_id"` // ilgili kaydın LocalID'si
	Operation SyncOperation   `gorm:"size:10;not null;default:upsert" json:"operation"`
	Status    SyncEntryStatus `gorm:"size:10;index;not null;default:pending" json:"status"`
	Attempts  int             `gorm:"not null;default:0" json:"attempts"`
	LastError string          `gorm:"size:500" json:"last_error"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (SyncQueueEntry) TableName() string {
	return "sync_queue"
}
