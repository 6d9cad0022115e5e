package models

import "time"

type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "cash"
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodOnline PaymentMethod = "online"
)

// SyncState: bir finansal kaydın uzak sistemdeki durumu.
// waiting_parent: üst kaydın (sipariş/ödeme) RemoteID'si henüz yok.
// failed: kuyruk girdisi deneme eşiğini aştı; operatör requeue edene
// kadar gönderim denenmez.
type SyncState string

const (
	SyncStatePending       SyncState = "pending"
	SyncStateWaitingParent SyncState = "waiting_parent"
	SyncStateApplied       SyncState = "applied"
	SyncStateFailed        SyncState = "failed"
)

// SyncStatus: yerel kaydın kuyruk açısından özeti.
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusSynced  SyncStatus = "synced"
)

// Payment: bir siparişe bağlı ödeme. Amount kuruş cinsinden.
// IdempotencyKey kayıt oluşturulurken bir kez üretilir; retry'larda
// aynı anahtar gönderilir ki uzak sistem mükerrer kaydı ayıklayabilsin.
type Payment struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	LocalID  string  `gorm:"size:36;uniqueIndex;not null" json:"local_id"`
	RemoteID *string `gorm:"size:64;index" json:"remote_id"`

	OrderID uint  `gorm:"index;not null" json:"order_id"`
	Order   Order `json:"-"`

	Amount int64         `gorm:"not null" json:"amount"`
	Method PaymentMethod `gorm:"size:20;not null" json:"method"`

	StaffShiftID uint `gorm:"index;not null" json:"staff_shift_id"`

	Voided bool `gorm:"not null;default:false" json:"voided"`

	IdempotencyKey string     `gorm:"size:36;uniqueIndex;not null" json:"idempotency_key"`
	SyncState      SyncState  `gorm:"size:20;not null;default:pending" json:"sync_state"`
	SyncStatus     SyncStatus `gorm:"size:20;not null;default:pending" json:"sync_status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Payment) TableName() string {
	return "order_payments"
}

type AdjustmentType string

const (
	AdjustmentTypeRefund AdjustmentType = "refund"
	AdjustmentTypeVoid   AdjustmentType = "void"
)

// PaymentAdjustment: iade veya iptal kaydı. İadelerin toplamı ödemenin
// kalan bakiyesini aşamaz; void kalan bakiyeyi sıfırlar ve sonrasında
// başka iade/void kabul edilmez.
type PaymentAdjustment struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	LocalID  string  `gorm:"size:36;uniqueIndex;not null" json:"local_id"`
	RemoteID *string `gorm:"size:64;index" json:"remote_id"`

	PaymentID uint    `gorm:"index;not null" json:"payment_id"`
	Payment   Payment `json:"-"`

	Type   AdjustmentType `gorm:"size:10;not null" json:"type"`
	Amount int64          `gorm:"not null" json:"amount"` // kuruş (void için kalan bakiye)
	Reason string         `gorm:"size:255" json:"reason"`

	IdempotencyKey string     `gorm:"size:36;uniqueIndex;not null" json:"idempotency_key"`
	SyncState      SyncState  `gorm:"size:20;not null;default:pending" json:"sync_state"`
	SyncStatus     SyncStatus `gorm:"size:20;not null;default:pending" json:"sync_status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
