package models

import "time"

type PrintJobStatus string

const (
	PrintJobPending PrintJobStatus = "pending"
	PrintJobPrinted PrintJobStatus = "printed"
	PrintJobFailed  PrintJobStatus = "failed"
)

// PrintJob: fiş yazdırma isteği. Yazıcı hatası ödemeyi asla geri almaz;
// iş failed kalır ve reprint ile tekrar denenir.
type PrintJob struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	LocalID   string         `gorm:"size:36;uniqueIndex;not null" json:"local_id"`
	OrderID   uint           `gorm:"index;not null" json:"order_id"`
	Status    PrintJobStatus `gorm:"size:10;index;not null;default:pending" json:"status"`
	Attempts  int            `gorm:"not null;default:0" json:"attempts"`
	LastError string         `gorm:"size:255" json:"last_error"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
