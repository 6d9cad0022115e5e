package models

import "time"

// ZReport: gün sonu raporu. (BranchID, ReportDate) başına tek kayıt;
// aynı gün için tekrar generate çağrısı mevcut kaydı döndürür,
// ikinci bir satır ya da ikinci bir sync kuyruğu girdisi oluşturmaz.
type ZReport struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	LocalID  string  `gorm:"size:36;uniqueIndex;not null" json:"local_id"`
	RemoteID *string `gorm:"size:64;index" json:"remote_id"`

	BranchID   uint      `gorm:"index:idx_zreport_day,unique;not null" json:"branch_id"`
	ReportDate time.Time `gorm:"index:idx_zreport_day,unique;not null" json:"report_date"` // gün başı (00:00)

	GeneratedByID uint `gorm:"not null" json:"generated_by_id"`

	// Skaler toplamlar (kuruş); listelemede JSON'u açmadan kullanılır
	GrossSales    int64 `gorm:"not null;default:0" json:"gross_sales"`
	NetSales      int64 `gorm:"not null;default:0" json:"net_sales"`
	CashSales     int64 `gorm:"not null;default:0" json:"cash_sales"`
	CardSales     int64 `gorm:"not null;default:0" json:"card_sales"`
	TotalExpenses int64 `gorm:"not null;default:0" json:"total_expenses"`
	OrderCount    int   `gorm:"not null;default:0" json:"order_count"`

	// Detaylı rapor verileri (JSON formatında)
	ReportData string `gorm:"type:text" json:"report_data"`

	SyncStatus SyncStatus `gorm:"size:20;not null;default:pending" json:"sync_status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
