package models

import "time"

type ShiftRole string

const (
	ShiftRoleCashier ShiftRole = "cashier"
	ShiftRoleDriver  ShiftRole = "driver"
	ShiftRoleServer  ShiftRole = "server"
)

type ShiftStatus string

const (
	ShiftStatusActive ShiftStatus = "active"
	ShiftStatusClosed ShiftStatus = "closed"
)

// StaffShift: personel vardiyası. Aynı personel + terminal için aynı anda
// tek aktif vardiya olabilir. Kasiyer kapanırken hâlâ açık kurye/garson
// vardiyası varsa bunların kasası kaybolmaz: IsTransferPending işaretlenir
// ve bir sonraki kasiyer açılışı devralır.
type StaffShift struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	LocalID  string  `gorm:"size:36;uniqueIndex;not null" json:"local_id"`
	RemoteID *string `gorm:"size:64;index" json:"remote_id"`

	BranchID   uint   `gorm:"index;not null" json:"branch_id"`
	TerminalID string `gorm:"size:50;index;not null" json:"terminal_id"`

	StaffID uint      `gorm:"index;not null" json:"staff_id"`
	Staff   User      `json:"-"`
	Role    ShiftRole `gorm:"size:20;not null" json:"role"`

	Status ShiftStatus `gorm:"size:10;not null;default:active" json:"status"`

	// Kasiyer için opening, kurye/garson için starting cash (kuruş)
	OpeningCash int64  `gorm:"not null;default:0" json:"opening_cash"`
	ClosingCash *int64 `json:"closing_cash"`
	Variance    *int64 `json:"variance"`

	// Kasiyer bağlı vardiyalarını kapatmadan çıkarsa devir bekler
	CashierShiftID               *uint `gorm:"index" json:"cashier_shift_id"`
	IsTransferPending            bool  `gorm:"not null;default:false" json:"is_transfer_pending"`
	TransferredToCashierShiftID  *uint `gorm:"index" json:"transferred_to_cashier_shift_id"`

	OpenedAt  time.Time  `gorm:"not null" json:"opened_at"`
	ClosedAt  *time.Time `json:"closed_at"`
	ClosedBy  *uint      `json:"closed_by"`

	SyncStatus SyncStatus `gorm:"size:20;not null;default:pending" json:"sync_status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CashDrawerSession: kasiyer vardiyası başına bir kasa oturumu.
// Toplamlar tetikleyen kaydın transaction'ı içinde güncellenir,
// sonradan hesaplanmaz (disk ile bellek ayrışmasın).
type CashDrawerSession struct {
	ID           uint `gorm:"primaryKey" json:"id"`
	StaffShiftID uint `gorm:"uniqueIndex;not null" json:"staff_shift_id"`
	BranchID     uint `gorm:"index;not null" json:"branch_id"`

	OpeningCash         int64 `gorm:"not null;default:0" json:"opening_cash"`
	CashSales           int64 `gorm:"not null;default:0" json:"cash_sales"`
	CardSales           int64 `gorm:"not null;default:0" json:"card_sales"`
	Expenses            int64 `gorm:"not null;default:0" json:"expenses"`
	StaffPayments       int64 `gorm:"not null;default:0" json:"staff_payments"`
	DriverCashGiven     int64 `gorm:"not null;default:0" json:"driver_cash_given"`
	DriverCashReturned  int64 `gorm:"not null;default:0" json:"driver_cash_returned"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ExpectedCash: kapanışta sayılması beklenen nakit.
func (s *CashDrawerSession) ExpectedCash() int64 {
	return s.OpeningCash + s.CashSales - s.Expenses - s.StaffPayments - s.DriverCashGiven + s.DriverCashReturned
}

// DriverEarning: kurye vardiyası + sipariş başına bir kayıt.
type DriverEarning struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	LocalID string `gorm:"size:36;uniqueIndex;not null" json:"local_id"`

	DriverShiftID uint `gorm:"index:idx_driver_earning,unique;not null" json:"driver_shift_id"`
	OrderID       uint `gorm:"index:idx_driver_earning,unique;not null" json:"order_id"`

	DeliveryFee   int64 `gorm:"not null;default:0" json:"delivery_fee"`
	Tip           int64 `gorm:"not null;default:0" json:"tip"`
	CashCollected int64 `gorm:"not null;default:0" json:"cash_collected"`
	CardAmount    int64 `gorm:"not null;default:0" json:"card_amount"`
	CashToReturn  int64 `gorm:"not null;default:0" json:"cash_to_return"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TotalEarning: kuryenin bu siparişten hak edişi.
func (e *DriverEarning) TotalEarning() int64 {
	return e.DeliveryFee + e.Tip
}

// Expense: vardiyaya bağlı gider kaydı.
type Expense struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	LocalID  string  `gorm:"size:36;uniqueIndex;not null" json:"local_id"`
	RemoteID *string `gorm:"size:64;index" json:"remote_id"`

	BranchID     uint   `gorm:"index;not null" json:"branch_id"`
	StaffShiftID uint   `gorm:"index;not null" json:"staff_shift_id"`
	Type         string `gorm:"size:50;not null" json:"type"`
	Amount       int64  `gorm:"not null" json:"amount"` // kuruş
	Description  string `gorm:"size:255" json:"description"`

	SyncStatus SyncStatus `gorm:"size:20;not null;default:pending" json:"sync_status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StaffPayment: vardiya içinden personele yapılan ödeme (avans, yevmiye vb).
type StaffPayment struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	LocalID  string  `gorm:"size:36;uniqueIndex;not null" json:"local_id"`
	RemoteID *string `gorm:"size:64;index" json:"remote_id"`

	BranchID     uint   `gorm:"index;not null" json:"branch_id"`
	StaffShiftID uint   `gorm:"index;not null" json:"staff_shift_id"`
	PaidToID     uint   `gorm:"index;not null" json:"paid_to_id"` // ödeme yapılan personel
	Type         string `gorm:"size:50;not null" json:"type"`
	Amount       int64  `gorm:"not null" json:"amount"` // kuruş
	Description  string `gorm:"size:255" json:"description"`

	SyncStatus SyncStatus `gorm:"size:20;not null;default:pending" json:"sync_status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
