package models

import "time"

type OrderType string

const (
	OrderTypeDineIn   OrderType = "dine-in"
	OrderTypePickup   OrderType = "pickup"
	OrderTypeDelivery OrderType = "delivery"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPartial  PaymentStatus = "partial"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Order: terminalde oluşturulan sipariş. Tüm tutarlar kuruş cinsinden.
// LocalID cihazda üretilir ve asla değişmez; RemoteID ilk başarılı
// senkronda bir kez yazılır, sonra bir daha güncellenmez.
type Order struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	LocalID  string  `gorm:"size:36;uniqueIndex;not null" json:"local_id"`
	RemoteID *string `gorm:"size:64;index" json:"remote_id"`

	BranchID   uint   `gorm:"index;not null" json:"branch_id"`
	TerminalID string `gorm:"size:50;index;not null" json:"terminal_id"`

	Type   OrderType   `gorm:"size:20;not null" json:"type"`
	Status OrderStatus `gorm:"size:20;not null" json:"status"`

	// Siparişi açan personel vardiyası; delivery siparişlerde kurye de bağlanır
	StaffShiftID uint  `gorm:"index;not null" json:"staff_shift_id"`
	DriverID     *uint `gorm:"index" json:"driver_id"`

	Subtotal    int64 `gorm:"not null" json:"subtotal"`
	Tax         int64 `gorm:"not null;default:0" json:"tax"`
	Discount    int64 `gorm:"not null;default:0" json:"discount"`
	DeliveryFee int64 `gorm:"not null;default:0" json:"delivery_fee"`
	Tip         int64 `gorm:"not null;default:0" json:"tip"`
	Total       int64 `gorm:"not null" json:"total"`

	PaymentStatus PaymentStatus `gorm:"size:20;not null;default:pending" json:"payment_status"`
	SyncStatus    SyncStatus    `gorm:"size:20;not null;default:pending" json:"sync_status"`

	Items []OrderItem `json:"items"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type OrderItem struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	OrderID   uint   `gorm:"index;not null" json:"order_id"`
	Name      string `gorm:"size:150;not null" json:"name"`
	Quantity  int    `gorm:"not null" json:"quantity"`
	UnitPrice int64  `gorm:"not null" json:"unit_price"` // kuruş
	Note      string `gorm:"size:255" json:"note"`
}
