package models

// Sync kuyruğunda kullanılan tablo adları. Kuyruk girdisi ile GORM
// modeli aynı isimden yürür; yeni senkronlanabilir tablo eklerken
// buraya da ekle.
const (
	TableOrders             = "orders"
	TableOrderPayments      = "order_payments"
	TablePaymentAdjustments = "payment_adjustments"
	TableStaffShifts        = "staff_shifts"
	TableExpenses           = "expenses"
	TableStaffPayments      = "staff_payments"
	TableZReports           = "z_reports"
)
