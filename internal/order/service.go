package order

import (
	"errors"
	"fmt"

	"restoran-pos-terminal/internal/models"
	"restoran-pos-terminal/internal/shift"
	"restoran-pos-terminal/internal/syncqueue"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrEmptyOrder           = errors.New("sipariş en az bir kalem içermeli")
	ErrOrderNotFound        = errors.New("sipariş bulunamadı")
	ErrPaymentNotFound      = errors.New("ödeme bulunamadı")
	ErrInvalidAmount        = errors.New("tutar 0'dan büyük olmalı")
	ErrRefundExceedsBalance = errors.New("iade tutarı kalan bakiyeyi aşıyor")
	ErrPaymentVoided        = errors.New("iptal edilmiş ödeme üzerinde işlem yapılamaz")
	ErrInvalidTransition    = errors.New("geçersiz sipariş durum geçişi")
)

// ReceiptPrinter: yazıcı yeteneği. Yazdırma hatası ödemeyi asla geri almaz,
// bu yüzden servis yalnızca iş kuyruğuna bırakır.
type ReceiptPrinter interface {
	Enqueue(orderID uint) (*models.PrintJob, error)
}

type Service struct {
	db      *gorm.DB
	lg      *logrus.Logger
	printer ReceiptPrinter
}

func NewService(db *gorm.DB, lg *logrus.Logger, printer ReceiptPrinter) *Service {
	return &Service{db: db, lg: lg, printer: printer}
}

type ItemInput struct {
	Name      string `json:"name" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
	UnitPrice int64  `json:"unit_price" validate:"gte=0"` // kuruş
	Note      string `json:"note"`
}

type CreateInput struct {
	BranchID     uint
	TerminalID   string
	Type         models.OrderType `validate:"required,oneof=dine-in pickup delivery"`
	StaffShiftID uint             `validate:"required"`
	DriverID     *uint
	Items        []ItemInput `validate:"required,min=1,dive"`
	Tax          int64       `validate:"gte=0"`
	Discount     int64       `validate:"gte=0"`
	DeliveryFee  int64       `validate:"gte=0"`
	Tip          int64       `validate:"gte=0"`
}

// Create: siparişi, kalemlerini ve sync kuyruğu girdisini tek transaction
// içinde yazar. Kuyruk girdisi commit olduysa sipariş er geç uzağa ulaşır.
func (s *Service) Create(in CreateInput) (*models.Order, error) {
	if len(in.Items) == 0 {
		return nil, ErrEmptyOrder
	}

	var subtotal int64
	for _, it := range in.Items {
		if it.Quantity <= 0 || it.UnitPrice < 0 {
			return nil, ErrInvalidAmount
		}
		subtotal += int64(it.Quantity) * it.UnitPrice
	}
	total := subtotal + in.Tax - in.Discount + in.DeliveryFee + in.Tip

	var ord models.Order
	err := s.db.Transaction(func(tx *gorm.DB) error {
		ord = models.Order{
			LocalID:       uuid.NewString(),
			BranchID:      in.BranchID,
			TerminalID:    in.TerminalID,
			Type:          in.Type,
			Status:        models.OrderStatusPending,
			StaffShiftID:  in.StaffShiftID,
			DriverID:      in.DriverID,
			Subtotal:      subtotal,
			Tax:           in.Tax,
			Discount:      in.Discount,
			DeliveryFee:   in.DeliveryFee,
			Tip:           in.Tip,
			Total:         total,
			PaymentStatus: models.PaymentStatusPending,
			SyncStatus:    models.SyncStatusPending,
		}
		if err := tx.Create(&ord).Error; err != nil {
			return fmt.Errorf("sipariş oluşturulamadı: %w", err)
		}

		for _, it := range in.Items {
			item := models.OrderItem{
				OrderID:   ord.ID,
				Name:      it.Name,
				Quantity:  it.Quantity,
				UnitPrice: it.UnitPrice,
				Note:      it.Note,
			}
			if err := tx.Create(&item).Error; err != nil {
				return fmt.Errorf("sipariş kalemi oluşturulamadı: %w", err)
			}
			ord.Items = append(ord.Items, item)
		}

		return syncqueue.Enqueue(tx, models.TableOrders, ord.LocalID, models.SyncOpUpsert)
	})
	if err != nil {
		return nil, err
	}
	return &ord, nil
}

// Sipariş durum akışı. cancelled'a her ara durumdan dönülebilir,
// tamamlanmış siparişten geri dönüş yok.
var statusFlow = map[models.OrderStatus][]models.OrderStatus{
	models.OrderStatusPending:   {models.OrderStatusConfirmed, models.OrderStatusCancelled},
	models.OrderStatusConfirmed: {models.OrderStatusPreparing, models.OrderStatusCancelled},
	models.OrderStatusPreparing: {models.OrderStatusReady, models.OrderStatusCancelled},
	models.OrderStatusReady:     {models.OrderStatusDelivered, models.OrderStatusCompleted, models.OrderStatusCancelled},
	models.OrderStatusDelivered: {models.OrderStatusCompleted},
}

// AdvanceStatus: durum geçişini doğrular, kaydeder, sync kuyruğunu tazeler.
func (s *Service) AdvanceStatus(orderID uint, next models.OrderStatus) (*models.Order, error) {
	var ord models.Order
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&ord, orderID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrOrderNotFound
			}
			return fmt.Errorf("sipariş okunamadı: %w", err)
		}

		allowed := false
		for _, st := range statusFlow[ord.Status] {
			if st == next {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, ord.Status, next)
		}

		ord.Status = next
		ord.SyncStatus = models.SyncStatusPending
		if err := tx.Save(&ord).Error; err != nil {
			return fmt.Errorf("sipariş güncellenemedi: %w", err)
		}

		return syncqueue.Enqueue(tx, models.TableOrders, ord.LocalID, models.SyncOpUpsert)
	})
	if err != nil {
		return nil, err
	}
	return &ord, nil
}

// CapturePayment: ödemeyi, kasa satış toplamını ve outbox girdisini tek
// transaction'da yazar. Siparişin RemoteID'si yoksa ödeme waiting_parent
// açılır ve kuyruk girdisi deferred başlar; sipariş senkronlanınca motor
// terfi ettirir. Fiş yazdırma transaction dışında tetiklenir; hatası
// yalnızca loglanır, ödeme durumuna dokunmaz.
func (s *Service) CapturePayment(orderID, shiftID uint, amount int64, method models.PaymentMethod) (*models.Payment, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	var payment models.Payment
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var ord models.Order
		if err := tx.First(&ord, orderID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrOrderNotFound
			}
			return fmt.Errorf("sipariş okunamadı: %w", err)
		}

		syncState := models.SyncStatePending
		if ord.RemoteID == nil {
			syncState = models.SyncStateWaitingParent
		}

		payment = models.Payment{
			LocalID:        uuid.NewString(),
			OrderID:        ord.ID,
			Amount:         amount,
			Method:         method,
			StaffShiftID:   shiftID,
			IdempotencyKey: uuid.NewString(), // bir kez üretilir, retry'da değişmez
			SyncState:      syncState,
			SyncStatus:     models.SyncStatusPending,
		}
		if err := tx.Create(&payment).Error; err != nil {
			return fmt.Errorf("ödeme kaydedilemedi: %w", err)
		}

		if err := updateOrderPaymentStatus(tx, &ord); err != nil {
			return err
		}

		if err := shift.RecordSale(tx, shiftID, method, amount); err != nil {
			return err
		}

		if syncState == models.SyncStateWaitingParent {
			return syncqueue.EnqueueDeferred(tx, models.TableOrderPayments, payment.LocalID, models.SyncOpUpsert)
		}
		return syncqueue.Enqueue(tx, models.TableOrderPayments, payment.LocalID, models.SyncOpUpsert)
	})
	if err != nil {
		return nil, err
	}

	if s.printer != nil {
		if _, err := s.printer.Enqueue(orderID); err != nil {
			s.lg.Warnf("fiş yazdırma kuyruğa alınamadı (ödeme etkilenmedi): %v", err)
		}
	}

	return &payment, nil
}

// updateOrderPaymentStatus: etkin tahsilata göre pending/partial/paid/refunded.
func updateOrderPaymentStatus(tx *gorm.DB, ord *models.Order) error {
	var payments []models.Payment
	if err := tx.Where("order_id = ?", ord.ID).Find(&payments).Error; err != nil {
		return fmt.Errorf("ödemeler okunamadı: %w", err)
	}

	var effective int64
	hadPayment := len(payments) > 0
	for i := range payments {
		bal, err := paymentBalance(tx, &payments[i])
		if err != nil {
			return err
		}
		effective += bal
	}

	status := models.PaymentStatusPending
	switch {
	case effective >= ord.Total && ord.Total > 0:
		status = models.PaymentStatusPaid
	case effective > 0:
		status = models.PaymentStatusPartial
	case hadPayment:
		// Ödeme alınmış ama tamamı iade/iptal edilmiş
		status = models.PaymentStatusRefunded
	}

	if ord.PaymentStatus == status {
		return nil
	}
	ord.PaymentStatus = status
	ord.SyncStatus = models.SyncStatusPending
	if err := tx.Save(ord).Error; err != nil {
		return fmt.Errorf("sipariş ödeme durumu güncellenemedi: %w", err)
	}
	return syncqueue.Enqueue(tx, models.TableOrders, ord.LocalID, models.SyncOpUpsert)
}

// Refund: kalan bakiyeyi aşan iade reddedilir; iade kaydı üst ödeme
// uygulanana kadar deferred bekler (ödeme -> sipariş zinciriyle aynı mantık).
func (s *Service) Refund(paymentID uint, amount int64, reason string) (*models.PaymentAdjustment, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	return s.createAdjustment(paymentID, models.AdjustmentTypeRefund, amount, reason)
}

// Void: kalan bakiyeyi sıfırlar. İkinci bir void ya da sonrası iade,
// sessiz no-op değil, geçersiz durum hatasıdır.
func (s *Service) Void(paymentID uint, reason string) (*models.PaymentAdjustment, error) {
	return s.createAdjustment(paymentID, models.AdjustmentTypeVoid, 0, reason)
}

func (s *Service) createAdjustment(paymentID uint, adjType models.AdjustmentType, amount int64, reason string) (*models.PaymentAdjustment, error) {
	var adj models.PaymentAdjustment
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var payment models.Payment
		if err := tx.First(&payment, paymentID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrPaymentNotFound
			}
			return fmt.Errorf("ödeme okunamadı: %w", err)
		}
		if payment.Voided {
			return ErrPaymentVoided
		}

		balance, err := paymentBalance(tx, &payment)
		if err != nil {
			return err
		}

		if adjType == models.AdjustmentTypeRefund {
			if amount > balance {
				return ErrRefundExceedsBalance
			}
		} else {
			// Void kalan bakiyenin tamamını düşer
			amount = balance
			payment.Voided = true
			if err := tx.Save(&payment).Error; err != nil {
				return fmt.Errorf("ödeme iptal işaretlenemedi: %w", err)
			}
		}

		syncState := models.SyncStatePending
		if payment.SyncState != models.SyncStateApplied {
			syncState = models.SyncStateWaitingParent
		}

		adj = models.PaymentAdjustment{
			LocalID:        uuid.NewString(),
			PaymentID:      payment.ID,
			Type:           adjType,
			Amount:         amount,
			Reason:         reason,
			IdempotencyKey: uuid.NewString(),
			SyncState:      syncState,
			SyncStatus:     models.SyncStatusPending,
		}
		if err := tx.Create(&adj).Error; err != nil {
			return fmt.Errorf("iade/iptal kaydedilemedi: %w", err)
		}

		var ord models.Order
		if err := tx.First(&ord, payment.OrderID).Error; err != nil {
			return fmt.Errorf("sipariş okunamadı: %w", err)
		}
		if err := updateOrderPaymentStatus(tx, &ord); err != nil {
			return err
		}

		if syncState == models.SyncStateWaitingParent {
			return syncqueue.EnqueueDeferred(tx, models.TablePaymentAdjustments, adj.LocalID, models.SyncOpUpsert)
		}
		return syncqueue.Enqueue(tx, models.TablePaymentAdjustments, adj.LocalID, models.SyncOpUpsert)
	})
	if err != nil {
		return nil, err
	}
	return &adj, nil
}

// Balance: ödemenin kalan bakiyesi: amount - iadeler, void edildiyse 0.
func (s *Service) Balance(paymentID uint) (int64, error) {
	var payment models.Payment
	if err := s.db.First(&payment, paymentID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, ErrPaymentNotFound
		}
		return 0, fmt.Errorf("ödeme okunamadı: %w", err)
	}
	return paymentBalance(s.db, &payment)
}

func paymentBalance(tx *gorm.DB, payment *models.Payment) (int64, error) {
	if payment.Voided {
		return 0, nil
	}
	var sum struct{ Total int64 }
	if err := tx.Model(&models.PaymentAdjustment{}).
		Select("COALESCE(SUM(amount), 0) as total").
		Where("payment_id = ? AND type = ?", payment.ID, models.AdjustmentTypeRefund).
		Scan(&sum).Error; err != nil {
		return 0, fmt.Errorf("iade toplamı okunamadı: %w", err)
	}
	balance := payment.Amount - sum.Total
	if balance < 0 {
		balance = 0
	}
	return balance, nil
}

// Get: siparişi kalemleriyle döndürür.
func (s *Service) Get(orderID uint) (*models.Order, error) {
	var ord models.Order
	if err := s.db.Preload("Items").First(&ord, orderID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("sipariş okunamadı: %w", err)
	}
	return &ord, nil
}
