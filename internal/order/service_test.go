package order

import (
	"io"
	"path/filepath"
	"testing"

	"restoran-pos-terminal/internal/database"
	"restoran-pos-terminal/internal/models"
	"restoran-pos-terminal/internal/shift"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *shift.Service, *gorm.DB) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "pos.db"))
	require.NoError(t, err)

	lg := logrus.New()
	lg.SetOutput(io.Discard)
	return NewService(db, lg, nil), shift.NewService(db, lg, false), db
}

func openCashier(t *testing.T, shiftSvc *shift.Service, opening int64) *models.StaffShift {
	t.Helper()
	sh, err := shiftSvc.Open(1, models.ShiftRoleCashier, 1, "terminal-1", opening)
	require.NoError(t, err)
	return sh
}

func createOrder(t *testing.T, svc *Service, shiftID uint, total int64) *models.Order {
	t.Helper()
	ord, err := svc.Create(CreateInput{
		BranchID:     1,
		TerminalID:   "terminal-1",
		Type:         models.OrderTypeDineIn,
		StaffShiftID: shiftID,
		Items: []ItemInput{
			{Name: "Adana dürüm", Quantity: 1, UnitPrice: total},
		},
	})
	require.NoError(t, err)
	return ord
}

func TestCreateComputesTotals(t *testing.T) {
	svc, shiftSvc, _ := newTestService(t)
	sh := openCashier(t, shiftSvc, 0)

	ord, err := svc.Create(CreateInput{
		BranchID:     1,
		TerminalID:   "terminal-1",
		Type:         models.OrderTypeDelivery,
		StaffShiftID: sh.ID,
		Items: []ItemInput{
			{Name: "Lahmacun", Quantity: 4, UnitPrice: 1500},
			{Name: "Ayran", Quantity: 2, UnitPrice: 500},
		},
		Tax:         1000,
		Discount:    500,
		DeliveryFee: 800,
		Tip:         200,
	})
	require.NoError(t, err)
	require.EqualValues(t, 7000, ord.Subtotal)
	require.EqualValues(t, 7000+1000-500+800+200, ord.Total)
	require.Equal(t, models.PaymentStatusPending, ord.PaymentStatus)
	require.Len(t, ord.Items, 2)
	require.NotEmpty(t, ord.LocalID)
	require.Nil(t, ord.RemoteID)
}

func TestCreateRejectsEmptyOrder(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Create(CreateInput{BranchID: 1, TerminalID: "terminal-1", Type: models.OrderTypeDineIn, StaffShiftID: 1})
	require.ErrorIs(t, err, ErrEmptyOrder)
}

func TestStatusTransitions(t *testing.T) {
	svc, shiftSvc, _ := newTestService(t)
	sh := openCashier(t, shiftSvc, 0)
	ord := createOrder(t, svc, sh.ID, 5000)

	for _, next := range []models.OrderStatus{
		models.OrderStatusConfirmed,
		models.OrderStatusPreparing,
		models.OrderStatusReady,
		models.OrderStatusCompleted,
	} {
		got, err := svc.AdvanceStatus(ord.ID, next)
		require.NoError(t, err)
		require.Equal(t, next, got.Status)
	}

	// Tamamlanan siparişten geri dönüş yok
	_, err := svc.AdvanceStatus(ord.ID, models.OrderStatusCancelled)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSkippingStatusRejected(t *testing.T) {
	svc, shiftSvc, _ := newTestService(t)
	sh := openCashier(t, shiftSvc, 0)
	ord := createOrder(t, svc, sh.ID, 5000)

	_, err := svc.AdvanceStatus(ord.ID, models.OrderStatusReady)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCapturePaymentWaitsForParentSync(t *testing.T) {
	svc, shiftSvc, db := newTestService(t)
	sh := openCashier(t, shiftSvc, 0)
	ord := createOrder(t, svc, sh.ID, 5000)

	payment, err := svc.CapturePayment(ord.ID, sh.ID, 5000, models.PaymentMethodCash)
	require.NoError(t, err)
	require.Equal(t, models.SyncStateWaitingParent, payment.SyncState)
	require.NotEmpty(t, payment.IdempotencyKey)

	var entry models.SyncQueueEntry
	require.NoError(t, db.Where("table_name = ? AND record_id = ?",
		models.TableOrderPayments, payment.LocalID).First(&entry).Error)
	require.Equal(t, models.SyncEntryDeferred, entry.Status)
}

func TestCapturePaymentPendingWhenOrderSynced(t *testing.T) {
	svc, shiftSvc, db := newTestService(t)
	sh := openCashier(t, shiftSvc, 0)
	ord := createOrder(t, svc, sh.ID, 5000)
	require.NoError(t, db.Model(&models.Order{}).Where("id = ?", ord.ID).
		Update("remote_id", "r-1").Error)

	payment, err := svc.CapturePayment(ord.ID, sh.ID, 5000, models.PaymentMethodCard)
	require.NoError(t, err)
	require.Equal(t, models.SyncStatePending, payment.SyncState)

	var entry models.SyncQueueEntry
	require.NoError(t, db.Where("table_name = ? AND record_id = ?",
		models.TableOrderPayments, payment.LocalID).First(&entry).Error)
	require.Equal(t, models.SyncEntryPending, entry.Status)
}

func TestPartialThenPaidStatus(t *testing.T) {
	svc, shiftSvc, _ := newTestService(t)
	sh := openCashier(t, shiftSvc, 0)
	ord := createOrder(t, svc, sh.ID, 5000)

	_, err := svc.CapturePayment(ord.ID, sh.ID, 2000, models.PaymentMethodCash)
	require.NoError(t, err)
	got, err := svc.Get(ord.ID)
	require.NoError(t, err)
	require.Equal(t, models.PaymentStatusPartial, got.PaymentStatus)

	_, err = svc.CapturePayment(ord.ID, sh.ID, 3000, models.PaymentMethodCash)
	require.NoError(t, err)
	got, err = svc.Get(ord.ID)
	require.NoError(t, err)
	require.Equal(t, models.PaymentStatusPaid, got.PaymentStatus)
}

func TestRefundCannotExceedBalance(t *testing.T) {
	svc, shiftSvc, _ := newTestService(t)
	sh := openCashier(t, shiftSvc, 0)
	ord := createOrder(t, svc, sh.ID, 5000)

	payment, err := svc.CapturePayment(ord.ID, sh.ID, 5000, models.PaymentMethodCash)
	require.NoError(t, err)

	_, err = svc.Refund(payment.ID, 3000, "müşteri talebi")
	require.NoError(t, err)

	balance, err := svc.Balance(payment.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2000, balance)

	_, err = svc.Refund(payment.ID, 2001, "fazla iade")
	require.ErrorIs(t, err, ErrRefundExceedsBalance)

	_, err = svc.Refund(payment.ID, 2000, "kalan")
	require.NoError(t, err)
	balance, err = svc.Balance(payment.ID)
	require.NoError(t, err)
	require.EqualValues(t, 0, balance)

	got, err := svc.Get(ord.ID)
	require.NoError(t, err)
	require.Equal(t, models.PaymentStatusRefunded, got.PaymentStatus)
}

func TestVoidZeroesBalanceAndBlocksFurtherAdjustments(t *testing.T) {
	svc, shiftSvc, _ := newTestService(t)
	sh := openCashier(t, shiftSvc, 0)
	ord := createOrder(t, svc, sh.ID, 5000)

	payment, err := svc.CapturePayment(ord.ID, sh.ID, 5000, models.PaymentMethodCash)
	require.NoError(t, err)

	adj, err := svc.Void(payment.ID, "yanlış tahsilat")
	require.NoError(t, err)
	require.Equal(t, models.AdjustmentTypeVoid, adj.Type)
	require.EqualValues(t, 5000, adj.Amount)

	balance, err := svc.Balance(payment.ID)
	require.NoError(t, err)
	require.EqualValues(t, 0, balance)

	// Void sonrası iade de ikinci void de reddedilir
	_, err = svc.Refund(payment.ID, 100, "")
	require.ErrorIs(t, err, ErrPaymentVoided)
	_, err = svc.Void(payment.ID, "")
	require.ErrorIs(t, err, ErrPaymentVoided)
}

func TestAdjustmentDeferredUntilPaymentApplied(t *testing.T) {
	svc, shiftSvc, db := newTestService(t)
	sh := openCashier(t, shiftSvc, 0)
	ord := createOrder(t, svc, sh.ID, 5000)

	payment, err := svc.CapturePayment(ord.ID, sh.ID, 5000, models.PaymentMethodCash)
	require.NoError(t, err)

	adj, err := svc.Refund(payment.ID, 1000, "")
	require.NoError(t, err)
	require.Equal(t, models.SyncStateWaitingParent, adj.SyncState)

	// Ödeme uzak sisteme uygulandıysa iade doğrudan pending açılır
	require.NoError(t, db.Model(&models.Payment{}).Where("id = ?", payment.ID).
		Update("sync_state", models.SyncStateApplied).Error)
	adj2, err := svc.Refund(payment.ID, 1000, "")
	require.NoError(t, err)
	require.Equal(t, models.SyncStatePending, adj2.SyncState)
}

func TestCashierDayReconciles(t *testing.T) {
	svc, shiftSvc, _ := newTestService(t)
	sh := openCashier(t, shiftSvc, 10000)

	// Nakit 50 + 20, kart 30
	ordA := createOrder(t, svc, sh.ID, 7000)
	_, err := svc.CapturePayment(ordA.ID, sh.ID, 5000, models.PaymentMethodCash)
	require.NoError(t, err)
	_, err = svc.CapturePayment(ordA.ID, sh.ID, 2000, models.PaymentMethodCash)
	require.NoError(t, err)

	ordB := createOrder(t, svc, sh.ID, 3000)
	_, err = svc.CapturePayment(ordB.ID, sh.ID, 3000, models.PaymentMethodCard)
	require.NoError(t, err)

	// Giderler 10 + 5, personel ödemesi 50
	_, err = shiftSvc.RecordExpense(sh.ID, "market", 1000, "")
	require.NoError(t, err)
	_, err = shiftSvc.RecordExpense(sh.ID, "nakliye", 500, "")
	require.NoError(t, err)
	_, err = shiftSvc.RecordStaffPayment(sh.ID, 2, "avans", 5000, "")
	require.NoError(t, err)

	drawer, err := shiftSvc.Drawer(sh.ID)
	require.NoError(t, err)
	require.EqualValues(t, 7000, drawer.CashSales)
	require.EqualValues(t, 3000, drawer.CardSales)
	require.EqualValues(t, 10500, drawer.ExpectedCash())

	closed, err := shiftSvc.Close(sh.ID, 10500, 1)
	require.NoError(t, err)
	require.EqualValues(t, 0, *closed.Variance)
}
