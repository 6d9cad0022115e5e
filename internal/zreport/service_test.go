package zreport

import (
	"bytes"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"
	"time"

	"restoran-pos-terminal/internal/database"
	"restoran-pos-terminal/internal/models"
	"restoran-pos-terminal/internal/order"
	"restoran-pos-terminal/internal/shift"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

type testEnv struct {
	db       *gorm.DB
	reports  *Service
	orders   *order.Service
	shifts   *shift.Service
	cashier  *models.StaffShift
	driver   *models.StaffShift
}

// seedDay: bir kasiyer, bir kurye, iki sipariş, gider ve personel
// ödemesiyle tipik bir iş günü kurar.
func seedDay(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "pos.db"))
	require.NoError(t, err)
	require.NoError(t, database.EnsureBranch(db, 1, "Merkez Şube"))

	lg := logrus.New()
	lg.SetOutput(io.Discard)

	env := &testEnv{
		db:      db,
		reports: NewService(db, lg),
		orders:  order.NewService(db, lg, nil),
		shifts:  shift.NewService(db, lg, false),
	}

	users := []models.User{
		{Name: "Ayşe", Email: "ayse@pos.local", PasswordHash: "x", Role: models.RoleCashier},
		{Name: "Mehmet", Email: "mehmet@pos.local", PasswordHash: "x", Role: models.RoleDriver},
		{Name: "Kemal", Email: "kemal@pos.local", PasswordHash: "x", Role: models.RoleServer},
	}
	for i := range users {
		require.NoError(t, db.Create(&users[i]).Error)
	}

	env.cashier, err = env.shifts.Open(users[0].ID, models.ShiftRoleCashier, 1, "terminal-1", 10000)
	require.NoError(t, err)
	env.driver, err = env.shifts.Open(users[1].ID, models.ShiftRoleDriver, 1, "terminal-1", 0)
	require.NoError(t, err)

	// Salon siparişi: kasiyer tahsil eder
	dineIn, err := env.orders.Create(order.CreateInput{
		BranchID: 1, TerminalID: "terminal-1",
		Type: models.OrderTypeDineIn, StaffShiftID: env.cashier.ID,
		Items: []order.ItemInput{{Name: "İskender", Quantity: 2, UnitPrice: 2500}},
	})
	require.NoError(t, err)
	_, err = env.orders.CapturePayment(dineIn.ID, env.cashier.ID, 5000, models.PaymentMethodCash)
	require.NoError(t, err)
	completeOrder(t, env.orders, dineIn.ID)

	// Paket sipariş: kurye teslim eder, hak edişi yazılır
	delivery, err := env.orders.Create(order.CreateInput{
		BranchID: 1, TerminalID: "terminal-1",
		Type: models.OrderTypeDelivery, StaffShiftID: env.cashier.ID,
		Items:       []order.ItemInput{{Name: "Pide", Quantity: 1, UnitPrice: 3000}},
		DeliveryFee: 500,
	})
	require.NoError(t, err)
	_, err = env.orders.CapturePayment(delivery.ID, env.cashier.ID, 3500, models.PaymentMethodCard)
	require.NoError(t, err)
	_, err = env.shifts.RecordDelivery(env.driver.ID, delivery.ID, 500, 0, 2000, 1500)
	require.NoError(t, err)
	completeOrder(t, env.orders, delivery.ID)

	_, err = env.shifts.RecordExpense(env.cashier.ID, "market", 1000, "")
	require.NoError(t, err)
	_, err = env.shifts.RecordStaffPayment(env.cashier.ID, users[2].ID, "yevmiye", 2000, "")
	require.NoError(t, err)

	return env
}

// completeOrder: siparişi kapanışa kadar yürütür.
func completeOrder(t *testing.T, svc *order.Service, orderID uint) {
	t.Helper()
	for _, st := range []models.OrderStatus{
		models.OrderStatusConfirmed, models.OrderStatusPreparing,
		models.OrderStatusReady, models.OrderStatusCompleted,
	} {
		_, err := svc.AdvanceStatus(orderID, st)
		require.NoError(t, err)
	}
}

func reportData(t *testing.T, report *models.ZReport) ReportData {
	t.Helper()
	var data ReportData
	require.NoError(t, json.Unmarshal([]byte(report.ReportData), &data))
	return data
}

func TestGenerateAggregatesDay(t *testing.T) {
	env := seedDay(t)

	report, err := env.reports.Generate(1, time.Now(), 1)
	require.NoError(t, err)

	require.EqualValues(t, 8500, report.GrossSales)
	require.EqualValues(t, 8500, report.NetSales)
	require.EqualValues(t, 5000, report.CashSales)
	require.EqualValues(t, 3500, report.CardSales)
	require.EqualValues(t, 1000, report.TotalExpenses)
	require.Equal(t, 2, report.OrderCount)

	data := reportData(t, report)
	require.EqualValues(t, 2000, data.Expenses.StaffPaymentsTotal)
	require.EqualValues(t, 10000, data.CashDrawer.OpeningTotal)
}

func TestOpenOrdersExcludedFromSales(t *testing.T) {
	env := seedDay(t)

	// Gün sonunda hâlâ açık (ödenmemiş, tamamlanmamış) sipariş ciroya girmez
	open, err := env.orders.Create(order.CreateInput{
		BranchID: 1, TerminalID: "terminal-1",
		Type: models.OrderTypeDineIn, StaffShiftID: env.cashier.ID,
		Items: []order.ItemInput{{Name: "Künefe", Quantity: 3, UnitPrice: 3300}},
	})
	require.NoError(t, err)

	report, err := env.reports.Generate(1, time.Now(), 1)
	require.NoError(t, err)

	require.EqualValues(t, 8500, report.GrossSales)
	require.Equal(t, 2, report.OrderCount)

	data := reportData(t, report)
	for _, r := range data.StaffReports {
		for _, od := range r.OrdersDetails {
			require.NotEqual(t, open.ID, od.OrderID)
		}
	}
}

func TestGenerateIdempotentPerDay(t *testing.T) {
	env := seedDay(t)

	first, err := env.reports.Generate(1, time.Now(), 1)
	require.NoError(t, err)
	second, err := env.reports.Generate(1, time.Now(), 1)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, first.ReportData, second.ReportData)

	// İkinci çağrı yeni sync girdisi üretmez
	var count int64
	require.NoError(t, env.db.Model(&models.SyncQueueEntry{}).
		Where("table_name = ?", models.TableZReports).
		Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestOrderAttributionIsExclusive(t *testing.T) {
	env := seedDay(t)

	report, err := env.reports.Generate(1, time.Now(), 1)
	require.NoError(t, err)
	data := reportData(t, report)

	// Delivery kurye raporuna, salon siparişi kasiyere; toplam sipariş
	// adedi rapor geneliyle tutar, hiçbir sipariş iki kez sayılmaz
	totalAttributed := 0
	seen := map[uint]bool{}
	var cashierReport, driverReport *StaffReport
	for i := range data.StaffReports {
		r := &data.StaffReports[i]
		totalAttributed += len(r.OrdersDetails)
		for _, od := range r.OrdersDetails {
			require.False(t, seen[od.OrderID])
			seen[od.OrderID] = true
		}
		switch r.Role {
		case models.RoleCashier:
			cashierReport = r
		case models.RoleDriver:
			driverReport = r
		}
	}
	require.Equal(t, report.OrderCount, totalAttributed)

	require.NotNil(t, cashierReport)
	require.Len(t, cashierReport.OrdersDetails, 1)
	require.Equal(t, models.OrderTypeDineIn, cashierReport.OrdersDetails[0].Type)

	require.NotNil(t, driverReport)
	require.Len(t, driverReport.OrdersDetails, 1)
	require.Equal(t, models.OrderTypeDelivery, driverReport.OrdersDetails[0].Type)
}

func TestDriverBreakdownMatchesTotals(t *testing.T) {
	env := seedDay(t)

	report, err := env.reports.Generate(1, time.Now(), 1)
	require.NoError(t, err)
	data := reportData(t, report)

	require.EqualValues(t, 2000, data.DriverEarnings.CashCollectedTotal)
	require.EqualValues(t, 1500, data.DriverEarnings.CardTotal)
	require.EqualValues(t, 500, data.DriverEarnings.FeesTotal)
	require.EqualValues(t, 1500, data.DriverEarnings.CashToReturnTotal)

	var breakdownCash, breakdownReturn int64
	for _, d := range data.CashDrawer.DriverCashBreakdown {
		breakdownCash += d.CashCollected
		breakdownReturn += d.CashToReturn
	}
	require.Equal(t, data.DriverEarnings.CashCollectedTotal, breakdownCash)
	require.Equal(t, data.DriverEarnings.CashToReturnTotal, breakdownReturn)
	require.Len(t, data.CashDrawer.DriverCashBreakdown, 1)
	require.Equal(t, "Mehmet", data.CashDrawer.DriverCashBreakdown[0].DriverName)
}

func TestStaffPaymentsAttributedToRecipient(t *testing.T) {
	env := seedDay(t)

	report, err := env.reports.Generate(1, time.Now(), 1)
	require.NoError(t, err)
	data := reportData(t, report)

	var total int64
	for _, r := range data.StaffReports {
		total += r.StaffPaymentsReceived
		if r.Name == "Kemal" {
			require.EqualValues(t, 2000, r.StaffPaymentsReceived)
		}
	}
	require.Equal(t, data.Expenses.StaffPaymentsTotal, total)
}

func TestRefundsReduceNetSales(t *testing.T) {
	env := seedDay(t)

	var payment models.Payment
	require.NoError(t, env.db.Where("method = ?", models.PaymentMethodCash).First(&payment).Error)
	_, err := env.orders.Refund(payment.ID, 1000, "eksik ürün")
	require.NoError(t, err)

	report, err := env.reports.Generate(1, time.Now(), 1)
	require.NoError(t, err)

	data := reportData(t, report)
	require.EqualValues(t, 1000, data.Sales.Refunds)
	require.EqualValues(t, 7500, report.NetSales)
}

func TestExportExcelProducesWorkbook(t *testing.T) {
	env := seedDay(t)

	report, err := env.reports.Generate(1, time.Now(), 1)
	require.NoError(t, err)

	buf, exported, err := env.reports.Export(report.ID)
	require.NoError(t, err)
	require.NotEmpty(t, buf)
	require.Equal(t, report.ID, exported.ID)
	// xlsx dosyaları zip imzasıyla başlar
	require.Equal(t, []byte{'P', 'K'}, buf[:2])

	f, err := excelize.OpenReader(bytes.NewReader(buf))
	require.NoError(t, err)
	defer f.Close()

	name, err := f.GetCellValue("Z Raporu", "B1")
	require.NoError(t, err)
	require.Equal(t, "Merkez Şube", name)
}
