package zreport

import (
	"encoding/json"
	"fmt"
	"time"

	"restoran-pos-terminal/internal/models"
	"restoran-pos-terminal/internal/syncqueue"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Rapor gövdesi ReportData kolonunda JSON olarak saklanır.

type SalesSummary struct {
	Gross      int64 `json:"gross"`
	Net        int64 `json:"net"`
	Cash       int64 `json:"cash"`
	Card       int64 `json:"card"`
	Refunds    int64 `json:"refunds"`
	OrderCount int   `json:"order_count"`
}

type ExpenseSummary struct {
	Total              int64         `json:"total"`
	StaffPaymentsTotal int64         `json:"staff_payments_total"`
	Items              []ExpenseLine `json:"items"`
}

type ExpenseLine struct {
	Type        string `json:"type"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}

type DriverEarningsSummary struct {
	CashCollectedTotal int64 `json:"cash_collected_total"`
	CardTotal          int64 `json:"card_total"`
	FeesTotal          int64 `json:"fees_total"`
	TipsTotal          int64 `json:"tips_total"`
	CashToReturnTotal  int64 `json:"cash_to_return_total"`
}

type DriverCashEntry struct {
	DriverShiftID uint   `json:"driver_shift_id"`
	DriverID      uint   `json:"driver_id"`
	DriverName    string `json:"driver_name"`
	CashCollected int64  `json:"cash_collected"`
	CashToReturn  int64  `json:"cash_to_return"`
}

type CashDrawerSummary struct {
	OpeningTotal        int64             `json:"opening_total"`
	CashSales           int64             `json:"cash_sales"`
	CardSales           int64             `json:"card_sales"`
	Expenses            int64             `json:"expenses"`
	StaffPayments       int64             `json:"staff_payments"`
	DriverCashGiven     int64             `json:"driver_cash_given"`
	DriverCashReturned  int64             `json:"driver_cash_returned"`
	DriverCashBreakdown []DriverCashEntry `json:"driver_cash_breakdown"`
}

type OrderDetail struct {
	OrderID uint             `json:"order_id"`
	LocalID string           `json:"local_id"`
	Type    models.OrderType `json:"type"`
	Total   int64            `json:"total"`
}

type StaffReport struct {
	StaffID               uint             `json:"staff_id"`
	Name                  string           `json:"name"`
	Role                  models.UserRole  `json:"role"`
	OrdersDetails         []OrderDetail    `json:"orders_details"`
	OrdersTotal           int64            `json:"orders_total"`
	StaffPaymentsReceived int64            `json:"staff_payments_received"`
}

type ReportData struct {
	Sales          SalesSummary          `json:"sales"`
	Expenses       ExpenseSummary        `json:"expenses"`
	DriverEarnings DriverEarningsSummary `json:"driver_earnings"`
	CashDrawer     CashDrawerSummary     `json:"cash_drawer"`
	StaffReports   []StaffReport         `json:"staff_reports"`
}

type Service struct {
	db *gorm.DB
	lg *logrus.Logger
}

func NewService(db *gorm.DB, lg *logrus.Logger) *Service {
	return &Service{db: db, lg: lg}
}

// Generate: (şube, gün) başına tek rapor. Aynı gün için tekrar çağrı
// mevcut satırı değiştirmeden döndürür; ikinci bir sync kuyruğu girdisi
// de oluşmaz. Rapor bir kez üretildikten sonra düzenlenmez.
func (s *Service) Generate(branchID uint, date time.Time, generatedBy uint) (*models.ZReport, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	var report models.ZReport
	err := s.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("branch_id = ? AND report_date = ?", branchID, dayStart).First(&report).Error
		if err == nil {
			// Idempotent: var olan rapor olduğu gibi döner
			return nil
		}
		if err != gorm.ErrRecordNotFound {
			return fmt.Errorf("Z raporu okunamadı: %w", err)
		}

		data, err := s.aggregate(tx, branchID, dayStart, dayEnd)
		if err != nil {
			return err
		}

		raw, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("rapor verisi oluşturulamadı: %w", err)
		}

		report = models.ZReport{
			LocalID:       uuid.NewString(),
			BranchID:      branchID,
			ReportDate:    dayStart,
			GeneratedByID: generatedBy,
			GrossSales:    data.Sales.Gross,
			NetSales:      data.Sales.Net,
			CashSales:     data.Sales.Cash,
			CardSales:     data.Sales.Card,
			TotalExpenses: data.Expenses.Total,
			OrderCount:    data.Sales.OrderCount,
			ReportData:    string(raw),
			SyncStatus:    models.SyncStatusPending,
		}
		if err := tx.Create(&report).Error; err != nil {
			return fmt.Errorf("Z raporu kaydedilemedi: %w", err)
		}

		return syncqueue.Enqueue(tx, models.TableZReports, report.LocalID, models.SyncOpUpsert)
	})
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (s *Service) aggregate(tx *gorm.DB, branchID uint, dayStart, dayEnd time.Time) (*ReportData, error) {
	data := &ReportData{}

	// Günün tamamlanmış siparişleri; açık ve iptal siparişler ciroya girmez
	var orders []models.Order
	if err := tx.Where("branch_id = ? AND created_at >= ? AND created_at < ? AND status IN ?",
		branchID, dayStart, dayEnd,
		[]models.OrderStatus{models.OrderStatusDelivered, models.OrderStatusCompleted}).
		Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("siparişler okunamadı: %w", err)
	}

	orderIDs := make([]uint, 0, len(orders))
	for _, o := range orders {
		data.Sales.Gross += o.Total
		data.Sales.OrderCount++
		orderIDs = append(orderIDs, o.ID)
	}

	// Ödemeler (void hariç) yöntem bazında
	if len(orderIDs) > 0 {
		var payments []models.Payment
		if err := tx.Where("order_id IN ? AND voided = ?", orderIDs, false).Find(&payments).Error; err != nil {
			return nil, fmt.Errorf("ödemeler okunamadı: %w", err)
		}
		paymentIDs := make([]uint, 0, len(payments))
		for _, p := range payments {
			if p.Method == models.PaymentMethodCash {
				data.Sales.Cash += p.Amount
			} else {
				data.Sales.Card += p.Amount
			}
			paymentIDs = append(paymentIDs, p.ID)
		}

		if len(paymentIDs) > 0 {
			var refundSum struct{ Total int64 }
			if err := tx.Model(&models.PaymentAdjustment{}).
				Select("COALESCE(SUM(amount), 0) as total").
				Where("payment_id IN ? AND type = ?", paymentIDs, models.AdjustmentTypeRefund).
				Scan(&refundSum).Error; err != nil {
				return nil, fmt.Errorf("iadeler okunamadı: %w", err)
			}
			data.Sales.Refunds = refundSum.Total
		}
	}
	data.Sales.Net = data.Sales.Gross - data.Sales.Refunds

	// Giderler
	var expenses []models.Expense
	if err := tx.Where("branch_id = ? AND created_at >= ? AND created_at < ?", branchID, dayStart, dayEnd).
		Find(&expenses).Error; err != nil {
		return nil, fmt.Errorf("giderler okunamadı: %w", err)
	}
	for _, e := range expenses {
		data.Expenses.Total += e.Amount
		data.Expenses.Items = append(data.Expenses.Items, ExpenseLine{
			Type: e.Type, Amount: e.Amount, Description: e.Description,
		})
	}

	// Personel ödemeleri: rol fark etmeksizin kime ödendiyse onun
	// raporuna işlenir; toplamları StaffPaymentsTotal ile birebir tutar
	var staffPayments []models.StaffPayment
	if err := tx.Where("branch_id = ? AND created_at >= ? AND created_at < ?", branchID, dayStart, dayEnd).
		Find(&staffPayments).Error; err != nil {
		return nil, fmt.Errorf("personel ödemeleri okunamadı: %w", err)
	}
	paymentsByStaff := map[uint]int64{}
	for _, sp := range staffPayments {
		data.Expenses.StaffPaymentsTotal += sp.Amount
		paymentsByStaff[sp.PaidToID] += sp.Amount
	}

	// Günün vardiyaları ve kasa oturumları
	var shifts []models.StaffShift
	if err := tx.Where("branch_id = ? AND opened_at < ? AND (closed_at IS NULL OR closed_at >= ?)",
		branchID, dayEnd, dayStart).
		Find(&shifts).Error; err != nil {
		return nil, fmt.Errorf("vardiyalar okunamadı: %w", err)
	}
	shiftByID := map[uint]*models.StaffShift{}
	shiftIDs := make([]uint, 0, len(shifts))
	for i := range shifts {
		shiftByID[shifts[i].ID] = &shifts[i]
		shiftIDs = append(shiftIDs, shifts[i].ID)
	}

	if len(shiftIDs) > 0 {
		var drawers []models.CashDrawerSession
		if err := tx.Where("staff_shift_id IN ?", shiftIDs).Find(&drawers).Error; err != nil {
			return nil, fmt.Errorf("kasa oturumları okunamadı: %w", err)
		}
		for _, d := range drawers {
			data.CashDrawer.OpeningTotal += d.OpeningCash
			data.CashDrawer.CashSales += d.CashSales
			data.CashDrawer.CardSales += d.CardSales
			data.CashDrawer.Expenses += d.Expenses
			data.CashDrawer.StaffPayments += d.StaffPayments
			data.CashDrawer.DriverCashGiven += d.DriverCashGiven
			data.CashDrawer.DriverCashReturned += d.DriverCashReturned
		}
	}

	// Kurye hak edişleri: kasa dökümünde kurye vardiyası başına tek satır
	earningsByOrder := map[uint]*models.DriverEarning{}
	if len(shiftIDs) > 0 {
		var earnings []models.DriverEarning
		if err := tx.Where("driver_shift_id IN ?", shiftIDs).Find(&earnings).Error; err != nil {
			return nil, fmt.Errorf("hak edişler okunamadı: %w", err)
		}

		breakdownByShift := map[uint]*DriverCashEntry{}
		breakdownOrder := []uint{}
		for i := range earnings {
			e := &earnings[i]
			data.DriverEarnings.CashCollectedTotal += e.CashCollected
			data.DriverEarnings.CardTotal += e.CardAmount
			data.DriverEarnings.FeesTotal += e.DeliveryFee
			data.DriverEarnings.TipsTotal += e.Tip
			data.DriverEarnings.CashToReturnTotal += e.CashToReturn
			earningsByOrder[e.OrderID] = e

			entry, ok := breakdownByShift[e.DriverShiftID]
			if !ok {
				entry = &DriverCashEntry{DriverShiftID: e.DriverShiftID}
				if sh := shiftByID[e.DriverShiftID]; sh != nil {
					entry.DriverID = sh.StaffID
					var driver models.User
					if err := tx.First(&driver, sh.StaffID).Error; err == nil {
						entry.DriverName = driver.Name
					}
				}
				breakdownByShift[e.DriverShiftID] = entry
				breakdownOrder = append(breakdownOrder, e.DriverShiftID)
			}
			entry.CashCollected += e.CashCollected
			entry.CashToReturn += e.CashToReturn
		}
		for _, id := range breakdownOrder {
			data.CashDrawer.DriverCashBreakdown = append(data.CashDrawer.DriverCashBreakdown, *breakdownByShift[id])
		}
	}

	// Sipariş atfı: delivery siparişi hak edişteki kuryeye, diğerleri
	// siparişi açan personele; hiçbir sipariş iki personelde görünmez
	reportsByStaff := map[uint]*StaffReport{}
	staffOrder := []uint{}
	ensureReport := func(staffID uint) *StaffReport {
		if r, ok := reportsByStaff[staffID]; ok {
			return r
		}
		r := &StaffReport{StaffID: staffID}
		var u models.User
		if err := tx.First(&u, staffID).Error; err == nil {
			r.Name = u.Name
			r.Role = u.Role
		}
		reportsByStaff[staffID] = r
		staffOrder = append(staffOrder, staffID)
		return r
	}

	for _, o := range orders {
		var staffID uint
		if o.Type == models.OrderTypeDelivery {
			if e, ok := earningsByOrder[o.ID]; ok {
				if sh := shiftByID[e.DriverShiftID]; sh != nil {
					staffID = sh.StaffID
				}
			}
		}
		if staffID == 0 {
			if sh := shiftByID[o.StaffShiftID]; sh != nil {
				staffID = sh.StaffID
			} else {
				var sh models.StaffShift
				if err := tx.First(&sh, o.StaffShiftID).Error; err == nil {
					staffID = sh.StaffID
				}
			}
		}
		if staffID == 0 {
			continue
		}

		r := ensureReport(staffID)
		r.OrdersDetails = append(r.OrdersDetails, OrderDetail{
			OrderID: o.ID, LocalID: o.LocalID, Type: o.Type, Total: o.Total,
		})
		r.OrdersTotal += o.Total
	}

	for staffID, amount := range paymentsByStaff {
		ensureReport(staffID).StaffPaymentsReceived = amount
	}

	for _, id := range staffOrder {
		data.StaffReports = append(data.StaffReports, *reportsByStaff[id])
	}

	return data, nil
}

// Get: raporu id ile döndürür.
func (s *Service) Get(id uint) (*models.ZReport, error) {
	var report models.ZReport
	if err := s.db.First(&report, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("Z raporu bulunamadı")
		}
		return nil, fmt.Errorf("Z raporu okunamadı: %w", err)
	}
	return &report, nil
}
