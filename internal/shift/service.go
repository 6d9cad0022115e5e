package shift

import (
	"errors"
	"fmt"
	"time"

	"restoran-pos-terminal/internal/models"
	"restoran-pos-terminal/internal/syncqueue"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrShiftAlreadyActive = errors.New("bu personelin bu terminalde zaten aktif bir vardiyası var")
	ErrShiftNotFound      = errors.New("vardiya bulunamadı")
	ErrShiftNotActive     = errors.New("vardiya aktif değil")
	ErrStrictCloseBlocked = errors.New("bağlı kurye/garson vardiyaları kapatılmadan kasiyer vardiyası kapatılamaz")
	ErrNoDrawer           = errors.New("bu vardiyaya bağlı kasa oturumu yok")
	ErrInvalidAmount      = errors.New("tutar 0'dan büyük olmalı")
)

// Service: vardiya ve kasa mutabakat motoru. Kasa toplamları yalnızca
// tetikleyen kaydın transaction'ı içinde güncellenir; bellekten türetilmez.
type Service struct {
	db          *gorm.DB
	lg          *logrus.Logger
	strictClose bool
}

func NewService(db *gorm.DB, lg *logrus.Logger, strictClose bool) *Service {
	return &Service{db: db, lg: lg, strictClose: strictClose}
}

// Open: vardiya açar. Kasiyer için kasa oturumu oluşturur ve önceki
// kasiyerden devir bekleyen vardiyaları sahiplenir. Kurye/garson için
// starting cash verilen değerde kalır; 0 açılan vardiya kasadan
// "borç almaz", nakit ancak GiveDriverCash ile açıkça verilir.
func (s *Service) Open(staffID uint, role models.ShiftRole, branchID uint, terminalID string, openingCash int64) (*models.StaffShift, error) {
	if openingCash < 0 {
		return nil, ErrInvalidAmount
	}

	var shift models.StaffShift
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.StaffShift{}).
			Where("staff_id = ? AND terminal_id = ? AND status = ?", staffID, terminalID, models.ShiftStatusActive).
			Count(&count).Error; err != nil {
			return fmt.Errorf("aktif vardiya kontrolü başarısız: %w", err)
		}
		if count > 0 {
			return ErrShiftAlreadyActive
		}

		shift = models.StaffShift{
			LocalID:     uuid.NewString(),
			BranchID:    branchID,
			TerminalID:  terminalID,
			StaffID:     staffID,
			Role:        role,
			Status:      models.ShiftStatusActive,
			OpeningCash: openingCash,
			OpenedAt:    time.Now(),
		}

		if role != models.ShiftRoleCashier {
			// Açık kasiyer vardiyasına bağlan (varsa)
			var cashier models.StaffShift
			err := tx.Where("branch_id = ? AND terminal_id = ? AND role = ? AND status = ?",
				branchID, terminalID, models.ShiftRoleCashier, models.ShiftStatusActive).
				First(&cashier).Error
			if err == nil {
				shift.CashierShiftID = &cashier.ID
			} else if err != gorm.ErrRecordNotFound {
				return fmt.Errorf("kasiyer vardiyası okunamadı: %w", err)
			}
		}

		if err := tx.Create(&shift).Error; err != nil {
			return fmt.Errorf("vardiya oluşturulamadı: %w", err)
		}

		if role == models.ShiftRoleCashier {
			drawer := models.CashDrawerSession{
				StaffShiftID: shift.ID,
				BranchID:     branchID,
				OpeningCash:  openingCash,
			}
			if err := tx.Create(&drawer).Error; err != nil {
				return fmt.Errorf("kasa oturumu oluşturulamadı: %w", err)
			}

			// Devir bekleyen kurye/garson vardiyalarını sahiplen.
			// Kuryenin iade edeceği nakit fiilen bu kasaya gireceği için
			// başka bir aktarım gerekmez; iade anında DriverCashReturned işler.
			var pending []models.StaffShift
			if err := tx.Where("branch_id = ? AND is_transfer_pending = ? AND status = ?",
				branchID, true, models.ShiftStatusActive).
				Find(&pending).Error; err != nil {
				return fmt.Errorf("devir bekleyen vardiyalar okunamadı: %w", err)
			}
			for i := range pending {
				pending[i].IsTransferPending = false
				pending[i].CashierShiftID = &shift.ID
				pending[i].TransferredToCashierShiftID = &shift.ID
				if err := tx.Save(&pending[i]).Error; err != nil {
					return fmt.Errorf("devir sahiplenilemedi: %w", err)
				}
				if err := syncqueue.Enqueue(tx, models.TableStaffShifts, pending[i].LocalID, models.SyncOpUpsert); err != nil {
					return err
				}
			}
			if len(pending) > 0 {
				s.lg.Infof("yeni kasiyer vardiyası %d devir bekleyen vardiyayı sahiplendi", len(pending))
			}
		}

		return syncqueue.Enqueue(tx, models.TableStaffShifts, shift.LocalID, models.SyncOpUpsert)
	})
	if err != nil {
		return nil, err
	}
	return &shift, nil
}

// Active: personelin bu terminaldeki aktif vardiyası.
func (s *Service) Active(staffID uint, terminalID string) (*models.StaffShift, error) {
	var shift models.StaffShift
	err := s.db.Where("staff_id = ? AND terminal_id = ? AND status = ?",
		staffID, terminalID, models.ShiftStatusActive).First(&shift).Error
	if err == gorm.ErrRecordNotFound {
		return nil, ErrShiftNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("aktif vardiya okunamadı: %w", err)
	}
	return &shift, nil
}

// Drawer: vardiyanın kasa oturumu. Kurye/garson için bağlı kasiyerin kasası.
func (s *Service) Drawer(shiftID uint) (*models.CashDrawerSession, error) {
	return drawerForShift(s.db, shiftID)
}

func drawerForShift(tx *gorm.DB, shiftID uint) (*models.CashDrawerSession, error) {
	var shift models.StaffShift
	if err := tx.First(&shift, shiftID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrShiftNotFound
		}
		return nil, fmt.Errorf("vardiya okunamadı: %w", err)
	}

	drawerShiftID := shift.ID
	if shift.Role != models.ShiftRoleCashier {
		if shift.CashierShiftID == nil {
			return nil, ErrNoDrawer
		}
		drawerShiftID = *shift.CashierShiftID
	}

	var drawer models.CashDrawerSession
	if err := tx.Where("staff_shift_id = ?", drawerShiftID).First(&drawer).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNoDrawer
		}
		return nil, fmt.Errorf("kasa oturumu okunamadı: %w", err)
	}
	return &drawer, nil
}

// RecordExpense: gider satırı + kasa toplamı + sync girdisi tek transaction.
func (s *Service) RecordExpense(shiftID uint, expenseType string, amount int64, description string) (*models.Expense, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	var exp models.Expense
	err := s.db.Transaction(func(tx *gorm.DB) error {
		shift, err := activeShift(tx, shiftID)
		if err != nil {
			return err
		}

		exp = models.Expense{
			LocalID:      uuid.NewString(),
			BranchID:     shift.BranchID,
			StaffShiftID: shift.ID,
			Type:         expenseType,
			Amount:       amount,
			Description:  description,
		}
		if err := tx.Create(&exp).Error; err != nil {
			return fmt.Errorf("gider kaydedilemedi: %w", err)
		}

		drawer, err := drawerForShift(tx, shift.ID)
		if err != nil {
			return err
		}
		if err := tx.Model(drawer).Update("expenses", gorm.Expr("expenses + ?", amount)).Error; err != nil {
			return fmt.Errorf("kasa gider toplamı güncellenemedi: %w", err)
		}

		return syncqueue.Enqueue(tx, models.TableExpenses, exp.LocalID, models.SyncOpUpsert)
	})
	if err != nil {
		return nil, err
	}
	return &exp, nil
}

// RecordStaffPayment: personele vardiya içinden yapılan ödeme (avans vb).
func (s *Service) RecordStaffPayment(shiftID, paidToID uint, paymentType string, amount int64, description string) (*models.StaffPayment, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	var sp models.StaffPayment
	err := s.db.Transaction(func(tx *gorm.DB) error {
		shift, err := activeShift(tx, shiftID)
		if err != nil {
			return err
		}

		sp = models.StaffPayment{
			LocalID:      uuid.NewString(),
			BranchID:     shift.BranchID,
			StaffShiftID: shift.ID,
			PaidToID:     paidToID,
			Type:         paymentType,
			Amount:       amount,
			Description:  description,
		}
		if err := tx.Create(&sp).Error; err != nil {
			return fmt.Errorf("personel ödemesi kaydedilemedi: %w", err)
		}

		drawer, err := drawerForShift(tx, shift.ID)
		if err != nil {
			return err
		}
		if err := tx.Model(drawer).Update("staff_payments", gorm.Expr("staff_payments + ?", amount)).Error; err != nil {
			return fmt.Errorf("kasa personel ödemesi toplamı güncellenemedi: %w", err)
		}

		return syncqueue.Enqueue(tx, models.TableStaffPayments, sp.LocalID, models.SyncOpUpsert)
	})
	if err != nil {
		return nil, err
	}
	return &sp, nil
}

// GiveDriverCash: kasadan kuryeye nakit verilir; kurye vardiyasının
// starting cash'i ve kasanın DriverCashGiven'ı birlikte artar.
func (s *Service) GiveDriverCash(driverShiftID uint, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		shift, err := activeShift(tx, driverShiftID)
		if err != nil {
			return err
		}
		if shift.Role == models.ShiftRoleCashier {
			return fmt.Errorf("kasiyer vardiyasına kurye nakiti verilemez")
		}

		drawer, err := drawerForShift(tx, shift.ID)
		if err != nil {
			return err
		}
		if err := tx.Model(drawer).Update("driver_cash_given", gorm.Expr("driver_cash_given + ?", amount)).Error; err != nil {
			return fmt.Errorf("kasa kurye nakiti güncellenemedi: %w", err)
		}
		if err := tx.Model(shift).Update("opening_cash", gorm.Expr("opening_cash + ?", amount)).Error; err != nil {
			return fmt.Errorf("kurye starting cash güncellenemedi: %w", err)
		}

		return syncqueue.Enqueue(tx, models.TableStaffShifts, shift.LocalID, models.SyncOpUpsert)
	})
}

// RecordSale: ödeme alınırken kasa satış toplamlarını aynı transaction
// içinde işler. Order servisi kendi tx'iyle çağırır.
func RecordSale(tx *gorm.DB, shiftID uint, method models.PaymentMethod, amount int64) error {
	drawer, err := drawerForShift(tx, shiftID)
	if err != nil {
		// Kurye/garson henüz kasiyere bağlı değilse satış kasaya işlenmez;
		// tutar yine sipariş/ödeme kayıtlarında durur
		if err == ErrNoDrawer {
			return nil
		}
		return err
	}

	column := "card_sales"
	if method == models.PaymentMethodCash {
		column = "cash_sales"
	}
	if err := tx.Model(drawer).Update(column, gorm.Expr(column+" + ?", amount)).Error; err != nil {
		return fmt.Errorf("kasa satış toplamı güncellenemedi: %w", err)
	}
	return nil
}

// RecordDelivery: kurye teslimatı tamamlandığında (kurye vardiyası,
// sipariş) başına tek hak ediş kaydı yazar.
func (s *Service) RecordDelivery(driverShiftID, orderID uint, deliveryFee, tip, cashCollected, cardAmount int64) (*models.DriverEarning, error) {
	var earning models.DriverEarning
	err := s.db.Transaction(func(tx *gorm.DB) error {
		shift, err := activeShift(tx, driverShiftID)
		if err != nil {
			return err
		}
		if shift.Role != models.ShiftRoleDriver {
			return fmt.Errorf("hak ediş yalnızca kurye vardiyasına yazılabilir")
		}

		var count int64
		if err := tx.Model(&models.DriverEarning{}).
			Where("driver_shift_id = ? AND order_id = ?", driverShiftID, orderID).
			Count(&count).Error; err != nil {
			return fmt.Errorf("hak ediş kontrolü başarısız: %w", err)
		}
		if count > 0 {
			return fmt.Errorf("bu sipariş için hak ediş zaten kaydedilmiş")
		}

		cashToReturn := cashCollected - (deliveryFee + tip)
		if cashToReturn < 0 {
			cashToReturn = 0
		}

		earning = models.DriverEarning{
			LocalID:       uuid.NewString(),
			DriverShiftID: driverShiftID,
			OrderID:       orderID,
			DeliveryFee:   deliveryFee,
			Tip:           tip,
			CashCollected: cashCollected,
			CardAmount:    cardAmount,
			CashToReturn:  cashToReturn,
		}
		if err := tx.Create(&earning).Error; err != nil {
			return fmt.Errorf("hak ediş kaydedilemedi: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &earning, nil
}

// CashToReturn: kuryenin kapanışta iade etmesi beklenen nakit:
// starting cash + siparişlerden dönecek nakit.
func (s *Service) CashToReturn(driverShiftID uint) (int64, error) {
	var shift models.StaffShift
	if err := s.db.First(&shift, driverShiftID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, ErrShiftNotFound
		}
		return 0, fmt.Errorf("vardiya okunamadı: %w", err)
	}
	return expectedDriverReturn(s.db, &shift)
}

func expectedDriverReturn(tx *gorm.DB, shift *models.StaffShift) (int64, error) {
	var sum struct{ Total int64 }
	if err := tx.Model(&models.DriverEarning{}).
		Select("COALESCE(SUM(cash_to_return), 0) as total").
		Where("driver_shift_id = ?", shift.ID).
		Scan(&sum).Error; err != nil {
		return 0, fmt.Errorf("hak ediş toplamı okunamadı: %w", err)
	}
	return shift.OpeningCash + sum.Total, nil
}

// Close: vardiyayı kapatır ve varyansı hesaplayıp olduğu gibi saklar
// (para birimi hassasiyeti dışında yuvarlama yok).
//
// Kasiyer kapanışında hâlâ açık kurye/garson vardiyaları varsa varsayılan
// davranış devirdir: vardiyalar is_transfer_pending işaretlenir ve bir
// sonraki kasiyer açılışı sahiplenir. strictClose açıkken kapanış reddedilir.
func (s *Service) Close(shiftID uint, closingCash int64, closedBy uint) (*models.StaffShift, error) {
	if closingCash < 0 {
		return nil, ErrInvalidAmount
	}

	var shift models.StaffShift
	err := s.db.Transaction(func(tx *gorm.DB) error {
		found, err := activeShift(tx, shiftID)
		if err != nil {
			return err
		}
		shift = *found

		var expected int64
		switch shift.Role {
		case models.ShiftRoleCashier:
			var dependents []models.StaffShift
			if err := tx.Where("cashier_shift_id = ? AND status = ?", shift.ID, models.ShiftStatusActive).
				Find(&dependents).Error; err != nil {
				return fmt.Errorf("bağlı vardiyalar okunamadı: %w", err)
			}
			if len(dependents) > 0 {
				if s.strictClose {
					return ErrStrictCloseBlocked
				}
				for i := range dependents {
					dependents[i].IsTransferPending = true
					dependents[i].CashierShiftID = nil
					if err := tx.Save(&dependents[i]).Error; err != nil {
						return fmt.Errorf("devir işaretlenemedi: %w", err)
					}
					if err := syncqueue.Enqueue(tx, models.TableStaffShifts, dependents[i].LocalID, models.SyncOpUpsert); err != nil {
						return err
					}
				}
				s.lg.Infof("kasiyer kapanışı: %d bağlı vardiya sonraki kasiyere devredildi", len(dependents))
			}

			var drawer models.CashDrawerSession
			if err := tx.Where("staff_shift_id = ?", shift.ID).First(&drawer).Error; err != nil {
				if err == gorm.ErrRecordNotFound {
					return ErrNoDrawer
				}
				return fmt.Errorf("kasa oturumu okunamadı: %w", err)
			}
			expected = drawer.ExpectedCash()

		case models.ShiftRoleDriver:
			expected, err = expectedDriverReturn(tx, &shift)
			if err != nil {
				return err
			}
			// İade edilen nakit fiilen bağlı kasaya girer
			if shift.CashierShiftID != nil {
				var drawer models.CashDrawerSession
				if err := tx.Where("staff_shift_id = ?", *shift.CashierShiftID).First(&drawer).Error; err == nil {
					if err := tx.Model(&drawer).
						Update("driver_cash_returned", gorm.Expr("driver_cash_returned + ?", closingCash)).Error; err != nil {
						return fmt.Errorf("kasa kurye iadesi güncellenemedi: %w", err)
					}
				} else if err != gorm.ErrRecordNotFound {
					return fmt.Errorf("kasa oturumu okunamadı: %w", err)
				}
			}

		default: // garson
			expected = shift.OpeningCash
			if shift.CashierShiftID != nil {
				var drawer models.CashDrawerSession
				if err := tx.Where("staff_shift_id = ?", *shift.CashierShiftID).First(&drawer).Error; err == nil {
					if err := tx.Model(&drawer).
						Update("driver_cash_returned", gorm.Expr("driver_cash_returned + ?", closingCash)).Error; err != nil {
						return fmt.Errorf("kasa iadesi güncellenemedi: %w", err)
					}
				} else if err != gorm.ErrRecordNotFound {
					return fmt.Errorf("kasa oturumu okunamadı: %w", err)
				}
			}
		}

		variance := closingCash - expected
		now := time.Now()
		shift.Status = models.ShiftStatusClosed
		shift.ClosingCash = &closingCash
		shift.Variance = &variance
		shift.ClosedAt = &now
		shift.ClosedBy = &closedBy
		shift.SyncStatus = models.SyncStatusPending
		if err := tx.Save(&shift).Error; err != nil {
			return fmt.Errorf("vardiya kapatılamadı: %w", err)
		}

		return syncqueue.Enqueue(tx, models.TableStaffShifts, shift.LocalID, models.SyncOpUpsert)
	})
	if err != nil {
		return nil, err
	}
	return &shift, nil
}

func activeShift(tx *gorm.DB, shiftID uint) (*models.StaffShift, error) {
	var shift models.StaffShift
	if err := tx.First(&shift, shiftID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrShiftNotFound
		}
		return nil, fmt.Errorf("vardiya okunamadı: %w", err)
	}
	if shift.Status != models.ShiftStatusActive {
		return nil, ErrShiftNotActive
	}
	return &shift, nil
}
