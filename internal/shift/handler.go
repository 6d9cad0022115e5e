package shift

import (
	"errors"
	"fmt"

	"restoran-pos-terminal/internal/audit"
	"restoran-pos-terminal/internal/auth"
	"restoran-pos-terminal/internal/config"
	"restoran-pos-terminal/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// -------------------------------------------------
// POST /api/shifts/open
// -------------------------------------------------
func OpenShiftHandler(svc *Service, db *gorm.DB, cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body struct {
			StaffID     uint             `json:"staff_id"`
			Role        models.ShiftRole `json:"role"`
			OpeningCash int64            `json:"opening_cash"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		switch body.Role {
		case models.ShiftRoleCashier, models.ShiftRoleDriver, models.ShiftRoleServer:
			// ok
		default:
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz rol (cashier|driver|server)")
		}

		sh, err := svc.Open(body.StaffID, body.Role, cfg.BranchID, cfg.TerminalID, body.OpeningCash)
		if err != nil {
			return mapShiftError(err)
		}

		writeShiftAudit(c, db, sh.ID, models.AuditActionCreate,
			fmt.Sprintf("Vardiya açıldı: %s, açılış %d kuruş", sh.Role, sh.OpeningCash), sh)

		return c.Status(fiber.StatusCreated).JSON(sh)
	}
}

// -------------------------------------------------
// POST /api/shifts/:id/close
// -------------------------------------------------
func CloseShiftHandler(svc *Service, db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "id geçersiz")
		}

		var body struct {
			ClosingCash int64 `json:"closing_cash"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		userID, err := auth.CurrentUserID(c)
		if err != nil {
			return err
		}

		sh, err := svc.Close(uint(id), body.ClosingCash, userID)
		if err != nil {
			return mapShiftError(err)
		}

		writeShiftAudit(c, db, sh.ID, models.AuditActionUpdate,
			fmt.Sprintf("Vardiya kapandı: sayım %d, fark %d kuruş", *sh.ClosingCash, *sh.Variance), sh)

		return c.JSON(sh)
	}
}

// -------------------------------------------------
// GET /api/shifts/active?staff_id=3
// -------------------------------------------------
func ActiveShiftHandler(svc *Service, cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		staffIDStr := c.Query("staff_id")
		var staffID uint
		if staffIDStr == "" {
			userID, err := auth.CurrentUserID(c)
			if err != nil {
				return err
			}
			staffID = userID
		} else if _, err := fmt.Sscan(staffIDStr, &staffID); err != nil || staffID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "staff_id geçersiz")
		}

		sh, err := svc.Active(staffID, cfg.TerminalID)
		if err != nil {
			return mapShiftError(err)
		}
		return c.JSON(sh)
	}
}

// -------------------------------------------------
// GET /api/shifts/:id/drawer
// -------------------------------------------------
func DrawerHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "id geçersiz")
		}

		drawer, err := svc.Drawer(uint(id))
		if err != nil {
			return mapShiftError(err)
		}
		return c.JSON(fiber.Map{
			"drawer":        drawer,
			"expected_cash": drawer.ExpectedCash(),
		})
	}
}

// -------------------------------------------------
// POST /api/shifts/:id/expenses
// -------------------------------------------------
func RecordExpenseHandler(svc *Service, db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "id geçersiz")
		}

		var body struct {
			Type        string `json:"type"`
			Amount      int64  `json:"amount"`
			Description string `json:"description"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}
		if body.Type == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Gider tipi zorunlu")
		}

		exp, err := svc.RecordExpense(uint(id), body.Type, body.Amount, body.Description)
		if err != nil {
			return mapShiftError(err)
		}

		writeShiftAudit(c, db, uint(id), models.AuditActionCreate,
			fmt.Sprintf("Gider eklendi: %s - %d kuruş", exp.Type, exp.Amount), exp)

		return c.Status(fiber.StatusCreated).JSON(exp)
	}
}

// -------------------------------------------------
// POST /api/shifts/:id/staff-payments
// -------------------------------------------------
func RecordStaffPaymentHandler(svc *Service, db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "id geçersiz")
		}

		var body struct {
			PaidToID    uint   `json:"paid_to_id"`
			Type        string `json:"type"`
			Amount      int64  `json:"amount"`
			Description string `json:"description"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}
		if body.PaidToID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "paid_to_id zorunlu")
		}

		sp, err := svc.RecordStaffPayment(uint(id), body.PaidToID, body.Type, body.Amount, body.Description)
		if err != nil {
			return mapShiftError(err)
		}

		writeShiftAudit(c, db, uint(id), models.AuditActionCreate,
			fmt.Sprintf("Personel ödemesi: %d kuruş", sp.Amount), sp)

		return c.Status(fiber.StatusCreated).JSON(sp)
	}
}

// -------------------------------------------------
// POST /api/shifts/:id/driver-cash
// -------------------------------------------------
func GiveDriverCashHandler(svc *Service, db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "id geçersiz")
		}

		var body struct {
			Amount int64 `json:"amount"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		if err := svc.GiveDriverCash(uint(id), body.Amount); err != nil {
			return mapShiftError(err)
		}

		writeShiftAudit(c, db, uint(id), models.AuditActionUpdate,
			fmt.Sprintf("Kuryeye nakit verildi: %d kuruş", body.Amount), nil)

		return c.JSON(fiber.Map{"shift_id": id, "amount": body.Amount})
	}
}

// -------------------------------------------------
// POST /api/shifts/:id/deliveries
// -------------------------------------------------
func RecordDeliveryHandler(svc *Service, db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "id geçersiz")
		}

		var body struct {
			OrderID       uint  `json:"order_id"`
			DeliveryFee   int64 `json:"delivery_fee"`
			Tip           int64 `json:"tip"`
			CashCollected int64 `json:"cash_collected"`
			CardAmount    int64 `json:"card_amount"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}
		if body.OrderID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "order_id zorunlu")
		}

		earning, err := svc.RecordDelivery(uint(id), body.OrderID, body.DeliveryFee, body.Tip, body.CashCollected, body.CardAmount)
		if err != nil {
			return mapShiftError(err)
		}

		writeShiftAudit(c, db, uint(id), models.AuditActionCreate,
			fmt.Sprintf("Teslimat hak edişi: sipariş %d, nakit %d kuruş", earning.OrderID, earning.CashCollected), earning)

		return c.Status(fiber.StatusCreated).JSON(earning)
	}
}

func mapShiftError(err error) error {
	switch {
	case errors.Is(err, ErrShiftNotFound), errors.Is(err, ErrNoDrawer):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrShiftAlreadyActive),
		errors.Is(err, ErrShiftNotActive),
		errors.Is(err, ErrStrictCloseBlocked),
		errors.Is(err, ErrInvalidAmount):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "İşlem tamamlanamadı")
	}
}

func writeShiftAudit(c *fiber.Ctx, db *gorm.DB, shiftID uint, action models.AuditAction, desc string, after any) {
	userID, err := auth.CurrentUserID(c)
	if err != nil {
		return
	}
	var user models.User
	_ = db.First(&user, userID).Error

	if logErr := audit.WriteLog(db, audit.LogOptions{
		BranchID:    user.BranchID,
		UserID:      userID,
		UserName:    user.Name,
		EntityType:  "staff_shift",
		EntityID:    shiftID,
		Action:      action,
		Description: desc,
		After:       after,
	}); logErr != nil {
		fmt.Printf("Audit log yazılamadı: %v\n", logErr)
	}
}
