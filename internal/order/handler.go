package order

import (
	"errors"
	"fmt"
	"time"

	"restoran-pos-terminal/internal/audit"
	"restoran-pos-terminal/internal/auth"
	"restoran-pos-terminal/internal/config"
	"restoran-pos-terminal/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

var validate = validator.New()

type CreateOrderRequest struct {
	Type        models.OrderType `json:"type"`
	ShiftID     uint             `json:"shift_id"`
	DriverID    *uint            `json:"driver_id"`
	Items       []ItemInput      `json:"items"`
	Tax         int64            `json:"tax"`
	Discount    int64            `json:"discount"`
	DeliveryFee int64            `json:"delivery_fee"`
	Tip         int64            `json:"tip"`
}

type OrderResponse struct {
	ID            uint                 `json:"id"`
	LocalID       string               `json:"local_id"`
	RemoteID      *string              `json:"remote_id"`
	Type          models.OrderType     `json:"type"`
	Status        models.OrderStatus   `json:"status"`
	Subtotal      int64                `json:"subtotal"`
	Tax           int64                `json:"tax"`
	Discount      int64                `json:"discount"`
	DeliveryFee   int64                `json:"delivery_fee"`
	Tip           int64                `json:"tip"`
	Total         int64                `json:"total"`
	PaymentStatus models.PaymentStatus `json:"payment_status"`
	SyncStatus    models.SyncStatus    `json:"sync_status"`
	CreatedAt     string               `json:"created_at"`
}

func toOrderResponse(o *models.Order) OrderResponse {
	return OrderResponse{
		ID:            o.ID,
		LocalID:       o.LocalID,
		RemoteID:      o.RemoteID,
		Type:          o.Type,
		Status:        o.Status,
		Subtotal:      o.Subtotal,
		Tax:           o.Tax,
		Discount:      o.Discount,
		DeliveryFee:   o.DeliveryFee,
		Tip:           o.Tip,
		Total:         o.Total,
		PaymentStatus: o.PaymentStatus,
		SyncStatus:    o.SyncStatus,
		CreatedAt:     o.CreatedAt.Format(time.RFC3339),
	}
}

// -------------------------------------------------
// POST /api/orders
// -------------------------------------------------
func CreateOrderHandler(svc *Service, db *gorm.DB, cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateOrderRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		in := CreateInput{
			BranchID:     cfg.BranchID,
			TerminalID:   cfg.TerminalID,
			Type:         body.Type,
			StaffShiftID: body.ShiftID,
			DriverID:     body.DriverID,
			Items:        body.Items,
			Tax:          body.Tax,
			Discount:     body.Discount,
			DeliveryFee:  body.DeliveryFee,
			Tip:          body.Tip,
		}
		if err := validate.Struct(in); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Sipariş alanları geçersiz: "+err.Error())
		}

		ord, err := svc.Create(in)
		if err != nil {
			return mapServiceError(err)
		}

		writeAudit(c, db, "order", ord.ID, models.AuditActionCreate,
			fmt.Sprintf("Sipariş oluşturuldu: %s, toplam %d kuruş", ord.Type, ord.Total), ord)

		return c.Status(fiber.StatusCreated).JSON(toOrderResponse(ord))
	}
}

// -------------------------------------------------
// GET /api/orders?from=2026-01-01&to=2026-01-31&status=completed
// -------------------------------------------------
func ListOrdersHandler(db *gorm.DB, cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := db.Model(&models.Order{}).Where("branch_id = ?", cfg.BranchID)

		if fromStr := c.Query("from"); fromStr != "" {
			from, err := time.Parse("2006-01-02", fromStr)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "from tarihi geçersiz")
			}
			dbq = dbq.Where("created_at >= ?", from)
		}
		if toStr := c.Query("to"); toStr != "" {
			to, err := time.Parse("2006-01-02", toStr)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "to tarihi geçersiz")
			}
			dbq = dbq.Where("created_at < ?", to.AddDate(0, 0, 1))
		}
		if status := c.Query("status"); status != "" {
			dbq = dbq.Where("status = ?", status)
		}

		var orders []models.Order
		if err := dbq.Order("created_at desc, id desc").Limit(500).Find(&orders).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Siparişler listelenemedi")
		}

		resp := make([]OrderResponse, 0, len(orders))
		for i := range orders {
			resp = append(resp, toOrderResponse(&orders[i]))
		}
		return c.JSON(resp)
	}
}

// -------------------------------------------------
// GET /api/orders/:id
// -------------------------------------------------
func GetOrderHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "id geçersiz")
		}

		ord, err := svc.Get(uint(id))
		if err != nil {
			return mapServiceError(err)
		}
		return c.JSON(ord)
	}
}

// -------------------------------------------------
// PUT /api/orders/:id/status
// -------------------------------------------------
func UpdateOrderStatusHandler(svc *Service, db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "id geçersiz")
		}

		var body struct {
			Status models.OrderStatus `json:"status"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		ord, err := svc.AdvanceStatus(uint(id), body.Status)
		if err != nil {
			return mapServiceError(err)
		}

		writeAudit(c, db, "order", ord.ID, models.AuditActionUpdate,
			fmt.Sprintf("Sipariş durumu: %s", ord.Status), ord)

		return c.JSON(toOrderResponse(ord))
	}
}

// -------------------------------------------------
// POST /api/orders/:id/payments
// -------------------------------------------------
func CapturePaymentHandler(svc *Service, db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "id geçersiz")
		}

		var body struct {
			ShiftID uint                 `json:"shift_id"`
			Amount  int64                `json:"amount"`
			Method  models.PaymentMethod `json:"method"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		switch body.Method {
		case models.PaymentMethodCash, models.PaymentMethodCard, models.PaymentMethodOnline:
			// ok
		default:
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz method (cash|card|online)")
		}

		payment, err := svc.CapturePayment(uint(id), body.ShiftID, body.Amount, body.Method)
		if err != nil {
			return mapServiceError(err)
		}

		writeAudit(c, db, "payment", payment.ID, models.AuditActionCreate,
			fmt.Sprintf("Ödeme alındı: %s - %d kuruş", payment.Method, payment.Amount), payment)

		return c.Status(fiber.StatusCreated).JSON(payment)
	}
}

// -------------------------------------------------
// POST /api/payments/:id/refund
// -------------------------------------------------
func RefundPaymentHandler(svc *Service, db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "id geçersiz")
		}

		var body struct {
			Amount int64  `json:"amount"`
			Reason string `json:"reason"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		adj, err := svc.Refund(uint(id), body.Amount, body.Reason)
		if err != nil {
			return mapServiceError(err)
		}

		writeAudit(c, db, "payment_adjustment", adj.ID, models.AuditActionCreate,
			fmt.Sprintf("İade: %d kuruş (%s)", adj.Amount, adj.Reason), adj)

		return c.Status(fiber.StatusCreated).JSON(adj)
	}
}

// -------------------------------------------------
// POST /api/payments/:id/void
// -------------------------------------------------
func VoidPaymentHandler(svc *Service, db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "id geçersiz")
		}

		var body struct {
			Reason string `json:"reason"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		adj, err := svc.Void(uint(id), body.Reason)
		if err != nil {
			return mapServiceError(err)
		}

		writeAudit(c, db, "payment_adjustment", adj.ID, models.AuditActionCreate,
			fmt.Sprintf("Ödeme iptal edildi (%s)", adj.Reason), adj)

		return c.Status(fiber.StatusCreated).JSON(adj)
	}
}

// -------------------------------------------------
// GET /api/payments/:id/balance
// -------------------------------------------------
func PaymentBalanceHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "id geçersiz")
		}

		balance, err := svc.Balance(uint(id))
		if err != nil {
			return mapServiceError(err)
		}
		return c.JSON(fiber.Map{"payment_id": id, "balance": balance})
	}
}

func mapServiceError(err error) error {
	switch {
	case errors.Is(err, ErrOrderNotFound), errors.Is(err, ErrPaymentNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrEmptyOrder),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrRefundExceedsBalance),
		errors.Is(err, ErrPaymentVoided),
		errors.Is(err, ErrInvalidTransition):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "İşlem tamamlanamadı")
	}
}

// writeAudit: audit hatası kritik değil, yalnızca loglanır.
func writeAudit(c *fiber.Ctx, db *gorm.DB, entityType string, entityID uint, action models.AuditAction, desc string, after any) {
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
		EntityType:  entityType,
		EntityID:    entityID,
		Action:      action,
		Description: desc,
		After:       after,
	}); logErr != nil {
		fmt.Printf("Audit log yazılamadı: %v\n", logErr)
	}
}
