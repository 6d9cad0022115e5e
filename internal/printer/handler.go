package printer

import (
	"errors"

	"restoran-pos-terminal/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// -------------------------------------------------
// GET /api/print-jobs?status=failed
// -------------------------------------------------
func ListPrintJobsHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := db.Model(&models.PrintJob{})
		if status := c.Query("status"); status != "" {
			dbq = dbq.Where("status = ?", status)
		}

		var jobs []models.PrintJob
		if err := dbq.Order("created_at desc").Limit(200).Find(&jobs).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Yazdırma işleri listelenemedi")
		}
		return c.JSON(jobs)
	}
}

// -------------------------------------------------
// GET /api/print-jobs/:id
// -------------------------------------------------
func PrintJobStatusHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "id geçersiz")
		}

		status, err := svc.Status(uint(id))
		if err != nil {
			if errors.Is(err, ErrJobNotFound) {
				return fiber.NewError(fiber.StatusNotFound, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, "İş durumu okunamadı")
		}
		return c.JSON(fiber.Map{"id": id, "status": status})
	}
}

// -------------------------------------------------
// POST /api/print-jobs/:id/reprint
// -------------------------------------------------
func ReprintHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "id geçersiz")
		}

		if err := svc.Reprint(uint(id)); err != nil {
			switch {
			case errors.Is(err, ErrJobNotFound):
				return fiber.NewError(fiber.StatusNotFound, err.Error())
			case errors.Is(err, ErrJobNotFailed):
				return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
			default:
				return fiber.NewError(fiber.StatusInternalServerError, "Yeniden yazdırma başlatılamadı")
			}
		}
		return c.JSON(fiber.Map{"id": id, "status": models.PrintJobPending})
	}
}

// -------------------------------------------------
// POST /api/printer/open-drawer
// -------------------------------------------------
func OpenDrawerHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body struct {
			Profile string `json:"profile"`
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
			}
		}
		if body.Profile == "" {
			body.Profile = "default"
		}

		if err := svc.OpenDrawer(body.Profile); err != nil {
			if errors.Is(err, ErrDrawerRateLimit) {
				return fiber.NewError(fiber.StatusTooManyRequests, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, "Çekmece açılamadı")
		}
		return c.JSON(fiber.Map{"opened": true})
	}
}
