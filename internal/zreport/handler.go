package zreport

import (
	"fmt"
	"time"

	"restoran-pos-terminal/internal/audit"
	"restoran-pos-terminal/internal/auth"
	"restoran-pos-terminal/internal/config"
	"restoran-pos-terminal/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// -------------------------------------------------
// POST /api/zreports/generate
// Aynı gün için tekrar çağrı mevcut raporu döndürür.
// -------------------------------------------------
func GenerateZReportHandler(svc *Service, db *gorm.DB, cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body struct {
			Date string `json:"date"` // YYYY-MM-DD, boşsa bugün
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
			}
		}

		date := time.Now()
		if body.Date != "" {
			parsed, err := time.ParseInLocation("2006-01-02", body.Date, time.Local)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "Tarih formatı geçersiz (YYYY-MM-DD)")
			}
			date = parsed
		}

		userID, err := auth.CurrentUserID(c)
		if err != nil {
			return err
		}

		report, err := svc.Generate(cfg.BranchID, date, userID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Z raporu oluşturulamadı: "+err.Error())
		}

		var user models.User
		_ = db.First(&user, userID).Error
		if logErr := audit.WriteLog(db, audit.LogOptions{
			BranchID:    &cfg.BranchID,
			UserID:      userID,
			UserName:    user.Name,
			EntityType:  "z_report",
			EntityID:    report.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Z raporu üretildi: %s", report.ReportDate.Format("2006-01-02")),
		}); logErr != nil {
			fmt.Printf("Audit log yazılamadı: %v\n", logErr)
		}

		return c.Status(fiber.StatusCreated).JSON(report)
	}
}

// -------------------------------------------------
// GET /api/zreports
// -------------------------------------------------
func ListZReportsHandler(db *gorm.DB, cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var reports []models.ZReport
		if err := db.Where("branch_id = ?", cfg.BranchID).
			Order("report_date desc").Limit(90).
			Find(&reports).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Raporlar listelenemedi")
		}
		return c.JSON(reports)
	}
}

// -------------------------------------------------
// GET /api/zreports/:id
// -------------------------------------------------
func GetZReportHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "id geçersiz")
		}

		report, err := svc.Get(uint(id))
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Z raporu bulunamadı")
		}
		return c.JSON(report)
	}
}

// -------------------------------------------------
// GET /api/zreports/:id/export
// -------------------------------------------------
func ExportZReportHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "id geçersiz")
		}

		buf, report, err := svc.Export(uint(id))
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Z raporu bulunamadı")
		}

		filename := fmt.Sprintf("z-raporu-%s.xlsx", report.ReportDate.Format("2006-01-02"))
		c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Set("Content-Disposition", `attachment; filename="`+filename+`"`)
		return c.Send(buf)
	}
}
