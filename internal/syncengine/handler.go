package syncengine

import (
	"restoran-pos-terminal/internal/models"
	"restoran-pos-terminal/internal/syncqueue"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// -------------------------------------------------
// POST /api/sync/force
// Tekrar tekrar çağrılması güvenlidir; bekleyen yoksa 0 döner.
// -------------------------------------------------
func ForceSyncHandler(engine *Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		synced, err := engine.SyncForce(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Senkron çalıştırılamadı: "+err.Error())
		}
		return c.JSON(fiber.Map{"synced": synced})
	}
}

// -------------------------------------------------
// GET /api/sync/queue?status=pending
// -------------------------------------------------
func ListQueueHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := db.Model(&models.SyncQueueEntry{})
		if status := c.Query("status"); status != "" {
			dbq = dbq.Where("status = ?", status)
		} else {
			dbq = dbq.Where("status IN ?", []models.SyncEntryStatus{
				models.SyncEntryPending, models.SyncEntryDeferred, models.SyncEntryFailed,
			})
		}

		var entries []models.SyncQueueEntry
		if err := dbq.Order("created_at asc, id asc").Limit(500).Find(&entries).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kuyruk listelenemedi")
		}
		return c.JSON(entries)
	}
}

// -------------------------------------------------
// POST /api/sync/requeue-failed
// -------------------------------------------------
func RequeueFailedHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		n, err := syncqueue.RequeueFailed(db)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Girdiler kuyruğa alınamadı")
		}
		return c.JSON(fiber.Map{"requeued": n})
	}
}
