package main

import (
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"restoran-pos-terminal/internal/admin"
	"restoran-pos-terminal/internal/audit"
	"restoran-pos-terminal/internal/auth"
	"restoran-pos-terminal/internal/config"
	"restoran-pos-terminal/internal/database"
	"restoran-pos-terminal/internal/logging"
	"restoran-pos-terminal/internal/models"
	"restoran-pos-terminal/internal/order"
	"restoran-pos-terminal/internal/printer"
	"restoran-pos-terminal/internal/shift"
	"restoran-pos-terminal/internal/syncengine"
	"restoran-pos-terminal/internal/zreport"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func main() {
	cfg := config.Load()
	lg := logging.New(cfg.LogPath)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		log.Fatal("Veritabanı açılamadı: ", err)
	}
	if err := database.EnsureBranch(db, cfg.BranchID, cfg.BranchName); err != nil {
		log.Fatal("Şube kaydı hazırlanamadı: ", err)
	}

	// Servisler
	printSvc := printer.NewService(db, lg, &printer.LogDriver{Lg: lg}, cfg.DrawerMinInterval)
	orderSvc := order.NewService(db, lg, printSvc)
	shiftSvc := shift.NewService(db, lg, cfg.ShiftStrictClose)
	zreportSvc := zreport.NewService(db, lg)

	remote := syncengine.NewHTTPRemoteClient(cfg.RemoteAPIURL, cfg.RemoteAPIKey, cfg.SyncTimeout)
	engine := syncengine.New(db, remote, lg, cfg)

	// Arka plan görevleri
	scheduler := syncengine.NewScheduler(engine, cfg.SyncInterval)
	scheduler.Start()

	watcher := printer.NewWatcher(printSvc, cfg.PrintWatchInterval)
	watcher.Start()

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if e, ok := err.(*fiber.Error); ok {
				return c.Status(e.Code).JSON(fiber.Map{
					"error": e.Message,
				})
			}
			lg.Error("Beklenmeyen hata: ", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Beklenmeyen sunucu hatası",
			})
		},
	})

	// CORS origins'i virgülle ayrılmış string'den array'e çevir
	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(corsOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	api := app.Group("/api")

	// Public auth
	api.Post("/auth/register-manager", auth.RegisterManagerHandler(db, cfg))
	api.Post("/auth/login", auth.LoginHandler(db, cfg))

	// Protected
	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg))

	protected.Get("/auth/me", auth.MeHandler(db))

	// Yönetici route'ları
	adminRoutes := protected.Group("/admin")
	adminRoutes.Use(auth.RequireRole(models.RoleManager))

	adminRoutes.Post("/staff", admin.CreateStaffHandler(db, cfg))
	adminRoutes.Get("/staff", admin.ListStaffHandler(db))
	adminRoutes.Delete("/staff/:id", admin.DeactivateStaffHandler(db))

	// Siparişler ve ödemeler
	protected.Post("/orders", order.CreateOrderHandler(orderSvc, db, cfg))
	protected.Get("/orders", order.ListOrdersHandler(db, cfg))
	protected.Get("/orders/:id", order.GetOrderHandler(orderSvc))
	protected.Put("/orders/:id/status", order.UpdateOrderStatusHandler(orderSvc, db))
	protected.Post("/orders/:id/payments", order.CapturePaymentHandler(orderSvc, db))
	protected.Post("/payments/:id/refund", order.RefundPaymentHandler(orderSvc, db))
	protected.Post("/payments/:id/void", order.VoidPaymentHandler(orderSvc, db))
	protected.Get("/payments/:id/balance", order.PaymentBalanceHandler(orderSvc))

	// Vardiya ve kasa
	protected.Post("/shifts/open", shift.OpenShiftHandler(shiftSvc, db, cfg))
	protected.Post("/shifts/:id/close", shift.CloseShiftHandler(shiftSvc, db))
	protected.Get("/shifts/active", shift.ActiveShiftHandler(shiftSvc, cfg))
	protected.Get("/shifts/:id/drawer", shift.DrawerHandler(shiftSvc))
	protected.Post("/shifts/:id/expenses", shift.RecordExpenseHandler(shiftSvc, db))
	protected.Post("/shifts/:id/staff-payments", shift.RecordStaffPaymentHandler(shiftSvc, db))
	protected.Post("/shifts/:id/driver-cash", shift.GiveDriverCashHandler(shiftSvc, db))
	protected.Post("/shifts/:id/deliveries", shift.RecordDeliveryHandler(shiftSvc, db))

	// Senkron
	protected.Post("/sync/force", syncengine.ForceSyncHandler(engine))
	protected.Get("/sync/queue", syncengine.ListQueueHandler(db))
	protected.Post("/sync/requeue-failed", auth.RequireRole(models.RoleManager), syncengine.RequeueFailedHandler(db))

	// Z raporları
	protected.Post("/zreports/generate", auth.RequireRole(models.RoleManager, models.RoleCashier), zreport.GenerateZReportHandler(zreportSvc, db, cfg))
	protected.Get("/zreports", zreport.ListZReportsHandler(db, cfg))
	protected.Get("/zreports/:id", zreport.GetZReportHandler(zreportSvc))
	protected.Get("/zreports/:id/export", zreport.ExportZReportHandler(zreportSvc))

	// Yazıcı ve çekmece
	protected.Get("/print-jobs", printer.ListPrintJobsHandler(db))
	protected.Get("/print-jobs/:id", printer.PrintJobStatusHandler(printSvc))
	protected.Post("/print-jobs/:id/reprint", printer.ReprintHandler(printSvc))
	protected.Post("/printer/open-drawer", printer.OpenDrawerHandler(printSvc))

	// Audit logs
	protected.Get("/audit-logs", audit.ListAuditLogsHandler(db))

	// Kapanışta kuyruklar durdurulur; pending girdiler diskte kalır ve
	// bir sonraki açılışta kaldığı yerden devam eder
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		lg.Info("Kapanış sinyali alındı, arka plan görevleri durduruluyor")
		scheduler.Stop()
		watcher.Stop()
		if err := app.Shutdown(); err != nil {
			lg.Error("Sunucu kapatılamadı: ", err)
		}
	}()

	lg.Info("Terminal çalışıyor port: ", cfg.HTTPPort)
	if err := app.Listen(":" + cfg.HTTPPort); err != nil {
		log.Fatal(err)
	}
}
