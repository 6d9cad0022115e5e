package database

import (
	"fmt"
	"os"
	"path/filepath"

	"restoran-pos-terminal/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open: gömülü sqlite veritabanını açar ve şemayı hazırlar.
// DB handle döndürülür, global'e yazılmaz; servisler kendi handle'ını alır.
func Open(dbPath string) (*gorm.DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("veri klasörü oluşturulamadı: %w", err)
		}
	}

	// WAL: okuyucular yazıcıyı bloklamasın; busy_timeout: tek yazıcı
	// serileşmesi kilit hatası yerine bekleme üretsin
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000", dbPath)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		// Referans bütünlüğü servis katmanında korunur; personel/şube
		// kaydı senkron sırasına bağlı olduğu için şema kısıtı koymuyoruz
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("veritabanına bağlanılamadı: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// EnsureBranch: terminalin şube satırını tohumlar. Satır varsa adı
// env'deki güncel değere çekilir; şube kimliği hiç değişmez.
func EnsureBranch(db *gorm.DB, branchID uint, name string) error {
	branch := models.Branch{ID: branchID, Name: name}
	err := db.Where("id = ?", branchID).
		Assign(models.Branch{Name: name}).
		FirstOrCreate(&branch).Error
	if err != nil {
		return fmt.Errorf("şube kaydı hazırlanamadı: %w", err)
	}
	return nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Branch{},
		&models.User{},
		&models.Order{},
		&models.OrderItem{},
		&models.Payment{},
		&models.PaymentAdjustment{},
		&models.StaffShift{},
		&models.CashDrawerSession{},
		&models.DriverEarning{},
		&models.Expense{},
		&models.StaffPayment{},
		&models.SyncQueueEntry{},
		&models.ZReport{},
		&models.PrintJob{},
		&models.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("AutoMigrate hatası: %w", err)
	}
	return nil
}
