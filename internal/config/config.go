package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort    string
	DBPath      string
	JWTSecret   string
	CORSOrigins string
	LogPath     string

	// Terminal kimliği: global state yerine her servise bu config geçilir,
	// testler aynı proseste birden fazla terminali simüle edebilsin diye
	BranchID   uint
	BranchName string
	TerminalID string

	// Uzak senkron ucu
	RemoteAPIURL string
	RemoteAPIKey string

	SyncInterval    time.Duration // periyodik drain aralığı
	SyncTimeout     time.Duration // girdi başına uzak çağrı zaman sınırı
	SyncMaxAttempts int           // 0 = sınırsız retry

	// Kasiyer kapanışında açık kurye/garson vardiyası politikası:
	// false = devir (is_transfer_pending), true = kapanışı reddet
	ShiftStrictClose bool

	PrintWatchInterval time.Duration
	DrawerMinInterval  time.Duration
}

func Load() *Config {
	// .env varsa yükle; yoksa sorun değil, terminal env'den devam eder
	_ = godotenv.Load()

	cfg := &Config{
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		DBPath:      getEnv("POS_DB_PATH", "./data/pos.db"),
		JWTSecret:   getEnv("JWT_SECRET", ""),
		CORSOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
		LogPath:     getEnv("POS_LOG_PATH", "./data/pos.log"),

		BranchID:   uint(getEnvInt("POS_BRANCH_ID", 1)),
		BranchName: getEnv("POS_BRANCH_NAME", "Merkez Şube"),
		TerminalID: getEnv("POS_TERMINAL_ID", "terminal-1"),

		RemoteAPIURL: getEnv("REMOTE_API_URL", ""),
		RemoteAPIKey: getEnv("REMOTE_API_KEY", ""),

		SyncInterval:    getEnvDuration("SYNC_INTERVAL", 30*time.Second),
		SyncTimeout:     getEnvDuration("SYNC_TIMEOUT", 10*time.Second),
		SyncMaxAttempts: getEnvInt("SYNC_MAX_ATTEMPTS", 0),

		ShiftStrictClose: getEnvBool("SHIFT_STRICT_CLOSE", false),

		PrintWatchInterval: getEnvDuration("PRINT_WATCH_INTERVAL", 5*time.Second),
		DrawerMinInterval:  getEnvDuration("DRAWER_MIN_INTERVAL", 3*time.Second),
	}

	// Production güvenlik kontrolleri
	if cfg.JWTSecret == "" {
		log.Fatal("[FATAL] JWT_SECRET environment değişkeni tanımlanmamış! Production için zorunludur.")
	}
	if len(cfg.JWTSecret) < 32 {
		log.Fatal("[FATAL] JWT_SECRET en az 32 karakter olmalıdır! Güvenlik riski.")
	}
	if cfg.RemoteAPIURL == "" {
		log.Println("[WARN] REMOTE_API_URL tanımlı değil, senkron motoru bağlantı kurulana kadar kuyruğu biriktirecek.")
	}

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("[WARN] %s sayı değil, varsayılan %d kullanılıyor", key, def)
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		log.Printf("[WARN] %s bool değil, varsayılan %t kullanılıyor", key, def)
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("[WARN] %s süre formatında değil (örn. 30s), varsayılan %s kullanılıyor", key, def)
	}
	return def
}
