package configs

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	gormLogger "gorm.io/gorm/logger"
	"gorm.io/gorm/utils"
)

// Env is the typed process configuration, read from the environment (and
// .env outside Railway).
type Env struct {
	Port string `envconfig:"PORT" default:"3000"`

	JWTSecret             string `envconfig:"JWT_SECRET"`
	TokenBlacklistTTLDays int    `envconfig:"TOKEN_BLACKLIST_TTL_DAYS" default:"7"`

	// Database
	DatabaseURL string `envconfig:"DATABASE_URL"`
	DBUser      string `envconfig:"DB_USER"`
	DBPassword  string `envconfig:"DB_PASSWORD"`
	DBHost      string `envconfig:"DB_HOST" default:"localhost"`
	DBPort      string `envconfig:"DB_PORT" default:"5432"`
	DBName      string `envconfig:"DB_NAME" default:"srms"`
	DBSSLMode   string `envconfig:"DB_SSLMODE" default:"disable"`

	// Blob storage
	BlobDriver          string `envconfig:"BLOB_DRIVER" default:"local"`
	BlobLocalRoot       string `envconfig:"BLOB_LOCAL_ROOT" default:"uploads"`
	BlobBucket          string `envconfig:"BLOB_BUCKET"`
	BlobPrefix          string `envconfig:"BLOB_PREFIX"`
	BlobRegion          string `envconfig:"BLOB_REGION"`
	BlobEndpoint        string `envconfig:"BLOB_ENDPOINT"`
	BlobCredentialsFile string `envconfig:"BLOB_CREDENTIALS_FILE"`
	OSSEndpoint         string `envconfig:"ALI_OSS_ENDPOINT"`
	OSSAccessKey        string `envconfig:"ALI_OSS_ACCESS_KEY"`
	OSSSecretKey        string `envconfig:"ALI_OSS_SECRET_KEY"`
	OSSSecurityToken    string `envconfig:"ALI_OSS_SECURITY_TOKEN"`

	// Ledger
	LedgerDriver           string        `envconfig:"LEDGER_DRIVER" default:"local"`
	LedgerDataDir          string        `envconfig:"LEDGER_DATA_DIR" default:"data/ledger"`
	RPCURL                 string        `envconfig:"RPC_URL"`
	PrivateKey             string        `envconfig:"PRIVATE_KEY"`
	StudentRegistryAddress string        `envconfig:"STUDENT_REGISTRY_ADDRESS"`
	LedgerTimeout          time.Duration `envconfig:"LEDGER_TIMEOUT" default:"60s"`

	// HTTP
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"90s"`
	BodyLimitMB    int           `envconfig:"BODY_LIMIT_MB" default:"20"`
	AllowedOrigins string        `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5173,http://localhost:3000"`
	PublicBaseURL  string        `envconfig:"PUBLIC_BASE_URL"`

	// Orphaned document reaper
	OrphanReaperSchedule string        `envconfig:"ORPHAN_REAPER_SCHEDULE" default:"30 3 * * *"`
	OrphanGracePeriod    time.Duration `envconfig:"ORPHAN_GRACE_PERIOD" default:"24h"`
	ReaperDryRun         bool          `envconfig:"REAPER_DRY_RUN" default:"false"`

	// SQL logging: silent | error | warn | info
	DBLogLevel string `envconfig:"DB_LOG_LEVEL" default:"warn"`
}

// =======================
// ENV LOADER
// =======================
func LoadEnv() {
	if os.Getenv("RAILWAY_ENVIRONMENT") == "" {
		if err := godotenv.Load(); err != nil {
			log.Println("⚠️ No .env file found, using system ENV")
		} else {
			log.Println("✅ .env file loaded")
		}
	} else {
		log.Println("🚀 Running in Railway, using system ENV")
	}
}

// Load reads .env (when present) and decodes the environment into Env.
func Load() (*Env, error) {
	LoadEnv()

	var env Env
	if err := envconfig.Process("", &env); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := env.Validate(); err != nil {
		return nil, err
	}

	if env.JWTSecret == "" {
		log.Println("❌ JWT_SECRET is not set!")
	} else {
		log.Println("✅ JWT_SECRET loaded.")
	}
	log.Printf("[INFO] blob=%s ledger=%s ledger_timeout=%s", env.BlobDriver, env.LedgerDriver, env.LedgerTimeout)
	return &env, nil
}

func (e *Env) Validate() error {
	if e.LedgerTimeout <= 0 {
		return fmt.Errorf("config: LEDGER_TIMEOUT must be positive")
	}
	if e.BodyLimitMB <= 0 {
		return fmt.Errorf("config: BODY_LIMIT_MB must be positive")
	}
	if strings.EqualFold(e.LedgerDriver, "ethereum") &&
		(e.RPCURL == "" || e.PrivateKey == "" || e.StudentRegistryAddress == "") {
		return fmt.Errorf("config: LEDGER_DRIVER=ethereum needs RPC_URL, PRIVATE_KEY and STUDENT_REGISTRY_ADDRESS")
	}
	return nil
}

// DSN prefers DATABASE_URL and otherwise builds a postgres URL from DB_*.
func (e *Env) DSN() string {
	if e.DatabaseURL != "" {
		return e.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s&application_name=srms",
		e.DBUser, e.DBPassword, e.DBHost, e.DBPort, e.DBName, e.DBSSLMode)
}

func (e *Env) Origins() []string {
	out := make([]string, 0)
	for _, o := range strings.Split(e.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func GetEnv(key string, defaultValue ...string) string {
	value, exists := os.LookupEnv(key)
	if !exists && len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return value
}

// =======================
// GORM LOGGER CUSTOM
// =======================
type GormLogger struct {
	SlowThreshold time.Duration
	LogLevel      gormLogger.LogLevel
}

func NewGormLogger(level string) gormLogger.Interface {
	return &GormLogger{
		SlowThreshold: 200 * time.Millisecond,
		LogLevel:      parseGormLevel(level),
	}
}

func parseGormLevel(level string) gormLogger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "silent":
		return gormLogger.Silent
	case "error":
		return gormLogger.Error
	case "info":
		return gormLogger.Info
	default:
		return gormLogger.Warn
	}
}

func (l *GormLogger) LogMode(level gormLogger.LogLevel) gormLogger.Interface {
	cp := *l
	cp.LogLevel = level
	return &cp
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormLogger.Info {
		log.Printf("[INFO] "+msg, data...)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormLogger.Warn {
		log.Printf("[WARN] "+msg, data...)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormLogger.Error {
		log.Printf("[ERROR] "+msg, data...)
	}
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= gormLogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()
	file := utils.FileWithLineNum()

	switch {
	case err != nil && l.LogLevel >= gormLogger.Error:
		log.Printf("[ERROR] %s | %v | %s | %d rows | %s", file, err, elapsed, rows, sql)
	case elapsed > l.SlowThreshold && l.LogLevel >= gormLogger.Warn:
		log.Printf("[SLOW SQL] %s | %s | %d rows | %s", file, elapsed, rows, sql)
	case l.LogLevel >= gormLogger.Info:
		log.Printf("[QUERY] %s | %s | %d rows | %s", file, elapsed, rows, sql)
	}
}
