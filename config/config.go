package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	Redis      RedisConfig
	Cycle      CycleConfig
	Region     RegionConfig
	Photo      PhotoConfig
	Storage    StorageConfig
	Cloudinary CloudinaryConfig
	Firebase   FirebaseConfig
	Payment    PaymentConfig
	Log        LogConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// JWTConfig verifies access tokens minted by the external identity service.
type JWTConfig struct {
	AccessSecret string
	AccessExpiry time.Duration
	Issuer       string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type CycleConfig struct {
	Timezone string
}

// RegionConfig.Fallback is "none" or "broad". It is a deployment decision and
// never changes at runtime.
type RegionConfig struct {
	Fallback string
}

type PhotoConfig struct {
	MaxBytes     int64
	MaxPixels    int64 // decoded width*height
	MaxPerMember int
	OwnerURLTTL  time.Duration
	UnveilURLTTL time.Duration
}

// StorageConfig selects the blob backends. PublicBackend is "cloudinary" or "s3".
type StorageConfig struct {
	Region          string
	Endpoint        string // optional, for MinIO/LocalStack
	AccessKeyID     string
	SecretAccessKey string
	PrivateBucket   string
	PublicBucket    string
	PublicBaseURL   string
	PublicBackend   string
}

type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

type FirebaseConfig struct {
	ServiceAccountPath string
}

type PaymentConfig struct {
	WebhookSecret string
	RevealPrice   int64 // KRW
	Currency      string
	// ClientConfirm accepts the app's own checkout confirmation. The app
	// cannot prove a charge happened, so outside sandbox setups the signed
	// provider webhook is the only paid unlock path.
	ClientConfirm bool
}

type LogConfig struct {
	Level string
}

func Load() *Config {
	// .env is optional; real deployments inject the environment directly.
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8099"),
			Env:          getEnv("SERVER_ENV", "development"),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			DSN:             getEnv("MYSQL_DSN", "shelfmate:shelfmate@tcp(localhost:3306)/shelfmate?charset=utf8mb4&parseTime=True&loc=UTC"),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", time.Hour),
		},
		JWT: JWTConfig{
			AccessSecret: getEnv("JWT_ACCESS_SECRET", "change-me-in-production"),
			AccessExpiry: getEnvDuration("JWT_ACCESS_EXPIRY", 15*time.Minute),
			Issuer:       getEnv("JWT_ISSUER", "shelfmate"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Cycle: CycleConfig{
			Timezone: getEnv("CYCLE_TIMEZONE", "Asia/Seoul"),
		},
		Region: RegionConfig{
			Fallback: strings.ToLower(getEnv("REGION_FALLBACK", "none")),
		},
		Photo: PhotoConfig{
			MaxBytes:     int64(getEnvInt("PHOTO_MAX_BYTES", 10<<20)),
			MaxPixels:    int64(getEnvInt("PHOTO_MAX_PIXELS", 40_000_000)),
			MaxPerMember: getEnvInt("PHOTO_MAX_PER_MEMBER", 6),
			OwnerURLTTL:  getEnvDuration("PHOTO_OWNER_URL_TTL", time.Hour),
			UnveilURLTTL: getEnvDuration("PHOTO_UNVEIL_URL_TTL", 7*24*time.Hour),
		},
		Storage: StorageConfig{
			Region:          getEnv("S3_REGION", "ap-northeast-2"),
			Endpoint:        getEnv("S3_ENDPOINT", ""),
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
			PrivateBucket:   getEnv("S3_PRIVATE_BUCKET", "shelfmate-originals"),
			PublicBucket:    getEnv("S3_PUBLIC_BUCKET", "shelfmate-blurred"),
			PublicBaseURL:   getEnv("S3_PUBLIC_BASE_URL", ""),
			PublicBackend:   strings.ToLower(getEnv("PUBLIC_PHOTO_BACKEND", "cloudinary")),
		},
		Cloudinary: CloudinaryConfig{
			CloudName: getEnv("CLOUDINARY_CLOUD_NAME", ""),
			APIKey:    getEnv("CLOUDINARY_API_KEY", ""),
			APISecret: getEnv("CLOUDINARY_API_SECRET", ""),
			Folder:    getEnv("CLOUDINARY_FOLDER", "Shelfmate/blurred"),
		},
		Firebase: FirebaseConfig{
			ServiceAccountPath: getEnv("FIREBASE_SERVICE_ACCOUNT_PATH", ""),
		},
		Payment: PaymentConfig{
			WebhookSecret: getEnv("PAYMENT_WEBHOOK_SECRET", ""),
			RevealPrice:   int64(getEnvInt("REVEAL_PRICE_KRW", 9900)),
			Currency:      "KRW",
			ClientConfirm: getEnvBool("PAYMENT_CLIENT_CONFIRM", false),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
