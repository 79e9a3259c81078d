package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the runtime settings of the try-on service.
type Config struct {
	Port string

	GeminiAPIKey     string
	GeminiModel      string
	RecommendTimeout time.Duration

	// StoreBackend selects session/profile persistence: "file", "redis" or "mongo".
	StoreBackend string
	DataDir      string
	RedisAddr    string
	MongoURI     string
	DBName       string

	// MediaBackend selects image storage: "local" or "s3".
	MediaBackend  string
	MediaDir      string
	AWSRegion     string
	AWSBucketName string
	S3Endpoint    string
	S3AccessKey   string
	S3SecretKey   string

	JWTSecret string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// LandmarkProvider is "none" or "browser".
	LandmarkProvider  string
	DetectorPageURL   string
	CameraSnapshotURL string
	// RenderGarmentPages retries product pages in headless Chrome when the static HTML has no image.
	RenderGarmentPages bool

	SendGridAPIKey string
	NotifyFrom     string
}

// LoadConfig loads environment variables from .env file and applies defaults.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using default values or system environment variables")
	}

	return &Config{
		Port: getEnv("PORT", "8080"),

		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-3-flash-preview"),
		RecommendTimeout: getDuration("RECOMMEND_TIMEOUT", 20*time.Second),

		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", "file")),
		DataDir:      getEnv("DATA_DIR", "data"),
		RedisAddr:    getEnv("REDIS_ADDR", "localhost:6379"),
		MongoURI:     getEnv("MONGO_URI", "mongodb://localhost:27017/"),
		DBName:       getEnv("DB_NAME", "fashionfit"),

		MediaBackend:  strings.ToLower(getEnv("MEDIA_BACKEND", "local")),
		MediaDir:      getEnv("MEDIA_DIR", "media_files"),
		AWSRegion:     getEnv("AWS_REGION", "us-east-1"),
		AWSBucketName: os.Getenv("AWS_BUCKET_NAME"),
		S3Endpoint:    os.Getenv("S3_ENDPOINT"),
		S3AccessKey:   os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:   os.Getenv("S3_SECRET_KEY"),

		JWTSecret: getEnv("JWT_SECRET", "dev-secret"),

		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", "http://localhost:8080/auth/google/callback"),

		LandmarkProvider:  strings.ToLower(getEnv("LANDMARK_PROVIDER", "none")),
		DetectorPageURL:   os.Getenv("DETECTOR_PAGE_URL"),
		CameraSnapshotURL: os.Getenv("CAMERA_SNAPSHOT_URL"),

		RenderGarmentPages: getBool("RENDER_GARMENT_PAGES", false),

		SendGridAPIKey: os.Getenv("SENDGRID_API_KEY"),
		NotifyFrom:     getEnv("NOTIFY_FROM", "no-reply@fashionfit.app"),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("Invalid %s=%q, using %t", key, value, fallback)
		return fallback
	}
	return b
}

// getDuration accepts Go duration strings ("15s") and falls back on anything unparsable.
func getDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		log.Printf("Invalid %s=%q, using %s", key, value, fallback)
		return fallback
	}
	return d
}
