package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	// Application
	Version     string
	Environment string
	EngineID    string
	Port        int
	LogLevel    string

	// Logdy (lightweight web log viewer)
	LogdyEnabled bool
	LogdyHost    string
	LogdyPort    int

	// Persistence
	StoreDriver string // "sqlite" or "mysql"
	SQLitePath  string
	MySQLDSN    string

	// Detection event persistence (batched writer)
	DetectionBatchSize     int
	DetectionFlushInterval time.Duration

	// Zones and tracks
	ZonesFile          string
	ZoneHysteresis     time.Duration
	TrackIdleTimeout   time.Duration
	TrackSweepInterval time.Duration

	// Rules
	LoiteringThreshold  time.Duration
	SuspiciousBehaviors map[string]string // tag -> severity label

	// Alert cooldowns per alert type
	CooldownLoitering          time.Duration
	CooldownRestrictedArea     time.Duration
	CooldownSuspectMatch       time.Duration
	CooldownSuspiciousBehavior time.Duration

	// Alert persistence retries
	AlertPersistAttempts int
	AlertPersistBackoff  time.Duration

	// Suspect gallery
	SuspectMatchTolerance  float64
	SuspectGalleryFile     string
	SuspectGalleryRedisKey string
	SuspectGalleryRefresh  time.Duration
	RedisAddr              string
	RedisPassword          string
	RedisDB                int

	// Camera workers
	MaxCameras          int
	CameraEventBuffer   int
	EventEnqueueTimeout time.Duration

	// Aggregation
	AggregationInterval    time.Duration
	AggregationLookback    time.Duration
	AggregationConcurrency int

	// Fan-out
	FanoutBuffer       int
	WSClientMaxRetries int
	WSClientBackoffMin time.Duration
	WSClientBackoffMax time.Duration

	// NATS (detection ingest and alert publishing)
	// Default: nats://localhost:4222 (works with Docker Compose setup)
	// Docker: Use nats://nats:4222 if running the engine in Docker
	NatsEnabled        bool
	NatsURL            string
	NatsConnectTimeout time.Duration
	NatsReconnectWait  time.Duration
	NatsMaxReconnects  int
	NatsDrainTimeout   time.Duration
	DetectionsSubject  string
	AlertsSubject      string
	NatsQueueGroup     string

	// MQTT detection ingest
	MQTTEnabled         bool
	MQTTBrokerURL       string
	MQTTClientID        string
	MQTTUsername        string
	MQTTPassword        string
	MQTTDetectionsTopic string
	MQTTQoS             int

	// gRPC detection ingest
	GRPCEnabled bool
	GRPCPort    int

	// S3 presigned snapshot/video references
	S3PresignEnabled bool
	S3Region         string
	S3Endpoint       string
	S3UsePathStyle   bool
	S3PresignTTL     time.Duration

	// Swagger Configuration
	SwaggerHost string
	SwaggerPort int

	// Graceful Shutdown
	ShutdownTimeout time.Duration
}

// DefaultSuspiciousBehaviors maps pose/behavior tags to alert severity labels.
var DefaultSuspiciousBehaviors = map[string]string{
	"theft_concealment":    "high",
	"reaching_bent_over":   "high",
	"grabbing_concealment": "high",
	"hands_near_pockets":   "medium",
	"concealment_posture":  "medium",
	"grabbing_motion":      "medium",
}

// Load reads .env (if present) and the process environment.
func Load() *Config {
	return LoadFile("")
}

// LoadFile is Load with an explicit env file. An empty path loads ./.env.
func LoadFile(envFile string) *Config {
	var err error
	if envFile != "" {
		err = godotenv.Load(envFile)
	} else {
		err = godotenv.Load()
	}
	if err != nil {
		log.Debug().Err(err).Msg("No .env file found or error loading .env file, using environment variables and defaults")
	} else {
		log.Info().Msg("Loaded configuration from .env file")
	}

	return &Config{
		// Application
		Version:     getEnv("VERSION", "1.0.0"),
		Environment: getEnv("ENVIRONMENT", "development"),
		EngineID:    getEnv("ENGINE_ID", "engine-1"),
		Port:        getEnvInt("PORT", 8000),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// Logdy
		LogdyEnabled: getEnvBool("LOGDY_ENABLED", false),
		LogdyHost:    getEnv("LOGDY_HOST", "localhost"),
		LogdyPort:    getEnvInt("LOGDY_PORT", 8080),

		// Persistence
		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", "sqlite")),
		SQLitePath:  getEnv("SQLITE_PATH", "sentinel.db"),
		MySQLDSN:    getEnv("MYSQL_DSN", ""),

		DetectionBatchSize:     getEnvInt("DETECTION_BATCH_SIZE", 100),
		DetectionFlushInterval: getEnvDuration("DETECTION_FLUSH_INTERVAL", 1*time.Second),

		// Zones and tracks
		ZonesFile:          getEnv("ZONES_FILE", "zones.yaml"),
		ZoneHysteresis:     getEnvDuration("ZONE_HYSTERESIS", 1*time.Second),
		TrackIdleTimeout:   getEnvDuration("TRACK_IDLE_TIMEOUT", 30*time.Second),
		TrackSweepInterval: getEnvDuration("TRACK_SWEEP_INTERVAL", 5*time.Second),

		// Rules
		LoiteringThreshold:  getEnvDuration("LOITERING_THRESHOLD", 300*time.Second),
		SuspiciousBehaviors: getEnvMap("SUSPICIOUS_BEHAVIORS", DefaultSuspiciousBehaviors),

		// Cooldowns
		CooldownLoitering:          getEnvDuration("COOLDOWN_LOITERING", 300*time.Second),
		CooldownRestrictedArea:     getEnvDuration("COOLDOWN_RESTRICTED_AREA", 60*time.Second),
		CooldownSuspectMatch:       getEnvDuration("COOLDOWN_SUSPECT_MATCH", 600*time.Second),
		CooldownSuspiciousBehavior: getEnvDuration("COOLDOWN_SUSPICIOUS_BEHAVIOR", 120*time.Second),

		AlertPersistAttempts: getEnvInt("ALERT_PERSIST_ATTEMPTS", 3),
		AlertPersistBackoff:  getEnvDuration("ALERT_PERSIST_BACKOFF", 50*time.Millisecond),

		// Suspect gallery
		SuspectMatchTolerance:  getEnvFloat("SUSPECT_MATCH_TOLERANCE", 0.6),
		SuspectGalleryFile:     getEnv("SUSPECT_GALLERY_FILE", ""),
		SuspectGalleryRedisKey: getEnv("SUSPECT_GALLERY_REDIS_KEY", ""),
		SuspectGalleryRefresh:  getEnvDuration("SUSPECT_GALLERY_REFRESH", 60*time.Second),
		RedisAddr:              getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:          getEnv("REDIS_PASSWORD", ""),
		RedisDB:                getEnvInt("REDIS_DB", 0),

		// Camera workers
		MaxCameras:          getEnvInt("MAX_CAMERAS", 64),
		CameraEventBuffer:   getEnvInt("CAMERA_EVENT_BUFFER", 256),
		EventEnqueueTimeout: getEnvDuration("EVENT_ENQUEUE_TIMEOUT", 2*time.Second),

		// Aggregation
		AggregationInterval:    getEnvDuration("AGGREGATION_INTERVAL", 1*time.Hour),
		AggregationLookback:    getEnvDuration("AGGREGATION_LOOKBACK", 24*time.Hour),
		AggregationConcurrency: getEnvInt("AGGREGATION_CONCURRENCY", 4),

		// Fan-out
		FanoutBuffer:       getEnvInt("FANOUT_BUFFER", 64),
		WSClientMaxRetries: getEnvInt("WS_CLIENT_MAX_RETRIES", 5),
		WSClientBackoffMin: getEnvDuration("WS_CLIENT_BACKOFF_MIN", 1*time.Second),
		WSClientBackoffMax: getEnvDuration("WS_CLIENT_BACKOFF_MAX", 30*time.Second),

		// NATS (configured for Docker Compose setup)
		NatsEnabled:        getEnvBool("NATS_ENABLED", false),
		NatsURL:            getNatsURL(),
		NatsConnectTimeout: getEnvDuration("NATS_CONNECT_TIMEOUT", 10*time.Second),
		NatsReconnectWait:  getEnvDuration("NATS_RECONNECT_WAIT", 2*time.Second),
		NatsMaxReconnects:  getEnvInt("NATS_MAX_RECONNECTS", -1), // -1 = unlimited
		NatsDrainTimeout:   getEnvDuration("NATS_DRAIN_TIMEOUT", 5*time.Second),
		DetectionsSubject:  getEnv("DETECTIONS_SUBJECT", "sentinel.detections.>"),
		AlertsSubject:      getEnv("ALERTS_SUBJECT", "sentinel.alerts"),
		NatsQueueGroup:     getEnv("NATS_QUEUE_GROUP", "sentinel-engine"),

		// MQTT
		MQTTEnabled:         getEnvBool("MQTT_ENABLED", false),
		MQTTBrokerURL:       getEnv("MQTT_BROKER_URL", "tcp://localhost:1883"),
		MQTTClientID:        getEnv("MQTT_CLIENT_ID", "sentinel-engine"),
		MQTTUsername:        getEnv("MQTT_USERNAME", ""),
		MQTTPassword:        getEnv("MQTT_PASSWORD", ""),
		MQTTDetectionsTopic: getEnv("MQTT_DETECTIONS_TOPIC", "sentinel/detections/#"),
		MQTTQoS:             getEnvInt("MQTT_QOS", 1),

		// gRPC
		GRPCEnabled: getEnvBool("GRPC_ENABLED", false),
		GRPCPort:    getEnvInt("GRPC_PORT", 50051),

		// S3
		S3PresignEnabled: getEnvBool("S3_PRESIGN_ENABLED", false),
		S3Region:         getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:       getEnv("S3_ENDPOINT", ""),
		S3UsePathStyle:   getEnvBool("S3_USE_PATH_STYLE", false),
		S3PresignTTL:     getEnvDuration("S3_PRESIGN_TTL", 15*time.Minute),

		// Swagger Configuration
		SwaggerHost: getEnv("SWAGGER_HOST", "localhost"),
		SwaggerPort: getEnvInt("SWAGGER_PORT", 8000),

		// Graceful Shutdown
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvMap parses "k1:v1,k2:v2". Malformed pairs are skipped.
func getEnvMap(key string, defaultValue map[string]string) map[string]string {
	value := os.Getenv(key)
	if value == "" {
		out := make(map[string]string, len(defaultValue))
		for k, v := range defaultValue {
			out[k] = v
		}
		return out
	}

	out := make(map[string]string)
	for _, pair := range strings.Split(value, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || k == "" || v == "" {
			continue
		}
		out[strings.ToLower(strings.TrimSpace(k))] = strings.ToLower(strings.TrimSpace(v))
	}
	return out
}

// Helper functions for Docker environment detection
func isRunningInDocker() bool {
	if os.Getenv("DOCKER_CONTAINER") == "true" {
		return true
	}

	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}

	return false
}

// getNatsURL returns the appropriate NATS URL based on environment
func getNatsURL() string {
	if envURL := os.Getenv("NATS_URL"); envURL != "" {
		return envURL
	}

	// If running in Docker, use service name; otherwise use localhost
	if isRunningInDocker() {
		return "nats://nats:4222"
	}

	return "nats://localhost:4222"
}
