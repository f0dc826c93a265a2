package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	JWTSecret   string
	MongoURI    string
	DBName      string
	SkipAuth    bool
	Environment string
	AppId       string

	// Bitrix24 portal and OAuth application
	B24Domain       string
	B24ClientID     string
	B24ClientSecret string

	// SPA entity type IDs
	SprawyTypeID   int
	PodstawyTypeID int
	PracaTypeID    int
	ProcesyTypeID  int

	// Link/date fields on Sprawy, per relation
	FieldPodstawyLink  string
	FieldPodstawyDates string
	FieldPracaLink     string
	FieldPracaDates    string
	FieldProcesyLink   string

	// Date fields on the child records themselves
	FieldPodstawyDate string
	FieldPracaDate    string

	// Contact -> Sprawy copied fields
	FieldContactPassport     string
	FieldSprawyPassport      string
	FieldContactPassportDate string
	FieldSprawyPassportDate  string

	// Stage names (last stageId segment) counted as final
	FinalStages []string

	// Schedules and queue tuning
	DailySyncCron    string
	TokenRefreshCron string
	QueueWorkers     int
	QueueMaxAttempts int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	} else {
		log.Println("Loaded .env file successfully")
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		JWTSecret:   getEnv("JWT_SECRET", "secret"),
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:      getEnv("DB_NAME", "b24-sync"),
		SkipAuth:    getEnv("SKIP_AUTH", "false") == "true",
		Environment: getEnv("ENVIRONMENT", "development"),
		AppId:       getEnv("APP_ID", "b24-sync"),

		B24Domain:       getEnv("B24_DOMAIN", "example.bitrix24.pl"),
		B24ClientID:     getEnv("B24_CLIENT_ID", ""),
		B24ClientSecret: getEnv("B24_CLIENT_SECRET", ""),

		SprawyTypeID:   getEnvInt("SPA_SPRAWY_ID", 1106),
		PodstawyTypeID: getEnvInt("SPA_PODSTAWY_ID", 1042),
		PracaTypeID:    getEnvInt("SPA_PRACA_ID", 1046),
		ProcesyTypeID:  getEnvInt("SPA_PROCESY_ID", 1110),

		FieldPodstawyLink:  getEnv("FIELD_SPRAWY_PODSTAWY", "ufCrm38_1768737959"),
		FieldPodstawyDates: getEnv("FIELD_SPRAWY_PODSTAWY_DATES", "ufCrm38_1768738011252"),
		FieldPracaLink:     getEnv("FIELD_SPRAWY_PRACA", "ufCrm38_1768738112"),
		FieldPracaDates:    getEnv("FIELD_SPRAWY_PRACA_DATES", "ufCrm38_1768738327769"),
		FieldProcesyLink:   getEnv("FIELD_SPRAWY_PROCESY", "ufCrm38_1768738413"),

		FieldPodstawyDate: getEnv("FIELD_PODSTAWY_DATA_DO_KIEDY", "ufCrm10_1763581700754"),
		FieldPracaDate:    getEnv("FIELD_PRACA_DATA_WAZNOSCI", "ufCrm12_1764516949310"),

		FieldContactPassport:     getEnv("FIELD_CONTACT_PASSPORT", "UF_CRM_1758997725285"),
		FieldSprawyPassport:      getEnv("FIELD_SPRAWY_PASSPORT", "ufCrm38_1764509760429"),
		FieldContactPassportDate: getEnv("FIELD_CONTACT_PASSPORT_DATE", "UF_CRM_1760984058065"),
		FieldSprawyPassportDate:  getEnv("FIELD_SPRAWY_PASSPORT_DATE", "ufCrm38_1764509780038"),

		FinalStages: getEnvList("FINAL_STAGES", "SUCCESS,FAIL,FAILURE,LOSE,APOLOGY"),

		DailySyncCron:    getEnv("DAILY_SYNC_CRON", "0 3 * * *"),
		TokenRefreshCron: getEnv("TOKEN_REFRESH_CRON", "*/20 * * * *"),
		QueueWorkers:     getEnvInt("QUEUE_WORKERS", 4),
		QueueMaxAttempts: getEnvInt("QUEUE_MAX_ATTEMPTS", 5),
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Printf("Invalid integer for %s, using default %d", key, fallback)
	}
	return fallback
}

func getEnvList(key, fallback string) []string {
	raw := getEnv(key, fallback)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
