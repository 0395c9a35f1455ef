package config

import (
	"log"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type AutomationConfig struct {
	Cron         string
	PenaltyScore float64
	Grace        time.Duration
	RunTimeout   time.Duration
}

type ScheduleConfig struct {
	LeadDays int
	Hour     int
	Location *time.Location
}

type OSSConfig struct {
	Endpoint        string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	PublicBaseURL   string
}

type ResendConfig struct {
	APIKey string
	From   string
}

// AppConfig is the process configuration read from the environment (and .env).
type AppConfig struct {
	Debug          bool
	Port           string
	CORSOrigins    []string
	MongoURI       string
	MongoDatabase  string
	JWTKey         []byte
	JWTTTL         time.Duration
	GoogleClientID string

	Automation AutomationConfig
	Schedule   ScheduleConfig
	OSS        OSSConfig
	Resend     ResendConfig

	NotificationInterval time.Duration
	RoomSeedFile         string
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	v.SetDefault("DEBUG", false)
	v.SetDefault("PORT", "8080")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("MONGO_DATABASE", "pentama")
	v.SetDefault("JWT_TTL", 24*time.Hour)
	v.SetDefault("AUTOMATION_CRON", "@every 1m")
	v.SetDefault("AUTOMATION_PENALTY_SCORE", 35.0)
	v.SetDefault("AUTOMATION_GRACE", 24*time.Hour)
	v.SetDefault("AUTOMATION_RUN_TIMEOUT", 2*time.Minute)
	v.SetDefault("SCHEDULE_LEAD_DAYS", 7)
	v.SetDefault("SCHEDULE_HOUR", 9)
	v.SetDefault("TIMEZONE", "Asia/Jakarta")
	v.SetDefault("NOTIFICATION_INTERVAL", time.Minute)

	v.AutomaticEnv()
	return v
}

// LoadDotEnv loads the file named by ENV_FILE (default .env) into the process
// environment. A missing file is not an error.
func LoadDotEnv() {
	path := os.Getenv("ENV_FILE")
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		log.Printf("No %s file found, using system environment variables", path)
	}
}

func NewAppConfig() (*AppConfig, error) {
	LoadDotEnv()
	return loadAppConfig(newViper())
}

func loadAppConfig(v *viper.Viper) (*AppConfig, error) {
	loc, err := time.LoadLocation(v.GetString("TIMEZONE"))
	if err != nil {
		return nil, errors.Wrap(err, "config: TIMEZONE")
	}

	cfg := &AppConfig{
		Debug:          v.GetBool("DEBUG"),
		Port:           v.GetString("PORT"),
		CORSOrigins:    splitList(v.GetString("CORS_ORIGINS")),
		MongoURI:       v.GetString("MONGO_URI"),
		MongoDatabase:  v.GetString("MONGO_DATABASE"),
		JWTKey:         []byte(v.GetString("JWT_KEY")),
		JWTTTL:         v.GetDuration("JWT_TTL"),
		GoogleClientID: v.GetString("GOOGLE_CLIENT_ID"),
		Automation: AutomationConfig{
			Cron:         v.GetString("AUTOMATION_CRON"),
			PenaltyScore: v.GetFloat64("AUTOMATION_PENALTY_SCORE"),
			Grace:        v.GetDuration("AUTOMATION_GRACE"),
			RunTimeout:   v.GetDuration("AUTOMATION_RUN_TIMEOUT"),
		},
		Schedule: ScheduleConfig{
			LeadDays: v.GetInt("SCHEDULE_LEAD_DAYS"),
			Hour:     v.GetInt("SCHEDULE_HOUR"),
			Location: loc,
		},
		OSS: OSSConfig{
			Endpoint:        v.GetString("OSS_ENDPOINT"),
			AccessKeyID:     v.GetString("OSS_ACCESS_KEY"),
			AccessKeySecret: v.GetString("OSS_SECRET_KEY"),
			Bucket:          v.GetString("OSS_BUCKET"),
			PublicBaseURL:   v.GetString("OSS_PUBLIC_BASE_URL"),
		},
		Resend: ResendConfig{
			APIKey: v.GetString("RESEND_API_KEY"),
			From:   v.GetString("FROM_EMAIL"),
		},
		NotificationInterval: v.GetDuration("NOTIFICATION_INTERVAL"),
		RoomSeedFile:         v.GetString("ROOM_SEED_FILE"),
	}

	switch {
	case cfg.MongoURI == "":
		return nil, errors.New("config: MONGO_URI not set")
	case len(cfg.JWTKey) == 0:
		return nil, errors.New("config: JWT_KEY not set")
	case cfg.Schedule.Hour < 0 || cfg.Schedule.Hour > 23:
		return nil, errors.Errorf("config: SCHEDULE_HOUR %d out of range", cfg.Schedule.Hour)
	case cfg.Automation.PenaltyScore < 0 || cfg.Automation.PenaltyScore > 100:
		return nil, errors.Errorf("config: AUTOMATION_PENALTY_SCORE %v out of range", cfg.Automation.PenaltyScore)
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
