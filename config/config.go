// config/config.go
package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const DefaultShareBase = "https://head.theo-challengers.pages.dev"

type Config struct {
	HTTPAddr  string
	AppEnv    string
	DBDriver  string
	DBDSN     string
	ShareBase string
	// LinkEncoding selects the generation used for outgoing exchange payloads: "v2" or "legacy".
	LinkEncoding   string
	GossipLimit    int
	InventoryLimit int
	LANIntake      bool
	PeerTimeout    time.Duration

	MonthlyResetInterval time.Duration

	Backup BackupConfig
}

type BackupConfig struct {
	Enabled         bool
	Interval        time.Duration
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
}

// Load reads .env (if any) and the process environment, falling back to defaults.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", "127.0.0.1:5200")
	v.SetDefault("APP_ENV", "production")
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DATABASE_URL", "theo-challengers.db")
	v.SetDefault("PUBLIC_URL_BASE_LINK", DefaultShareBase)
	v.SetDefault("LINK_ENCODING", "v2")
	v.SetDefault("GOSSIP_LIMIT", 10)
	v.SetDefault("INVENTORY_LIMIT", 3)
	v.SetDefault("LAN_INTAKE", false)
	v.SetDefault("PEER_TIMEOUT", "10s")
	v.SetDefault("MONTHLY_RESET_INTERVAL", "1h")
	v.SetDefault("BACKUP_ENABLED", false)
	v.SetDefault("BACKUP_INTERVAL", "24h")

	shareBase := strings.TrimSpace(v.GetString("PUBLIC_URL_BASE_LINK"))
	if shareBase == "" {
		shareBase = DefaultShareBase
	}

	return Config{
		HTTPAddr:             v.GetString("HTTP_ADDR"),
		AppEnv:               v.GetString("APP_ENV"),
		DBDriver:             strings.ToLower(v.GetString("DB_DRIVER")),
		DBDSN:                v.GetString("DATABASE_URL"),
		ShareBase:            shareBase,
		LinkEncoding:         strings.ToLower(v.GetString("LINK_ENCODING")),
		GossipLimit:          v.GetInt("GOSSIP_LIMIT"),
		InventoryLimit:       v.GetInt("INVENTORY_LIMIT"),
		LANIntake:            v.GetBool("LAN_INTAKE"),
		PeerTimeout:          v.GetDuration("PEER_TIMEOUT"),
		MonthlyResetInterval: v.GetDuration("MONTHLY_RESET_INTERVAL"),
		Backup: BackupConfig{
			Enabled:         v.GetBool("BACKUP_ENABLED"),
			Interval:        v.GetDuration("BACKUP_INTERVAL"),
			AccountID:       v.GetString("CLOUDFLARE_ACCOUNT_ID"),
			AccessKeyID:     v.GetString("R2_ACCESS_KEY_ID"),
			AccessKeySecret: v.GetString("R2_ACCESS_KEY_SECRET"),
			Bucket:          v.GetString("R2_BUCKET_NAME"),
		},
	}
}
