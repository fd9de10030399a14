package core

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// StorageDriver identifies a concrete roster storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageJSONFile StorageDriver = "jsonfile" // in-memory, autosaved to a JSON document
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

type (
	StorageConfig struct {
		Driver StorageDriver `mapstructure:"driver"`
		Path   string        `mapstructure:"path"` // jsonfile & sqlite
		DSN    string        `mapstructure:"dsn"`  // postgres
	}

	ServerConfig struct {
		Address        string `mapstructure:"address"`
		DisableReqLogs bool   `mapstructure:"disableReqLogs"`
	}

	LogConfig struct {
		Level  string `mapstructure:"level"`
		Pretty bool   `mapstructure:"pretty"`
	}

	MailConfig struct {
		SendgridKey      string `mapstructure:"sendgridKey"`
		DefaultFromEmail string `mapstructure:"defaultFromEmail"`
	}

	// BackupConfig holds the S3 settings used by s3:// backup targets.
	BackupConfig struct {
		Region    string `mapstructure:"region"`
		Endpoint  string `mapstructure:"endpoint"` // S3 compatible servers (minio, ...)
		AccessKey string `mapstructure:"accessKey"`
		SecretKey string `mapstructure:"secretKey"`
	}

	Config struct {
		Env          string        `mapstructure:"env"`
		Debug        bool          `mapstructure:"debug"`
		TestMode     bool          `mapstructure:"testMode"`
		AppName      string        `mapstructure:"appName"`
		Build        string        `mapstructure:"build"`
		RollbarToken string        `mapstructure:"rollbarToken"`
		Storage      StorageConfig `mapstructure:"storage"`
		Server       ServerConfig  `mapstructure:"server"`
		Log          LogConfig     `mapstructure:"log"`
		Mail         MailConfig    `mapstructure:"mail"`
		Backup       BackupConfig  `mapstructure:"backup"`
	}
)

const envPrefix = "ROSTER"

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "Roster")
	v.SetDefault("build", "dev")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("storage.driver", string(StorageJSONFile))
	v.SetDefault("storage.path", "roster.json")
	v.SetDefault("storage.dsn", "")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.disableReqLogs", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("mail.sendgridKey", "")
	v.SetDefault("mail.defaultFromEmail", "noreply@localhost")
	v.SetDefault("backup.region", "us-east-1")
	v.SetDefault("backup.endpoint", "")
	v.SetDefault("backup.accessKey", "")
	v.SetDefault("backup.secretKey", "")
}

// LoadConfig reads the configuration from defaults, an optional config file,
// an optional config/.env.<env> file and ROSTER_* environment variables (highest priority).
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	case "QA", "PROD":
		v.SetDefault("debug", false)
	}
	v.SetDefault("env", env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "stat %s", dotEnvPath)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "reading config file %s", path)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	conf := new(Config)
	if err := v.Unmarshal(conf); err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}
	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func (conf *Config) validate() error {
	switch conf.Storage.Driver {
	case StorageMemory:
	case StorageJSONFile, StorageSQLite:
		if conf.Storage.Path == "" {
			return errors.Errorf("storage.path is required for the %s driver", conf.Storage.Driver)
		}
	case StoragePostgres:
		if conf.Storage.DSN == "" {
			return errors.New("storage.dsn is required for the postgres driver")
		}
	default:
		return errors.Errorf("unknown storage driver %q", conf.Storage.Driver)
	}
	return nil
}
