package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g.
// TRAINWATCH_SERVER_PORT=9090.
const EnvPrefix = "TRAINWATCH"

// DefaultFileName is the config file searched for in the working
// directory when no explicit path is given.
const DefaultFileName = "trainwatch.yaml"

// Load reads the application configuration. Precedence, highest first:
// environment variables, the config file, built-in defaults. A missing
// file is not an error unless it was named explicitly.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = DefaultFileName
	}
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		if explicit {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := Default()
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(cfg, viper.DecodeHook(decodeHook)); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.profile", DefaultLogProfile)

	v.SetDefault("server.enabled", false)
	v.SetDefault("server.host", DefaultServerHost)
	v.SetDefault("server.port", DefaultServerPort)

	v.SetDefault("sinks.async_buffer", 0)
	v.SetDefault("sinks.jsonl.enabled", true)
	v.SetDefault("sinks.mlflow.enabled", false)
	v.SetDefault("sinks.mlflow.tracking_uri", "")
	v.SetDefault("sinks.mlflow.token", "")
	v.SetDefault("sinks.mlflow.experiment_id", "")
	v.SetDefault("sinks.mlflow.requests_per_second", 0)
	v.SetDefault("sinks.history.enabled", true)
	v.SetDefault("sinks.history.path", "")

	v.SetDefault("mirror.enabled", false)
	v.SetDefault("mirror.s3.bucket", "")
	v.SetDefault("mirror.s3.region", "")
	v.SetDefault("mirror.s3.endpoint", "")
	v.SetDefault("mirror.s3.profile", "")
	v.SetDefault("mirror.s3.access_key_id", "")
	v.SetDefault("mirror.s3.secret_access_key", "")
	v.SetDefault("mirror.s3.force_path_style", false)
	v.SetDefault("mirror.s3.prefix", "")
}
