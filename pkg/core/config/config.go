// Package config loads service identity from the environment and wires the
// shared viper instance every other module reads its subtree from.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	envAppEnv         = "APP_ENV"
	envAppServiceName = "APP_SERVICE_NAME"
	envConfigFile     = "CONFIG_FILE"
	envConfigDir      = "CONFIG_DIR"

	defaultConfigDir = "./configs"
)

// AppConfig carries service identity and the resolved config file location.
type AppConfig struct {
	ConfigFile  string
	ServiceName string
	Environment string
}

// NewAppConfigModule provides AppConfig and *viper.Viper.
//
// Required environment variables:
//   - APP_ENV: environment name (e.g. "local", "pro")
//   - APP_SERVICE_NAME: service name
//
// Optional:
//   - CONFIG_FILE: full path to config file (default: ./configs/config.{env}.yaml)
//   - CONFIG_DIR: directory containing config files
func NewAppConfigModule() fx.Option {
	return fx.Options(
		fx.Provide(
			newAppConfig,
			newViper,
		),
		fx.Invoke(func(log *zap.Logger, conf AppConfig) {
			log.Info("loaded application configuration",
				zap.String("service", conf.ServiceName),
				zap.String("environment", conf.Environment),
				zap.String("configFile", conf.ConfigFile),
			)
		}),
	)
}

func newAppConfig() (AppConfig, error) {
	// .env is optional
	_ = godotenv.Load()

	env := os.Getenv(envAppEnv)
	if env == "" {
		return AppConfig{}, fmt.Errorf("%s is required", envAppEnv)
	}

	serviceName := os.Getenv(envAppServiceName)
	if serviceName == "" {
		return AppConfig{}, fmt.Errorf("%s is required", envAppServiceName)
	}

	configFile := os.Getenv(envConfigFile)
	if configFile == "" {
		configDir := os.Getenv(envConfigDir)
		if configDir == "" {
			configDir = defaultConfigDir
		}
		configFile = filepath.Join(configDir, "config."+env+".yaml")
	}

	return AppConfig{
		ConfigFile:  configFile,
		ServiceName: serviceName,
		Environment: env,
	}, nil
}

func newViper(conf AppConfig) (*viper.Viper, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	v.SetConfigFile(conf.ConfigFile)
	if _, err := os.Stat(conf.ConfigFile); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file [%s] does not exist: %w", conf.ConfigFile, err)
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file [%s]: %w", conf.ConfigFile, err)
	}

	return v, nil
}
