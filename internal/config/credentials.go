package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// APIKeyEnv is the variable holding the FRED API key.
const APIKeyEnv = "FRED_API_KEY"

// LoadAPIKey returns the FRED API key. The configured value (which already
// includes the FRED_API_KEY environment variable) wins; otherwise each file in
// refresh.env_files is read as dotenv in order. No key is a ConfigurationError.
func LoadAPIKey(cfg *Config) (string, error) {
	if key := strings.TrimSpace(cfg.Fred.APIKey); key != "" {
		return key, nil
	}

	for _, path := range cfg.Refresh.EnvFiles {
		key, err := readEnvFile(path)
		if err != nil {
			zap.L().Warn("cannot read env file",
				zap.String("component", "config"),
				zap.String("path", path),
				zap.Error(err),
			)
			continue
		}
		if key != "" {
			zap.L().Debug("api key loaded from env file",
				zap.String("component", "config"),
				zap.String("path", path),
			)
			return key, nil
		}
	}

	return "", &ConfigurationError{
		Reason: APIKeyEnv + " not found in config, environment, or env files (" +
			strings.Join(cfg.Refresh.EnvFiles, ", ") + ")",
	}
}

// readEnvFile returns the FRED_API_KEY entry of a dotenv file. A missing file
// yields an empty key and no error.
func readEnvFile(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return "", err
	}
	return strings.TrimSpace(v.GetString(APIKeyEnv)), nil
}
