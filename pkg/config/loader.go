package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/ajitpratap0/tap-monday/pkg/errors"
	jsonpool "github.com/ajitpratap0/tap-monday/pkg/json"
)

// EnvPrefix prefixes environment overrides, e.g. TAP_MONDAY_AUTH_TOKEN.
const EnvPrefix = "TAP_MONDAY"

// LoadTapConfig reads a JSON or YAML config file, applies ${VAR} substitution
// and TAP_MONDAY_* environment overrides, then validates the result.
func LoadTapConfig(filePath string) (*TapConfig, error) {
	v := newViper()

	if filePath != "" {
		data, err := os.ReadFile(filePath) //nolint:gosec // G304: path comes from the --config flag
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file")
		}
		cfgType := configType(filePath)
		v.SetConfigType(cfgType)
		content := substituteEnvVars(string(data), cfgType == "json")
		if err := v.ReadConfig(bytes.NewBufferString(content)); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse config file")
		}
	}

	cfg := &TapConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	defaults := NewTapConfig()
	v.SetDefault(KeyAuthToken, defaults.AuthToken)
	v.SetDefault(KeyBoardLimit, defaults.BoardLimit)
	v.SetDefault(KeyItemLimit, defaults.ItemLimit)
	v.SetDefault(KeyWorkspaceLimit, defaults.WorkspaceLimit)
	v.SetDefault(KeyAPIURL, defaults.APIURL)
	v.SetDefault(KeyAPIVersion, defaults.APIVersion)
	v.SetDefault(KeyUserAgent, defaults.UserAgent)
	v.SetDefault("request_timeout", defaults.RequestTimeout)
	v.SetDefault("rate_limit_per_sec", defaults.RateLimitPerSec)
	v.SetDefault("output_path", defaults.OutputPath)
	v.SetDefault("enable_tracing", defaults.EnableTracing)
	v.SetDefault("log_level", defaults.LogLevel)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func configType(filePath string) string {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values.
// Inserted values are never rescanned. With escapeJSON set, values are escaped
// so they stay valid inside a JSON string literal.
func substituteEnvVars(content string, escapeJSON bool) string {
	var b strings.Builder
	b.Grow(len(content))
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		value := os.Getenv(content[start+2 : end])
		if escapeJSON {
			value = jsonEscape(value)
		}
		b.WriteString(content[:start])
		b.WriteString(value)
		content = content[end+1:]
	}
	b.WriteString(content)
	return b.String()
}

// jsonEscape returns s encoded as the inside of a JSON string literal
func jsonEscape(s string) string {
	quoted, err := jsonpool.Marshal(s)
	if err != nil || len(quoted) < 2 {
		return s
	}
	return string(quoted[1 : len(quoted)-1])
}
