package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tap-monday/pkg/errors"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestTapConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *TapConfig)
		wantError bool
		errorMsg  string
	}{
		{
			name:   "valid defaults with token",
			mutate: func(c *TapConfig) { c.AuthToken = "token" },
		},
		{
			name:      "empty token",
			mutate:    func(c *TapConfig) {},
			wantError: true,
			errorMsg:  "auth_token is required",
		},
		{
			name: "board limit zero",
			mutate: func(c *TapConfig) {
				c.AuthToken = "token"
				c.BoardLimit = 0
			},
			wantError: true,
			errorMsg:  "board_limit must be between 1 and 500",
		},
		{
			name: "item limit too large",
			mutate: func(c *TapConfig) {
				c.AuthToken = "token"
				c.ItemLimit = 501
			},
			wantError: true,
			errorMsg:  "item_limit must be between 1 and 500",
		},
		{
			name: "negative rate limit",
			mutate: func(c *TapConfig) {
				c.AuthToken = "token"
				c.RateLimitPerSec = -1
			},
			wantError: true,
			errorMsg:  "rate_limit_per_sec cannot be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewTapConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantError {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
				assert.Contains(t, err.Error(), tt.errorMsg)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestLoadTapConfig(t *testing.T) {
	t.Run("json file with defaults", func(t *testing.T) {
		path := writeConfig(t, "config.json", `{"auth_token": "abc"}`)
		cfg, err := LoadTapConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "abc", cfg.AuthToken)
		assert.Equal(t, DefaultBoardLimit, cfg.BoardLimit)
		assert.Equal(t, DefaultItemLimit, cfg.ItemLimit)
		assert.Equal(t, DefaultAPIURL, cfg.APIURL)
		assert.Equal(t, DefaultAPIVersion, cfg.APIVersion)
		assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	})

	t.Run("api version override", func(t *testing.T) {
		path := writeConfig(t, "config.json", `{"auth_token": "abc", "api_version": "2024-01"}`)
		cfg, err := LoadTapConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "2024-01", cfg.SourceConfig().Security.Credential(KeyAPIVersion, ""))
	})

	t.Run("yaml file with overrides", func(t *testing.T) {
		path := writeConfig(t, "config.yaml", "auth_token: abc\nboard_limit: 2\nrequest_timeout: 5s\nuser_agent: tap-test\n")
		cfg, err := LoadTapConfig(path)
		require.NoError(t, err)
		assert.Equal(t, 2, cfg.BoardLimit)
		assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
		assert.Equal(t, "tap-test", cfg.UserAgent)
	})

	t.Run("env substitution", func(t *testing.T) {
		t.Setenv("MONDAY_TOKEN_FOR_TEST", "from-env")
		path := writeConfig(t, "config.json", `{"auth_token": "${MONDAY_TOKEN_FOR_TEST}"}`)
		cfg, err := LoadTapConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "from-env", cfg.AuthToken)
	})

	t.Run("env substitution is not rescanned", func(t *testing.T) {
		t.Setenv("MONDAY_SELF_REF_FOR_TEST", "${MONDAY_SELF_REF_FOR_TEST}")
		path := writeConfig(t, "config.yaml", "auth_token: ${MONDAY_SELF_REF_FOR_TEST}\n")
		cfg, err := LoadTapConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "${MONDAY_SELF_REF_FOR_TEST}", cfg.AuthToken)
	})

	t.Run("env substitution escapes json", func(t *testing.T) {
		t.Setenv("MONDAY_QUOTED_FOR_TEST", `tok"en\x`)
		path := writeConfig(t, "config.json", `{"auth_token": "${MONDAY_QUOTED_FOR_TEST}", "board_limit": 3}`)
		cfg, err := LoadTapConfig(path)
		require.NoError(t, err)
		assert.Equal(t, `tok"en\x`, cfg.AuthToken)
		assert.Equal(t, 3, cfg.BoardLimit)
	})

	t.Run("env override", func(t *testing.T) {
		t.Setenv("TAP_MONDAY_ITEM_LIMIT", "7")
		path := writeConfig(t, "config.json", `{"auth_token": "abc", "item_limit": 50}`)
		cfg, err := LoadTapConfig(path)
		require.NoError(t, err)
		assert.Equal(t, 7, cfg.ItemLimit)
	})

	t.Run("empty token fails validation", func(t *testing.T) {
		path := writeConfig(t, "config.json", `{"auth_token": ""}`)
		_, err := LoadTapConfig(path)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadTapConfig(filepath.Join(t.TempDir(), "nope.json"))
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	})
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("SUBST_TOKEN_FOR_TEST", `a"b\c`)
	t.Setenv("SUBST_LOOP_FOR_TEST", "x${SUBST_LOOP_FOR_TEST}")

	tests := []struct {
		name       string
		content    string
		escapeJSON bool
		want       string
	}{
		{"raw value", "token: ${SUBST_TOKEN_FOR_TEST}", false, `token: a"b\c`},
		{"json value", `{"t":"${SUBST_TOKEN_FOR_TEST}"}`, true, `{"t":"a\"b\\c"}`},
		{"self reference", "${SUBST_LOOP_FOR_TEST}-${SUBST_LOOP_FOR_TEST}", false, "x${SUBST_LOOP_FOR_TEST}-x${SUBST_LOOP_FOR_TEST}"},
		{"unset variable", "[${SUBST_UNSET_FOR_TEST}]", false, "[]"},
		{"unterminated", "keep ${SUBST_TOKEN_FOR_TEST", false, "keep ${SUBST_TOKEN_FOR_TEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, substituteEnvVars(tt.content, tt.escapeJSON))
		})
	}
}

func TestTapConfigConversion(t *testing.T) {
	tap := NewTapConfig()
	tap.AuthToken = "abc"
	tap.BoardLimit = 3
	tap.UserAgent = "agent"
	tap.RateLimitPerSec = 4
	tap.OutputPath = "/tmp/out.jsonl.gz"

	src := tap.SourceConfig()
	require.NoError(t, src.Validate())
	assert.Equal(t, "monday", src.Name)
	assert.Equal(t, "abc", src.Security.Credentials[KeyAuthToken])
	assert.Equal(t, "3", src.Security.Credentials[KeyBoardLimit])
	assert.Equal(t, "agent", src.Security.Credential(KeyUserAgent, ""))
	assert.Equal(t, DefaultAPIVersion, src.Security.Credential(KeyAPIVersion, ""))
	assert.Equal(t, 4, src.Reliability.RateLimitPerSec)
	assert.True(t, src.Reliability.IsRateLimited())

	dst := tap.DestinationConfig()
	require.NoError(t, dst.Validate())
	assert.Equal(t, "/tmp/out.jsonl.gz", dst.Security.Credentials[KeyPath])
}
