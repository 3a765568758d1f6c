package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/dupdetect/config"
)

func TestApplyFlags(t *testing.T) {
	cfg := config.DefaultConfig()
	err := applyFlags(cfg, rootFlags{
		timeout:   5 * time.Minute,
		output:    "yaml",
		debug:     true,
		logLevel:  "warn",
		logFormat: "console",
	})
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.Timeout)
	assert.Equal(t, config.OutputFormatYAML, cfg.OutputFormat)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.EffectiveLogLevel())
}

func TestApplyFlags_ZeroValuesKeepConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.OutputFormat = config.OutputFormatJSON
	require.NoError(t, applyFlags(cfg, rootFlags{}))
	assert.Equal(t, config.OutputFormatJSON, cfg.OutputFormat)
	assert.Equal(t, config.DefaultTimeout, cfg.Timeout)
}

func TestApplyFlags_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		flags rootFlags
	}{
		{"output", rootFlags{output: "xml"}},
		{"log level", rootFlags{logLevel: "verbose"}},
		{"log format", rootFlags{logFormat: "logfmt"}},
		{"negative timeout", rootFlags{timeout: -time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, applyFlags(config.DefaultConfig(), tt.flags))
		})
	}
}

func TestNewLogger_WritesToGivenWriter(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.LogFormat = "json"
	var buf bytes.Buffer

	logger := newLogger(cfg, &buf)
	logger.Info("hello")
	logger.Debug("hidden")

	assert.Contains(t, buf.String(), "hello")
	assert.NotContains(t, buf.String(), "hidden")
}

func TestFormatDurationMs(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{0, "0ms"},
		{999, "999ms"},
		{1500, "1.5s"},
		{59999, "60.0s"},
		{90000, "1.5m"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDurationMs(tt.ms))
	}
}

func TestConfigShow(t *testing.T) {
	t.Setenv("DUPDETECT_CONFIG_DIR", "/etc/dupdetect")
	cfg := config.DefaultConfig()
	cfg.Detection.CrossOrgThreshold = 0.95

	cmd := newConfigCommand(func() (*config.CLIConfig, error) { return cfg, nil })
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"show"})
	require.NoError(t, cmd.Execute())

	s := out.String()
	assert.True(t, strings.HasPrefix(s, "# /etc/dupdetect/config.yaml\n"), s)
	assert.Contains(t, s, "cross_org_threshold: 0.95")
}

func TestVersionCommand(t *testing.T) {
	saved := globalFlags
	t.Cleanup(func() { globalFlags = saved })

	globalFlags.output = ""
	cmd := NewVersionCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())
	assert.True(t, strings.HasPrefix(out.String(), "dupdetect "), out.String())

	globalFlags.output = "json"
	out.Reset()
	cmd = NewVersionCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())

	var info map[string]string
	require.NoError(t, json.Unmarshal(out.Bytes(), &info))
	assert.Equal(t, "dupdetect", info["service_name"])
	assert.NotEmpty(t, info["go_version"])
}
