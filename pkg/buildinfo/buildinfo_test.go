package buildinfo

import (
	"encoding/json"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestGet_Defaults(t *testing.T) {
	info := Get("dupdetect")

	assert.Equal(t, "dupdetect", info.ServiceName)
	assert.Equal(t, "dev", info.Version)
	assert.Equal(t, "unknown", info.Commit)
	assert.Equal(t, "unknown", info.BuildTime)
	assert.Equal(t, runtime.Version(), info.GoVersion)
}

func TestString(t *testing.T) {
	assert.Equal(t, "dev (unknown, unknown)", String())

	origVersion, origCommit, origBuildTime := Version, Commit, BuildTime
	defer func() {
		Version, Commit, BuildTime = origVersion, origCommit, origBuildTime
	}()

	Version = "v0.3.0"
	Commit = "abc123d"
	BuildTime = "2026-02-07T10:30:00Z"

	assert.Equal(t, "v0.3.0 (abc123d, 2026-02-07T10:30:00Z)", String())
}

func TestInfo_Encodings(t *testing.T) {
	info := Info{
		ServiceName: "dupdetect",
		Version:     "v1.0.0",
		Commit:      "abcd1234",
		BuildTime:   "2026-01-01T00:00:00Z",
		GoVersion:   "go1.24.0",
	}
	want := map[string]any{
		"service_name": "dupdetect",
		"version":      "v1.0.0",
		"commit":       "abcd1234",
		"build_time":   "2026-01-01T00:00:00Z",
		"go_version":   "go1.24.0",
	}

	data, err := json.Marshal(info)
	require.NoError(t, err)
	var fromJSON map[string]any
	require.NoError(t, json.Unmarshal(data, &fromJSON))
	assert.Equal(t, want, fromJSON)

	data, err = yaml.Marshal(info)
	require.NoError(t, err)
	var fromYAML map[string]any
	require.NoError(t, yaml.Unmarshal(data, &fromYAML))
	assert.Equal(t, want, fromYAML)
}
