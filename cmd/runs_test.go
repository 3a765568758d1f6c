package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/dupdetect/config"
	"github.com/otherjamesbrown/dupdetect/pkg/duplicates"
	pferrors "github.com/otherjamesbrown/dupdetect/pkg/errors"
	"github.com/otherjamesbrown/dupdetect/pkg/runlog"
)

type fakeRunLog struct {
	entries   []runlog.Entry
	recorded  []*duplicates.Summary
	gotLimit  int
	listErr   error
	closed    bool
	recordErr error
}

func (f *fakeRunLog) RecordRun(ctx context.Context, s *duplicates.Summary) error {
	f.recorded = append(f.recorded, s)
	return f.recordErr
}

func (f *fakeRunLog) List(ctx context.Context, limit int) ([]runlog.Entry, error) {
	f.gotLimit = limit
	return f.entries, f.listErr
}

func (f *fakeRunLog) Close() error {
	f.closed = true
	return nil
}

func testEntries() []runlog.Entry {
	started := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	cleared := int64(12)
	return []runlog.Entry{
		{
			RunID:         "6f1c2a9e-0000-4000-8000-000000000001",
			Status:        "partial",
			EntityTypes:   []string{"activity", "organization"},
			PairsDetected: 42,
			FailedBatches: 1,
			Cleared:       &cleared,
			StartedAt:     started,
			FinishedAt:    started.Add(2500 * time.Millisecond),
		},
		{
			RunID:      "6f1c2a9e-0000-4000-8000-000000000002",
			Status:     "failed",
			StartedAt:  started.Add(-time.Hour),
			FinishedAt: started.Add(-time.Hour + 90*time.Second),
		},
	}
}

func TestOutputRuns_Text(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, outputRuns(&out, config.OutputFormatText, testEntries()))

	s := out.String()
	assert.Contains(t, s, "RUN ID")
	assert.Contains(t, s, "FAILED BATCHES")
	assert.Contains(t, s, "2026-10-01 09:00:00")
	assert.Contains(t, s, "activity,organization")
	assert.Contains(t, s, "2.5s")
	assert.Contains(t, s, "1.5m")
	assert.Contains(t, s, " - ")
}

func TestOutputRuns_Empty(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, outputRuns(&out, config.OutputFormatText, nil))
	assert.Equal(t, "No runs recorded.\n", out.String())

	out.Reset()
	require.NoError(t, outputRuns(&out, config.OutputFormatJSON, nil))
	assert.JSONEq(t, "[]", out.String())
}

func TestOutputRuns_JSON(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, outputRuns(&out, config.OutputFormatJSON, testEntries()))

	var decoded []runlog.Entry
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, 42, decoded[0].PairsDetected)
	require.NotNil(t, decoded[0].Cleared)
	assert.Equal(t, int64(12), *decoded[0].Cleared)
}

func TestOutputRuns_YAML(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, outputRuns(&out, config.OutputFormatYAML, testEntries()))
	assert.Contains(t, out.String(), "status: partial")
}

func TestRunRunsList(t *testing.T) {
	rl := &fakeRunLog{entries: testEntries()}
	deps := &RunsCommandDeps{
		LoadConfig: func() (*config.CLIConfig, error) { return config.DefaultConfig(), nil },
		OpenRunLog: func(context.Context) (RunLog, error) { return rl, nil },
	}

	var out bytes.Buffer
	require.NoError(t, runRunsList(context.Background(), deps, 5, &out))
	assert.Equal(t, 5, rl.gotLimit)
	assert.True(t, rl.closed)
	assert.Contains(t, out.String(), "6f1c2a9e-0000-4000-8000-000000000001")
}

func TestRunRunsList_Errors(t *testing.T) {
	deps := &RunsCommandDeps{
		LoadConfig: func() (*config.CLIConfig, error) { return config.DefaultConfig(), nil },
		OpenRunLog: func(context.Context) (RunLog, error) { return nil, errors.New("connection refused") },
	}
	err := runRunsList(context.Background(), deps, 20, &bytes.Buffer{})
	assert.True(t, pferrors.IsCode(err, pferrors.ErrConfiguration))

	rl := &fakeRunLog{listErr: errors.New("relation \"detection_runs\" does not exist")}
	deps.OpenRunLog = func(context.Context) (RunLog, error) { return rl, nil }
	err = runRunsList(context.Background(), deps, 20, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listing runs")
	assert.True(t, rl.closed)
}
