package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"process-capex/db/runs"
	"process-capex/pkg/platform"
)

const plant = `
project: cumene
index:
  target_year: 2023
devices:
  - name: P-101
    category: pump
    power: 50 kW
  - name: E-201
    category: heat_exchanger
    area: 100 m2
  - name: X-1
`

func testConfig() *platform.Config {
	return &platform.Config{
		LogLevel:        "error",
		BaseYear:        2017,
		DefaultMaterial: "CS",
		Port:            8080,
		Store:           "none",
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := newApp(testConfig())
	app.Writer = &out
	app.ErrWriter = &errOut
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run(append([]string{"capex"}, args...))
	return out.String(), err
}

func TestEstimateJSON(t *testing.T) {
	path := writeFile(t, "plant.yaml", plant)

	out, err := run(t, "estimate", "--devices", path, "--format", "json")
	require.NoError(t, err)

	var got JSONOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "cumene", got.Project)
	assert.Len(t, got.Devices, 2)
	assert.Equal(t, 797.9, got.Index.TargetIndex)
	assert.NotEqual(t, "0.00", got.BareModule)
	assert.Empty(t, got.Devices[0].Formula)
	assert.Equal(t, "pass", got.PolicyResult)
	require.Len(t, got.Skipped, 1)
	assert.Equal(t, "X-1", got.Skipped[0].Name)
}

func TestEstimateIndexFlagsOverrideFile(t *testing.T) {
	path := writeFile(t, "plant.yaml", plant)

	out, err := run(t, "estimate", "--devices", path, "--format", "json", "--target-index", "600", "--include-formulas")
	require.NoError(t, err)

	var got JSONOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 600.0, got.Index.TargetIndex)
	assert.NotEmpty(t, got.Devices[0].Formula)
}

func TestEstimateTableAndMarkdown(t *testing.T) {
	path := writeFile(t, "plant.yaml", plant)

	out, err := run(t, "estimate", "--devices", path)
	require.NoError(t, err)
	assert.Contains(t, out, "P-101")
	assert.Contains(t, out, "EQUIPMENT COST ESTIMATE")

	out, err = run(t, "estimate", "--devices", path, "--format", "markdown")
	require.NoError(t, err)
	assert.Contains(t, out, "| P-101 |")
	assert.Contains(t, out, "## 💰 Equipment Cost Estimate: cumene")

	_, err = run(t, "estimate", "--devices", path, "--format", "xml")
	assert.Error(t, err)
}

func TestEstimateDenyExitCode(t *testing.T) {
	path := writeFile(t, "plant.yaml", plant)

	_, err := run(t, "estimate", "--devices", path, "--format", "json", "--cost-limit", "1000")
	require.Error(t, err)
	var exit cli.ExitCoder
	require.True(t, errors.As(err, &exit))
	assert.Equal(t, 2, exit.ExitCode())
}

func TestEstimatePolicyFile(t *testing.T) {
	path := writeFile(t, "plant.yaml", plant)
	policies := writeFile(t, "policies.yaml", `
policies:
  - id: pump-budget
    type: cost_limit
    category: pump
    severity: warning
    threshold: 10
    enabled: true
`)

	out, err := run(t, "estimate", "--devices", path, "--format", "json", "--policies", policies)
	require.NoError(t, err)
	assert.Contains(t, out, "pump-budget")
}

func TestEstimateSaveNeedsStore(t *testing.T) {
	path := writeFile(t, "plant.yaml", plant)

	_, err := run(t, "estimate", "--devices", path, "--save")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--save")

	_, err = run(t, "--store", "sqlite", "runs", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store")
}

func TestRunsTrend(t *testing.T) {
	_, err := run(t, "runs", "trend", "--project", "cumene", "--days", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--days")

	_, err = run(t, "runs", "trend", "--project", "cumene")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no run store")

	var buf bytes.Buffer
	require.NoError(t, writeTrend(&buf, nil))
	assert.Contains(t, buf.String(), "No stored runs")

	buf.Reset()
	require.NoError(t, writeTrend(&buf, []runs.CategoryHistory{
		{Day: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), Category: "pump", BareModule: 66001.5, Devices: 2},
	}))
	assert.Contains(t, buf.String(), "2026-10-01")
	assert.Contains(t, buf.String(), "66001.50")
}

func TestClassifyWithBackup(t *testing.T) {
	bkp := writeFile(t, "plant.bkp", "header\nDA-100\nRadFrac\nB1\nCompr\n")

	out, err := run(t, "classify", "--name", "P-101", "--name", "DA-100", "--name", "B1", "--bkp", bkp)
	require.NoError(t, err)
	assert.Contains(t, out, "RadFrac")
	assert.Contains(t, out, "Compr")
	assert.Contains(t, out, "name_prefix")

	_, err = run(t, "classify")
	assert.Error(t, err)
}

func TestReferenceCommands(t *testing.T) {
	out, err := run(t, "cepci")
	require.NoError(t, err)
	assert.Contains(t, out, "2023")
	assert.Contains(t, out, "797.9")

	out, err = run(t, "correlations", "--category", "pump")
	require.NoError(t, err)
	assert.Contains(t, out, "centrifugal")
	assert.NotContains(t, out, "floating_head")

	out, err = run(t, "policy", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "default-confidence")
}

func TestPreviewCommand(t *testing.T) {
	path := writeFile(t, "plant.yaml", plant)

	out, err := run(t, "preview", "--devices", path)
	require.NoError(t, err)
	assert.Contains(t, out, "heat_exchanger/")
	assert.Contains(t, out, "not costed")
}

func TestParseRunID(t *testing.T) {
	_, err := parseRunID("")
	assert.Error(t, err)
	_, err = parseRunID("nope")
	assert.Error(t, err)
	id, err := parseRunID("6f1c2a9e-8d4b-4f0e-9a57-2c1d3e4f5a6b")
	require.NoError(t, err)
	assert.Equal(t, "6f1c2a9e-8d4b-4f0e-9a57-2c1d3e4f5a6b", id.String())
}
