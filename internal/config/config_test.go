package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sartorproj/goharch/har"
)

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte("data:\n  file: prices.csv\n"))
	require.NoError(t, err)

	assert.Equal(t, "prices.csv", c.Data.File)
	assert.Equal(t, "close", c.Data.ValueColumn)
	assert.True(t, c.Data.LogReturns)
	assert.Equal(t, 100.0, c.Data.Scale)
	assert.Equal(t, 22, c.Mean.HoldBack)
	assert.Equal(t, "bic", c.Mean.Criterion)
	assert.True(t, c.Volatility.Enabled)
	assert.Equal(t, "info", c.Logging.Level)
	assert.Equal(t, "console", c.Logging.Format)
	assert.Equal(t, "stderr", c.Logging.Output)
}

func TestParseKeepsExplicitValues(t *testing.T) {
	c, err := Parse([]byte(`
data:
  file: spx.csv
  log_returns: false
  scale: 1
mean:
  hold_back: 10
  constant: true
  nu: 6
  criterion: aicc
  lags: [1, 5, 10]
volatility:
  enabled: false
  lags: [1]
  leverage: true
selection:
  workers: 3
  leverage: true
  fail_fast: true
logging:
  level: debug
  format: json
metrics:
  dump_file: metrics.prom
`))
	require.NoError(t, err)

	assert.False(t, c.Data.LogReturns)
	assert.False(t, c.Volatility.Enabled)
	assert.Equal(t, []int{1, 5, 10}, c.Mean.Lags)
	assert.Equal(t, 3, c.Selection.Workers)
	assert.True(t, c.Selection.FailFast)
	assert.Equal(t, "metrics.prom", c.Metrics.DumpFile)

	assert.Equal(t, har.Params{HoldBack: 10, Constant: true, Nu: 6, Criterion: har.AICc}, c.HARParams())
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"missing file": "mean:\n  hold_back: 5\n",
		"criterion":    "data:\n  file: a.csv\nmean:\n  criterion: hqic\n",
		"nu":           "data:\n  file: a.csv\nmean:\n  nu: 1.5\n",
		"hold back":    "data:\n  file: a.csv\nmean:\n  hold_back: 0\n",
		"lag too big":  "data:\n  file: a.csv\nmean:\n  hold_back: 5\n  lags: [6]\n",
		"vol lag":      "data:\n  file: a.csv\nmean:\n  hold_back: 5\nvolatility:\n  lags: [9]\n",
		"log format":   "data:\n  file: a.csv\nlogging:\n  format: xml\n",
		"not yaml":     "data: [",
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data:\n  file: x.csv\n"), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "x.csv", c.Data.File)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
