package perf

import (
	"encoding/csv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskfire/taskfire-go/rpc/client"
	"github.com/taskfire/taskfire-go/rpc/common"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func sampleResults() map[string]testing.BenchmarkResult {
	return map[string]testing.BenchmarkResult{
		"request": {N: 1000, T: 250 * time.Millisecond},
		"burst":   {},
	}
}

func TestRenderResults(t *testing.T) {
	out := renderResults(sampleResults())
	assert.Contains(t, out, "Throughput")
	assert.Contains(t, out, "request")
	assert.Contains(t, out, "250µs")
	assert.Contains(t, out, "skipped")
}

func TestRenderLatency(t *testing.T) {
	out := renderLatency(client.LatencySnapshot{
		Count: 3,
		Min:   time.Millisecond,
		Mean:  2 * time.Millisecond,
		Max:   3 * time.Millisecond,
	})
	assert.Contains(t, out, "Round Trip Latency")
	assert.Contains(t, out, "3ms")
}

func TestWriteResultsToCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	config := &common.ClientConfig{URL: "tcp://127.0.0.1:7070", TimeoutSecond: 5}

	require.NoError(t, writeResultsToCSV(path, sampleResults(), config))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Test", rows[0][0])

	byTest := map[string][]string{}
	for _, row := range rows[1:] {
		byTest[row[0]] = row
	}
	assert.Equal(t, "250000", byTest["request"][1])
	assert.Equal(t, "false", byTest["request"][4])
	assert.Equal(t, "true", byTest["burst"][4])
	assert.Equal(t, "tcp://127.0.0.1:7070", byTest["request"][5])
}

func TestShouldSkip(t *testing.T) {
	perfSkip = []string{"burst", ""}
	t.Cleanup(func() { perfSkip = nil })

	assert.True(t, shouldSkip("burst"))
	assert.False(t, shouldSkip("request"))
}
