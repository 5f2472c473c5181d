package metrics

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRequest(t *testing.T) {
	m := New()
	m.ObserveRequest("GET", 200, 15*time.Millisecond)
	m.ObserveRequest("GET", 200, 20*time.Millisecond)
	m.ObserveRequest("POST", 0, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("POST", "error")))
}

func TestTransferCounters(t *testing.T) {
	m := New()
	m.AddTransferBytes(Upload, 1024)
	m.AddTransferBytes(Upload, 0)
	m.CountFile(Upload, ResultSkipped)

	assert.Equal(t, 1024.0, testutil.ToFloat64(m.transferBytes.WithLabelValues(Upload)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transferFiles.WithLabelValues(Upload, ResultSkipped)))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("GET", 200, time.Millisecond)
	m.AddTransferBytes(Download, 10)
	m.CountFile(Download, ResultCopied)
}

func TestDump(t *testing.T) {
	m := New()
	m.CountFile(Download, ResultResumed)

	var buf bytes.Buffer
	require.NoError(t, m.Write(&buf))
	assert.Contains(t, buf.String(), `apolo_transfer_files_total{direction="download",result="resumed"} 1`)

	path := filepath.Join(t.TempDir(), "metrics.prom")
	require.NoError(t, m.Dump(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# TYPE apolo_transfer_files_total counter")
}
