package profiler

import (
	"testing"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfiler_Summaries(t *testing.T) {
	p := New(0)
	for i := 1; i <= 100; i++ {
		p.Record(StageDetect, time.Duration(i)*time.Millisecond)
	}
	p.Record(StageRead, time.Millisecond)

	summaries := p.Summaries()
	require.Len(t, summaries, 2)
	assert.Equal(t, StageDetect, summaries[0].Name)
	assert.Equal(t, StageRead, summaries[1].Name)

	detect := summaries[0]
	assert.Equal(t, int64(100), detect.Count)
	assert.Equal(t, time.Millisecond, detect.Min)
	assert.Equal(t, 100*time.Millisecond, detect.Max)
	assert.Equal(t, 5050*time.Millisecond, detect.Total)
	assert.Equal(t, 50500*time.Microsecond, detect.Mean)
	assert.Equal(t, 50*time.Millisecond, detect.P50)
	assert.Equal(t, 95*time.Millisecond, detect.P95)
}

func TestProfiler_SampleWindow(t *testing.T) {
	p := New(3)
	for i := 1; i <= 5; i++ {
		p.Record("op", time.Duration(i)*time.Second)
	}
	s := p.Summaries()[0]
	assert.Equal(t, int64(5), s.Count, "count covers every sample")
	assert.Equal(t, time.Second, s.Min)
	assert.Equal(t, 4*time.Second, s.Mean, "mean covers the window")
}

func TestProfiler_StartOperation(t *testing.T) {
	p := New(0)
	done := p.StartOperation(StageRender)
	time.Sleep(2 * time.Millisecond)
	done()

	s := p.Summaries()
	require.Len(t, s, 1)
	assert.GreaterOrEqual(t, s[0].Total, 2*time.Millisecond)

	p.Report(logs.NewTestingLog(t), "clip.mp4")

	p.Reset()
	assert.Empty(t, p.Summaries())
}

func TestProfiler_Nil(t *testing.T) {
	var p *Profiler
	p.StartOperation("op")()
	p.Record("op", time.Second)
	p.Report(logs.NewTestingLog(t), "nil")
	assert.Nil(t, p.Summaries())
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KB", formatBytes(1536))
	assert.Equal(t, "2.0 MB", formatBytes(2*1024*1024))
}
