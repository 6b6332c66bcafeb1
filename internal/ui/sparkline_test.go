package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderSparkline_Empty(t *testing.T) {
	tests := []struct {
		name  string
		data  []float64
		width int
	}{
		{"nil data", nil, 10},
		{"empty data", []float64{}, 10},
		{"zero width", []float64{50}, 0},
		{"negative width", []float64{50}, -5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, RenderSparkline(tt.data, tt.width))
		})
	}
}

func TestRenderSparkline_FixedScale(t *testing.T) {
	assert.Equal(t, "▁▄█", RenderSparkline([]float64{0, 50, 100}, 10))
	assert.Equal(t, "▁▁▁", RenderSparkline([]float64{5, 5, 5}, 10), "flat low values stay low")
	assert.Equal(t, "██", RenderSparkline([]float64{100, 100}, 10))
}

func TestRenderSparkline_ClampsOutOfRange(t *testing.T) {
	assert.Equal(t, "▁█", RenderSparkline([]float64{-20, 250}, 10))
}

func TestRenderSparkline_KeepsMostRecent(t *testing.T) {
	data := []float64{100, 100, 100, 0, 0}
	assert.Equal(t, "▁▁", RenderSparkline(data, 2))
}

func TestRenderMetricLine(t *testing.T) {
	assert.Equal(t, "CPU  ▁█ 100%", RenderMetricLine("CPU", []float64{0, 100}, 10))
	assert.Equal(t, "GPU  n/a", RenderMetricLine("GPU", nil, 10))
}
