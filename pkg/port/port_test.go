package port

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectorSequence(t *testing.T) {
	var d Detector

	readings := []Reading{Active, Active, Inactive, Inactive, Active}
	want := []Edge{ActiveEdge, NoEdge, InactiveEdge, NoEdge, ActiveEdge}

	for i, r := range readings {
		assert.Equal(t, want[i], d.Observe(r), "reading #%d", i)
	}
}

func TestDetectorFirstReading(t *testing.T) {
	tests := []struct {
		name    string
		reading Reading
		want    Edge
	}{
		{"pressed at start-up", Active, ActiveEdge},
		{"released at start-up", Inactive, InactiveEdge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Detector
			assert.Equal(t, tt.want, d.Observe(tt.reading))
			assert.Equal(t, NoEdge, d.Observe(tt.reading))
		})
	}
}

func TestDetectorStoresBaselineOnNoEdge(t *testing.T) {
	var d Detector
	d.Observe(Inactive)

	assert.Equal(t, NoEdge, d.Observe(Inactive))
	assert.Equal(t, ActiveEdge, d.Observe(Active))
	assert.Equal(t, InactiveEdge, d.Observe(Inactive))
}

func TestStrings(t *testing.T) {
	assert.Equal(t, "active", Active.String())
	assert.Equal(t, "inactive", Inactive.String())
	assert.Equal(t, "no edge", NoEdge.String())
	assert.Equal(t, "active", ActiveEdge.String())
	assert.Equal(t, "inactive", InactiveEdge.String())
}
