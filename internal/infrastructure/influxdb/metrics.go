package influxdb

import (
	"strconv"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/ishandutta2007/taskt/internal/automation"
)

// MeasurementCommand is the measurement holding one point per executed command.
const MeasurementCommand = "command_execution"

// RecordCommand writes one command execution point. It satisfies
// automation.MetricsRecorder and never blocks.
//
//	command_execution,kind=delay,succeeded=true run_id="…",index=3i,duration_ms=250.4
func (c *Client) RecordCommand(m automation.CommandMetric) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(commandPoint(m))
}

// commandPoint keeps low-cardinality values as tags. The run id is a field
// so it does not create a series per run.
func commandPoint(m automation.CommandMetric) *write.Point {
	return write.NewPoint(
		MeasurementCommand,
		map[string]string{
			"kind":      m.Kind,
			"succeeded": strconv.FormatBool(m.Succeeded),
		},
		map[string]any{
			"run_id":      m.RunID,
			"index":       m.Index,
			"duration_ms": float64(m.Duration.Microseconds()) / 1000,
		},
		m.Time,
	)
}
