// Package influxdb records command execution metrics in InfluxDB v2.
//
// When engine.track_execution_metrics is on and the influxdb section is
// enabled, the engine hands every executed command to Client.RecordCommand,
// which queues a command_execution point on the batched write API.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	opts.Metrics = client
//
// Writes never block a run. Batch failures arrive on the SetOnError callback.
package influxdb
