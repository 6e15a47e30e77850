// Package influxdb records loco telemetry in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched non-blocking writes and health monitoring.
//
// Two measurements are written:
//   - loco_state: speed, direction and active function count per loco,
//     tagged by address and name
//   - loco_events: registry changes (added, updated, deleted)
//
// Recorder implements loco.Observer so it can be attached directly to the
// registry:
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without telemetry
//	}
//	defer client.Close()
//
//	registry.AddObserver(influxdb.NewRecorder(client))
//
// Write errors are delivered asynchronously through SetOnError. Connection
// and health check errors are returned directly.
package influxdb
