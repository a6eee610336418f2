// Package influxdb provides InfluxDB connectivity for Gray Logic Hub.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, non-blocking batched writes and health checks.
//
// The hub stores monitor samples in SQLite; when enabled, each sample is
// also mirrored here as an "element_samples" point for dashboards.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteElementSample("arduino1", "sensor", "TEMPINT", 21.5, time.Now())
//
// # Error Handling
//
// Write errors are delivered asynchronously through SetOnError.
// Connection and health check errors are returned directly.
package influxdb
