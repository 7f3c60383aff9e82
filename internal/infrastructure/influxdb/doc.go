// Package influxdb records state lookup telemetry in InfluxDB.
//
// The Client implements state.LookupObserver: attach it to a repository and
// every FindOne call becomes a state_lookup point tagged with the state type
// and the outcome (found, missing or failed), carrying the lookup duration in
// milliseconds.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	repo.SetObserver(client)
//
// Writes are non-blocking and batched according to batch_size and
// flush_interval. Asynchronous write failures are delivered to the callback
// set with SetOnError.
package influxdb
