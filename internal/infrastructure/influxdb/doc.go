// Package influxdb records switch transitions as InfluxDB time series.
//
// Every committed state change becomes one point in the switch_transition
// measurement, tagged by switch_id and action. Writes are non-blocking
// and batched per the batch_size and flush_interval settings; async
// write failures are reported through SetOnError.
//
// Usage:
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteSwitchTransition(influxdb.Transition{
//	    SwitchID: "doorbell", From: "off", To: "on", Action: "on", At: time.Now(),
//	})
package influxdb
