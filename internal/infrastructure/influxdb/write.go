package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// sampleMeasurement holds one point per monitor sample.
const sampleMeasurement = "element_samples"

// WriteElementSample queues one monitor reading, tagged by device, element
// kind and element id and stamped with the time it was taken.
//
//	client.WriteElementSample("arduino1", "sensor", "TEMPINT", 21.5, time.Now())
func (c *Client) WriteElementSample(device, kind, element string, value float64, at time.Time) {
	c.write(write.NewPoint(sampleMeasurement,
		map[string]string{"device": device, "kind": kind, "element": element},
		map[string]any{"value": value},
		at,
	))
}

// WritePoint queues an arbitrary point stamped now.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.write(write.NewPoint(measurement, tags, fields, time.Now()))
}

func (c *Client) write(p *write.Point) {
	if c.IsConnected() {
		c.writes.WritePoint(p)
	}
}
