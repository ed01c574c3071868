// Package db writes assessed readings to InfluxDB so the dashboard can chart
// history without going back to the sensor services.
package db

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/envdash/uda/poller"
)

const measurementName = "reading"

// newInfluxDBPoints returns one point per assessed metric. Each point carries
// the raw value and its percentage, tagged with the band it fell in.
func newInfluxDBPoints(u poller.Update) []*write.Point {
	m := u.Measurement
	points := make([]*write.Point, 0, len(u.Results))
	for _, r := range u.Results {
		p := influxdb2.NewPointWithMeasurement(measurementName).
			AddTag("device", m.DeviceID).
			AddTag("domain", string(m.Domain)).
			AddTag("band", r.Label()).
			AddField(string(r.Metric), r.Value).
			AddField(string(r.Metric)+"_pct", r.Percentage).
			SetTime(m.Timestamp)

		points = append(points, p)
	}

	return points
}

type InfluxDB struct {
	client influxdb2.Client
	org    string
	bucket string
}

func NewInfluxDB(serverURL, token, org, bucket string) *InfluxDB {
	return &InfluxDB{
		client: influxdb2.NewClient(serverURL, token),
		org:    org,
		bucket: bucket,
	}
}

// Save implements poller.Sink.
func (db *InfluxDB) Save(ctx context.Context, u poller.Update) error {
	points := newInfluxDBPoints(u)
	if len(points) == 0 {
		return nil
	}

	writeAPI := db.client.WriteAPIBlocking(db.org, db.bucket)
	if err := writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("db: failed to write %d points for %s: %w", len(points), u.Measurement.DeviceID, err)
	}

	return nil
}

func (db *InfluxDB) Close() {
	db.client.Close()
}
