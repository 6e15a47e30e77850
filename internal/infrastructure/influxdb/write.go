package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/trainlink-org/shared-lib/internal/loco"
)

// Measurement names written by TrainLink.
const (
	MeasurementLocoState  = "loco_state"
	MeasurementLocoEvents = "loco_events"
)

// WriteLocoState records the current throttle state of a loco.
//
// The write is non-blocking; points are batched and sent asynchronously.
func (c *Client) WriteLocoState(l *loco.Loco) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(locoStatePoint(l, time.Now()))
}

// WriteLocoEvent records a registry change (added, updated, deleted) for
// the loco at address.
func (c *Client) WriteLocoEvent(event string, address int, name string) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(locoEventPoint(event, address, name, time.Now()))
}

// WritePoint writes a custom point with full control over tags and fields.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a custom point with a specific timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}

func locoStatePoint(l *loco.Loco, at time.Time) *write.Point {
	functions := l.Functions()
	active := 0
	for _, on := range functions {
		if on {
			active++
		}
	}

	return write.NewPoint(
		MeasurementLocoState,
		map[string]string{
			"address": strconv.Itoa(l.Address()),
			"name":    l.Name(),
		},
		map[string]interface{}{
			"speed":            l.Speed(),
			"direction":        string(l.Direction()),
			"functions_active": active,
		},
		at,
	)
}

func locoEventPoint(event string, address int, name string, at time.Time) *write.Point {
	return write.NewPoint(
		MeasurementLocoEvents,
		map[string]string{
			"event":   event,
			"address": strconv.Itoa(address),
		},
		map[string]interface{}{
			"name": name,
		},
		at,
	)
}
