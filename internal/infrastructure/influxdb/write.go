package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementWeight    = "robot_weight"
	measurementPose      = "robot_pose"
	measurementNavStatus = "nav_status"
	measurementChatter   = "chatter"
)

func (c *Client) tags() map[string]string {
	return map[string]string{"robot_id": c.robotID}
}

func (c *Client) writePoint(p *write.Point) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(p)
}

// RecordWeight writes a payload weight reading (kg).
func (c *Client) RecordWeight(kg float64, at time.Time) {
	c.writePoint(weightPoint(c.tags(), kg, at))
}

// RecordPose writes an AMCL pose estimate. Heading is in degrees.
func (c *Client) RecordPose(x, y, heading float64, at time.Time) {
	c.writePoint(posePoint(c.tags(), x, y, heading, at))
}

// RecordNavStatus writes a navigation status change.
func (c *Client) RecordNavStatus(status string, at time.Time) {
	c.writePoint(navStatusPoint(c.tags(), status, at))
}

// RecordChatterLength writes the length of one chatter message.
func (c *Client) RecordChatterLength(length int, at time.Time) {
	c.writePoint(chatterPoint(c.tags(), length, at))
}

func weightPoint(tags map[string]string, kg float64, at time.Time) *write.Point {
	return write.NewPoint(measurementWeight, tags, map[string]interface{}{"kg": kg}, at)
}

func posePoint(tags map[string]string, x, y, heading float64, at time.Time) *write.Point {
	return write.NewPoint(measurementPose, tags, map[string]interface{}{
		"x":           x,
		"y":           y,
		"heading_deg": heading,
	}, at)
}

func navStatusPoint(tags map[string]string, status string, at time.Time) *write.Point {
	return write.NewPoint(measurementNavStatus, tags, map[string]interface{}{"status": status}, at)
}

func chatterPoint(tags map[string]string, length int, at time.Time) *write.Point {
	return write.NewPoint(measurementChatter, tags, map[string]interface{}{"length": length}, at)
}
