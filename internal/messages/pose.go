package messages

import "math"

// Pose2D is a planar robot pose. Heading is in degrees.
type Pose2D struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Heading float64 `json:"heading"`
}

// Heading returns the yaw of q in degrees, in (-180, 180].
func Heading(q Quaternion) float64 {
	yaw := math.Atan2(
		2*(q.W*q.Z+q.X*q.Y),
		1-2*(q.Y*q.Y+q.Z*q.Z),
	)
	return yaw * 180 / math.Pi
}

// DecodePose reduces an AMCL estimate to x, y and heading.
func DecodePose(msg PoseWithCovarianceStamped) Pose2D {
	p := msg.Pose.Pose
	return Pose2D{
		X:       p.Position.X,
		Y:       p.Position.Y,
		Heading: Heading(p.Orientation),
	}
}

// Rounded returns p at display precision: centimetres and tenths of a
// degree.
func (p Pose2D) Rounded() Pose2D {
	return Pose2D{
		X:       round(p.X, 2),
		Y:       round(p.Y, 2),
		Heading: round(p.Heading, 1),
	}
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
