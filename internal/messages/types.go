package messages

// ROS schema names.
const (
	SchemaString   = "std_msgs/String"
	SchemaFloat32  = "std_msgs/Float32"
	SchemaEmpty    = "std_msgs/Empty"
	SchemaTwist    = "geometry_msgs/Twist"
	SchemaAMCLPose = "geometry_msgs/PoseWithCovarianceStamped"
)

// String is std_msgs/String.
type String struct {
	Data string `json:"data"`
}

// Float32 is std_msgs/Float32.
type Float32 struct {
	Data float32 `json:"data"`
}

// Empty is std_msgs/Empty.
type Empty struct{}

// Vector3 is geometry_msgs/Vector3.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Twist is geometry_msgs/Twist.
type Twist struct {
	Linear  Vector3 `json:"linear"`
	Angular Vector3 `json:"angular"`
}

// NewTwist builds a planar velocity command: forward speed in m/s and yaw
// rate in rad/s.
func NewTwist(linearX, angularZ float64) Twist {
	return Twist{
		Linear:  Vector3{X: linearX},
		Angular: Vector3{Z: angularZ},
	}
}

// Point is geometry_msgs/Point.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Quaternion is geometry_msgs/Quaternion.
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Pose is geometry_msgs/Pose.
type Pose struct {
	Position    Point      `json:"position"`
	Orientation Quaternion `json:"orientation"`
}

// PoseWithCovariance is geometry_msgs/PoseWithCovariance.
type PoseWithCovariance struct {
	Pose       Pose      `json:"pose"`
	Covariance []float64 `json:"covariance,omitempty"`
}

// Time is builtin_interfaces/Time.
type Time struct {
	Sec     int32  `json:"sec"`
	Nanosec uint32 `json:"nanosec"`
}

// Header is std_msgs/Header.
type Header struct {
	Stamp   Time   `json:"stamp"`
	FrameID string `json:"frame_id"`
}

// PoseWithCovarianceStamped is geometry_msgs/PoseWithCovarianceStamped.
type PoseWithCovarianceStamped struct {
	Header Header             `json:"header"`
	Pose   PoseWithCovariance `json:"pose"`
}
