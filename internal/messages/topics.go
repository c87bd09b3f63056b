package messages

import "github.com/nerrad567/trailobot-core/internal/session"

// Inbound telemetry.
var (
	ChatterTopic   = session.Topic[String]{Name: "/chatter", Schema: SchemaString}
	WeightTopic    = session.Topic[Float32]{Name: "/weight", Schema: SchemaFloat32}
	AMCLPoseTopic  = session.Topic[PoseWithCovarianceStamped]{Name: "/amcl_pose", Schema: SchemaAMCLPose}
	NavStatusTopic = session.Topic[String]{Name: "/nav2_status", Schema: SchemaString}
)

// Outbound commands. Greetings go out on ChatterTopic.
var (
	GoalTopic      = session.Topic[String]{Name: "/web_goal", Schema: SchemaString}
	NavCancelTopic = session.Topic[Empty]{Name: "/nav2_cancel", Schema: SchemaEmpty}
	CmdVelTopic    = session.Topic[Twist]{Name: "/cmd_vel", Schema: SchemaTwist}
)
