// Package commands publishes operator commands to the robot: the greeting
// on /chatter, destination goals on /web_goal and navigation cancels on
// /nav2_cancel.
//
// Goals are addressed on the two-row parking grid (rows A and B, columns
// 1 to 50). Every goal and cancel is recorded in the goal_events table
// together with whether it actually reached the bridge.
package commands
