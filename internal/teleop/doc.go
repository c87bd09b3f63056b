// Package teleop drives the robot manually by streaming velocity commands
// on /cmd_vel at a fixed rate while manual mode is enabled.
package teleop
