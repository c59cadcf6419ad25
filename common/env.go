// Package common provides shared constants and types used across the
// stapled daemon and its control-socket clients.
package common

// Environment variable names for configuration.
const (
	// SocketPathEnv is the environment variable for a custom control
	// socket path.
	SocketPathEnv = "STAPLED_SOCKET_PATH"

	// DebugEnv is the environment variable to enable debug logging.
	DebugEnv = "STAPLED_DEBUG"
)
