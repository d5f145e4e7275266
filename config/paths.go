package config

// File paths used throughout the gitlabnss daemon
const (
	// Socket path the NSS shim connects to
	SocketPath = "/var/run/gitlabnss.sock"

	// Configuration file path
	ConfigPath = "/etc/gitlabnss/config.yaml"

	// Log file path
	LogPath = "/var/log/gitlabnss.log"
)
