// Package config provides configuration management for the backup tool.
package config

// Default configuration values.
const (
	// DefaultFormat is the container format for new backups.
	DefaultFormat = "simple"

	// DefaultCompression is the zip compression method.
	DefaultCompression = "deflate"

	// DefaultFullRetention is the number of full generations kept per game.
	DefaultFullRetention = 1

	// DefaultDifferentialRetention is the number of differential
	// generations kept per game.
	DefaultDifferentialRetention = 4

	// DefaultSortKey orders reported games by name.
	DefaultSortKey = "name"

	// MaxAutoWorkers caps the automatic worker count.
	MaxAutoWorkers = 8
)
