// Package logging provides a simple leveled logging interface for the
// media streamer.
//
// Levels, from most to least verbose: DEBUG, INFO, WARN, ERROR. The level
// is configured via the LOG_LEVEL environment variable, or forced to debug
// with DEBUG=true.
package logging
