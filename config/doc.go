// Package config loads runtime settings from the environment and sets up
// the process logger. All knobs carry defaults that work out of the box;
// Load never requires any variable to be set except the provider API key
// when a real inference backend is in use.
package config
