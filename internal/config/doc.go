// Package config loads wavectl configuration from CUE or YAML.
//
// CUE files are unified with an embedded schema (schema.cue) that closes
// the structure and constrains values, so typos and out-of-range values
// fail with a source position. YAML files are decoded strictly (unknown
// fields are errors) and then pass the same Validate checks.
//
// Durations are written as Go duration strings ("10s", "1h").
package config
