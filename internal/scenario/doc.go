// Package scenario loads recorded action sequences from YAML, TOML or
// JSON files for replay through the playback controller.
package scenario
