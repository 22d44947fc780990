// Package config loads the gnbctl runtime configuration. Values merge in
// three layers: built-in baseline, optional YAML file, then GNBCTL_*
// environment overrides. The merged result is validated before anything
// else starts.
package config
