// Package config manages the local client state of the apolo CLI.
//
// The [Config] struct is persisted as YAML in ~/.apolo/config.yaml and holds
// the platform URL, the OAuth tokens obtained at login, the cluster map
// returned by the server (service endpoints, orgs, presets) and the
// currently selected cluster, org and project.
//
// Per-invocation options come from [LoadSettings], which layers defaults,
// APOLO_* environment variables and command-line flags with viper.
// Tunables such as request timeouts and the transfer chunk size come from
// [LoadTimeouts].
package config
