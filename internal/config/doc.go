// Package config defines the YAML settings for the alarm-hub process and
// provides helpers to load, validate and save them. Selected fields can be
// overridden through ALARMHUB_* environment variables, which is how secrets
// reach the process in deployments.
package config
