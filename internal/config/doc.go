// Package config loads and validates relay configuration from YAML.
//
// Values of the form ${VAR} are expanded from the environment before
// parsing, so secrets like the database password can stay out of the file.
package config
