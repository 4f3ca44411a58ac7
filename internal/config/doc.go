// Package config provides YAML configuration loading and validation for
// the dictation service. Every section carries defaults suitable for
// local development; Validate rejects values the coordinator cannot
// operate with.
package config
