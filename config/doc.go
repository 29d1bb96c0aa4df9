// Package config loads the data provider configuration: a YAML document,
// an optional .env file and DATAPROVIDER_* environment overrides.
package config
