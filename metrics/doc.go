// Package metrics defines the Prometheus collectors of a data provider.
package metrics
