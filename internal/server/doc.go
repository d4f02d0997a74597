// Package server implements the HTTP monitoring endpoints: health, pipeline
// status, stored recording listing and Prometheus metrics.
package server
