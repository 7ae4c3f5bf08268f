// Package config loads and validates the gateway's YAML configuration
// file, overlaying select fields from the process environment the way the
// Python original reads DASK_GATEWAY_ENCRYPT_KEYS. It is read once at
// startup by cmd/gatewayd and handed to pkg/gateway.
package config
