// Package gateway wires a pkg/config.Config into a running gateway: the
// persistent store, the selected clustermanager.Backend, the lifecycle
// engine, the Connection Registrar's HTTP server, and the startup recovery
// pass, then blocks until told to shut down. cmd/gatewayd is a thin cobra
// CLI over this package.
package gateway
