// Package recovery reconciles persisted non-terminal clusters and workers
// against reality once, at gateway startup, before the registrar begins
// accepting requests. A RUNNING cluster that still answers a health check
// is handed back to the lifecycle engine for continued supervision;
// anything else — mid-transition, unconfirmed, or failing its check — is
// run through the same teardown path a live failure would take.
package recovery
