/*
Package events provides an in-memory pub/sub broker for cluster and worker
lifecycle notifications.

Broker decouples the lifecycle engine (pkg/lifecycle) from anything that
wants to observe state changes without being in the critical path of a
start or stop operation — logging sinks, an admin dashboard, future
webhook delivery. Publish is non-blocking; a slow or absent subscriber
drops events rather than stalling the engine.

# Event Types

Cluster and worker events mirror the Status transitions defined in
pkg/types: *.starting, *.running, *.stopping, *.stopped, *.failed. The
recovery.started and recovery.mismatch types are also defined, but no
component in this module publishes them.

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	broker.Publish(&events.Event{
		Type:        events.EventClusterRunning,
		ClusterName: cluster.Name,
		Message:     "scheduler reachable",
	})

	for ev := range sub {
		log.Info().Str("type", string(ev.Type)).Msg(ev.Message)
	}
*/
package events
