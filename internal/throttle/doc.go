// Package throttle delivers loco state to throttle front ends.
//
// The Hub holds throttle listeners: a front end binds a throttle ID to a
// loco address and receives every later change to that loco. The hub is a
// loco.Observer, so when the registry renames or re-addresses a loco the
// listeners follow it, and when a loco is deleted they receive a disabled
// throttle.
//
// Commands (speed, direction, function) from any transport go through
// Hub.Apply, which resolves the loco, applies the change with the loco's
// fail-soft mutators and notifies listeners and sinks.
//
// Bridge is the MQTT transport:
//
//	{prefix}/loco/{identifier}/command  ← {"speed":40,"direction":"forward"}
//	{prefix}/loco/{address}/state       → retained Throttle JSON
//
// Usage:
//
//	hub := throttle.NewHub(registry)
//	registry.AddObserver(hub)
//	hub.MarkLoaded()
//
//	session := hub.NewSession()
//	defer session.Close()
//	session.Listen(loco.ThrottleOf(l), 1, func(t loco.Throttle) { ... })
package throttle
