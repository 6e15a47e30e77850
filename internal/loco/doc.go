// Package loco provides the locomotive entity and the Loco Registry for
// TrainLink.
//
// A Loco is one controllable unit on the layout: a fixed name and DCC address
// plus live speed, direction and 29 function flags. The Registry is the
// in-memory catalogue of locos, indexed by address and by name, that every
// transport (REST, WebSocket throttles, MQTT) resolves identifiers against.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────────┐
//	│                          Loco Registry                           │
//	│                                                                  │
//	│  ┌──────────────────┐   ┌──────────────────┐   ┌──────────────┐  │
//	│  │     Registry     │   │       Loco       │   │    Record    │  │
//	│  │  (registry.go)   │──▶│    (loco.go)     │◀──│  (record.go) │  │
//	│  │                  │   │                  │   │              │  │
//	│  │ • address index  │   │ • fixed identity │   │ • wire shape │  │
//	│  │ • name index     │   │ • fail-soft      │   │ • re-validate│  │
//	│  │ • one RWMutex    │   │   mutators       │   │   on decode  │  │
//	│  └──────────────────┘   └──────────────────┘   └──────────────┘  │
//	│           │                                           │          │
//	└───────────│───────────────────────────────────────────│──────────┘
//	            ▼                                           ▼
//	┌──────────────────────┐                  ┌──────────────────────┐
//	│  Observers           │                  │  SQLiteRepository    │
//	│  (throttle hub,      │                  │  (locos table)       │
//	│   metrics, telemetry)│                  └──────────────────────┘
//	└──────────────────────┘
//
// # Range handling
//
// Entity fields never reject input. An out-of-range address at construction
// becomes DefaultAddress, an out-of-range speed write is dropped, and an
// out-of-range function index reads false and ignores writes. The only
// explicit failure is ErrNotFound from Registry.Get.
//
// # Index consistency
//
// For every name in the name index, the address index holds a loco at the
// mapped address carrying that name. Add evicts any stored loco that shares
// the incoming name or address, so a collision never leaves an entry that
// cannot be reached by name. Unnamed locos are kept out of the name index and
// resolve by address only.
//
// # Usage
//
//	registry := loco.NewRegistry()
//	registry.SetLogger(log)
//
//	registry.Add(loco.New("Class 66", 66))
//
//	l, err := registry.Get(loco.ByName("Class 66"))
//	if err != nil {
//	    return err
//	}
//	l.SetSpeed(40)
//	l.SetDirection(loco.DirectionReverse)
//
//	// Rename and re-address; function flags are reset on the replacement.
//	name, addr := "Shed", 67
//	registry.Update(loco.ByAddress(66), &name, &addr)
//
// # Thread Safety
//
// Loco and Registry are safe for concurrent use. The registry changes both
// indices under a single lock, so readers never observe one index updated
// without the other.
package loco
