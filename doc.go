// Package xnav is the root of the Limelight3-XNav module: a Go client
// library and tooling for the XNav vision coprocessor.
//
// The XNav coprocessor detects AprilTags, estimates the robot's
// field-centric pose, and solves a configured offset point, publishing
// everything as flat typed topics on a key-value pub/sub fabric. This
// module gives the robot program a stable query API over that
// namespace and a write path for the few control inputs the
// coprocessor consumes.
//
// # Layout
//
// The module is layered from the transport up:
//
//   - fabric: the abstract topic-fabric contract (connections, tables,
//     byte subscriptions/publications) plus the generic typed layer
//     that adds encoding and default substitution. fabric/fabrictest
//     is the in-memory binding for unit tests.
//   - natsfabric: the production binding over NATS JetStream KV. One
//     bucket per root table, one watcher feeding a latest-value cache,
//     one writer draining a bounded queue.
//   - topics: the topic catalogue. Every exchanged path, wire type,
//     and default lives here; the rest of the module derives from it.
//   - xnavclient: the robot-side facade. Subscriber and publisher
//     registries over the catalogue, snapshot assembly into result
//     records, the OnNewTargets hook, and connection liveness.
//   - cmd/xnav-sim, cmd/xnav-watch, cmd/xnav-dash: a coprocessor
//     simulator, a terminal watcher, and a WebSocket dashboard used
//     for bench bring-up without robot hardware.
//
// Supporting packages: errors (classified errors), pkg/retry
// (backoff), pkg/buffer (bounded ring).
//
// Robot programs normally import only xnavclient.
package xnav
