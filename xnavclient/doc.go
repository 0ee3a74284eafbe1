// Package xnavclient is the robot-side client for the XNav vision
// coprocessor. It projects the flat topic namespace the coprocessor
// publishes (per-tag AprilTag detections, field pose, offset-point
// geometry, telemetry) into coherent result records behind a stable
// query API, and publishes the turret and match-mode control inputs
// back.
//
// # Usage
//
//	client, err := xnavclient.New()
//	if err != nil {
//		return err
//	}
//	if err := client.Init(ctx, "nats://10.12.34.11:4222"); err != nil {
//		return err
//	}
//	defer client.Close(ctx)
//
//	if client.HasTarget() {
//		primary := client.PrimaryTarget()
//		aim(primary.Tx, primary.Distance)
//	}
//	client.SetTurretAngle(45.0)
//
// # Reading Model
//
// Every query is a read of in-memory subscriber caches. Topics that
// have never received a publication read as their declared defaults,
// so queries never fail and never block; a robot loop stays
// deterministic through coprocessor restarts and network loss. Scalar
// reads are independent: a record assembled from several topics may
// interleave two adjacent publications. Consumers that need a
// frame-consistent snapshot should register OnNewTargets, whose
// invocation is the only consistency boundary the library defines.
//
// Per-tag subscriber sets are created the first time an id is queried
// or appears in a snapshot, then kept for the client's lifetime. A
// tag's membership in the current frame is decided by the tagIds
// topic, not by the cache: Target returns false for a tag that slipped
// out of view even though its last values are still cached.
//
// # Transport
//
// By default Init stands up the NATS JetStream binding from the
// natsfabric package and starts it under the "XNavLib" identity.
// Tests and embedding hosts can inject any fabric.Conn with WithConn;
// the in-memory binding in fabric/fabrictest runs the full client
// without a server.
package xnavclient
