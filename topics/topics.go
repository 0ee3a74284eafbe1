// Package topics defines the namespace shared between the XNav vision
// coprocessor and robot-side clients: the path, wire type, and default
// of every exchanged value, organized into the root scope and the
// offsetPoint/, input/, and per-tag targets/<id>/ subscopes.
//
// The catalogue is the single source of truth for the schema. Both the
// client library and the tools in cmd/ derive their bindings from it.
package topics

import (
	"fmt"

	"github.com/realaaravdas/Limelight3-XNav/fabric"
)

// DefaultTable is the root table used unless a client is configured
// with another name.
const DefaultTable = "XNav"

// Client identities registered on the fabric.
const (
	ClientIdentity      = "XNavLib" // robot-side library
	CoprocessorIdentity = "XNav"    // vision coprocessor
)

// Values carried by the status topic. StatusUnknown is also the
// client-side default before any publication arrives.
const (
	StatusRunning  = "running"
	StatusStarting = "starting"
	StatusError    = "error"
	StatusUnknown  = "unknown"
)

// Subscope names under the root table.
const (
	OffsetScope = "offsetPoint"
	InputScope  = "input"
	TargetScope = "targets"
)

// RobotPoseLen is the minimum element count for a valid robotPose
// publication: [x, y, z, roll, pitch, yaw_deg].
const RobotPoseLen = 6

// NoTagID is the sentinel for "no tag".
const NoTagID = -1

// Entry binds one topic key to its wire type and declared default.
type Entry[T fabric.Value] struct {
	Key     string
	Default T
}

// Subscribe opens the typed subscriber for this entry on t.
func (e Entry[T]) Subscribe(t fabric.Table) (*fabric.Subscriber[T], error) {
	return fabric.NewSubscriber(t, e.Key, e.Default)
}

// Publish opens the typed publisher for this entry on t.
func (e Entry[T]) Publish(t fabric.Table) (*fabric.Publisher[T], error) {
	return fabric.NewPublisher[T](t, e.Key)
}

// Root scope. Integer fields travel as int64.
var (
	HasTarget    = Entry[bool]{Key: "hasTarget"}
	NumTargets   = Entry[int64]{Key: "numTargets"}
	PrimaryTagID = Entry[int64]{Key: "primaryTagId", Default: NoTagID}
	Status       = Entry[string]{Key: "status", Default: StatusUnknown}
	FPS          = Entry[float64]{Key: "fps"}
	LatencyMs    = Entry[float64]{Key: "latencyMs"}
	RobotPose    = Entry[[]float64]{Key: "robotPose"}
	TagIDs       = Entry[[]int64]{Key: "tagIds"}
)

// offsetPoint/ scope: the coprocessor-configured 3D offset relative to
// a chosen tag.
var (
	OffsetValid          = Entry[bool]{Key: "valid"}
	OffsetTagID          = Entry[int64]{Key: "tag_id", Default: NoTagID}
	OffsetX              = Entry[float64]{Key: "x"}
	OffsetY              = Entry[float64]{Key: "y"}
	OffsetZ              = Entry[float64]{Key: "z"}
	OffsetDirectDistance = Entry[float64]{Key: "directDistance"}
	OffsetTx             = Entry[float64]{Key: "tx"}
	OffsetTy             = Entry[float64]{Key: "ty"}
)

// input/ scope: control values published by the robot side and read
// back by the coprocessor.
var (
	TurretAngle   = Entry[float64]{Key: "turretAngle"}
	TurretEnabled = Entry[bool]{Key: "turretEnabled"}
	MatchMode     = Entry[bool]{Key: "matchMode"}
)

// targets/<id>/ scope: per-detection geometry. Angles in degrees,
// camera-frame position in meters (x right, y down, z forward).
var (
	TargetTx       = Entry[float64]{Key: "tx"}
	TargetTy       = Entry[float64]{Key: "ty"}
	TargetX        = Entry[float64]{Key: "x"}
	TargetY        = Entry[float64]{Key: "y"}
	TargetZ        = Entry[float64]{Key: "z"}
	TargetDistance = Entry[float64]{Key: "distance"}
	TargetYaw      = Entry[float64]{Key: "yaw"}
	TargetPitch    = Entry[float64]{Key: "pitch"}
	TargetRoll     = Entry[float64]{Key: "roll"}
)

// TagScope returns the subtable path for one tag id, e.g. "targets/7".
func TagScope(id int64) string {
	return fmt.Sprintf("%s/%d", TargetScope, id)
}
