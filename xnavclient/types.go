package xnavclient

import "github.com/realaaravdas/Limelight3-XNav/topics"

// TagResult is one AprilTag detection. Angles are in degrees, camera
// frame position in meters (x right, y down, z forward). Distance is
// the Euclidean norm of the camera-frame vector. ID -1 means "no tag";
// then every numeric field is zero.
type TagResult struct {
	ID       int     `json:"id"`
	Tx       float64 `json:"tx"`
	Ty       float64 `json:"ty"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Z        float64 `json:"z"`
	Distance float64 `json:"distance"`
	Yaw      float64 `json:"yaw"`
	Pitch    float64 `json:"pitch"`
	Roll     float64 `json:"roll"`
}

func defaultTagResult() TagResult {
	return TagResult{ID: topics.NoTagID}
}

// RobotPose is the field-centric robot pose. Valid is true only when
// the most recent pose publication carried at least six elements
// [x, y, z, roll, pitch, yawDeg]; otherwise all numerics are zero.
type RobotPose struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Z      float64 `json:"z"`
	Roll   float64 `json:"roll"`
	Pitch  float64 `json:"pitch"`
	YawDeg float64 `json:"yawDeg"`
	Valid  bool    `json:"valid"`
}

// OffsetPoint is the coprocessor-configured 3D offset relative to a
// chosen tag. Check Valid before using the numeric fields; they carry
// the raw published values regardless.
type OffsetPoint struct {
	TagID          int     `json:"tagId"`
	X              float64 `json:"x"`
	Y              float64 `json:"y"`
	Z              float64 `json:"z"`
	DirectDistance float64 `json:"directDistance"`
	Tx             float64 `json:"tx"`
	Ty             float64 `json:"ty"`
	Valid          bool    `json:"valid"`
}

// SystemStatus is the coprocessor telemetry snapshot. Status carries
// one of the values declared in the topics package; Connected reflects
// live transport connectivity at the moment of the query.
type SystemStatus struct {
	Status     string  `json:"status"`
	FPS        float64 `json:"fps"`
	LatencyMs  float64 `json:"latencyMs"`
	NumTargets int     `json:"numTargets"`
	Connected  bool    `json:"connected"`
}
