package xnavclient

import "github.com/realaaravdas/Limelight3-XNav/topics"

// The assembler projects independent scalar feeds into result records.
// Every read takes the current cached value of its subscriber; no
// atomicity holds across fields. The only consistency boundary the
// library defines is the new-targets callback.

// assembleTag builds the record for one tag id. Negative ids yield the
// default record; unknown ids read their declared defaults (zeros).
func (r *registry) assembleTag(id int64) TagResult {
	if id < 0 {
		return defaultTagResult()
	}
	ts, err := r.tagSubs(id)
	if err != nil {
		// The record degrades to zeros; the log line is the only trace
		// of the failed bind.
		r.log.Warn("tag subscriber bind failed", "id", id, "error", err)
		return TagResult{ID: int(id)}
	}
	return TagResult{
		ID:       int(id),
		Tx:       ts.tx.Get(),
		Ty:       ts.ty.Get(),
		X:        ts.x.Get(),
		Y:        ts.y.Get(),
		Z:        ts.z.Get(),
		Distance: ts.distance.Get(),
		Yaw:      ts.yaw.Get(),
		Pitch:    ts.pitch.Get(),
		Roll:     ts.roll.Get(),
	}
}

// assembleRobotPose reads the pose sequence. Publications shorter than
// six elements leave the record zeroed and invalid; elements past
// index five are ignored.
func (r *registry) assembleRobotPose() RobotPose {
	seq := r.root.robotPose.Get()
	if len(seq) < topics.RobotPoseLen {
		return RobotPose{}
	}
	return RobotPose{
		X:      seq[0],
		Y:      seq[1],
		Z:      seq[2],
		Roll:   seq[3],
		Pitch:  seq[4],
		YawDeg: seq[5],
		Valid:  true,
	}
}

// assembleOffsetPoint copies the offsetPoint/ feed as published. Valid
// comes from the feed; numeric fields are not zeroed when invalid.
func (r *registry) assembleOffsetPoint() OffsetPoint {
	return OffsetPoint{
		TagID:          int(r.offset.tagID.Get()),
		X:              r.offset.x.Get(),
		Y:              r.offset.y.Get(),
		Z:              r.offset.z.Get(),
		DirectDistance: r.offset.directDistance.Get(),
		Tx:             r.offset.tx.Get(),
		Ty:             r.offset.ty.Get(),
		Valid:          r.offset.valid.Get(),
	}
}

func (r *registry) tagIDList() []int64 {
	return r.root.tagIDs.Get()
}

// hasTag is the membership test behind Target lookups: the current
// tagIds list decides, not the per-tag cache, so a tag visible last
// frame but absent now reads as missing.
func (r *registry) hasTag(id int64) bool {
	for _, cur := range r.tagIDList() {
		if cur == id {
			return true
		}
	}
	return false
}

// allTargets assembles one record per current tag id, preserving
// publication order.
func (r *registry) allTargets() []TagResult {
	ids := r.tagIDList()
	out := make([]TagResult, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.assembleTag(id))
	}
	return out
}
