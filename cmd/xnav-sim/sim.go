package main

import (
	"context"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/realaaravdas/Limelight3-XNav/fabric"
	"github.com/realaaravdas/Limelight3-XNav/topics"
)

const (
	// minForward is the closest camera-frame z at which a tag still
	// counts as detectable.
	minForward = 0.15

	// errorBurst is how many consecutive failed frames flip the
	// published status to error.
	errorBurst = 5
)

// tagPubs is the publisher bundle for one scene tag.
type tagPubs struct {
	tx, ty, x, y, z, distance, yaw, pitch, roll *fabric.Publisher[float64]
}

type simulator struct {
	scene Scene
	log   *slog.Logger
	rng   *rand.Rand

	hasTarget  *fabric.Publisher[bool]
	numTargets *fabric.Publisher[int64]
	primary    *fabric.Publisher[int64]
	status     *fabric.Publisher[string]
	fps        *fabric.Publisher[float64]
	latency    *fabric.Publisher[float64]
	robotPose  *fabric.Publisher[[]float64]
	tagIDs     *fabric.Publisher[[]int64]

	offValid  *fabric.Publisher[bool]
	offTagID  *fabric.Publisher[int64]
	offX      *fabric.Publisher[float64]
	offY      *fabric.Publisher[float64]
	offZ      *fabric.Publisher[float64]
	offDirect *fabric.Publisher[float64]
	offTx     *fabric.Publisher[float64]
	offTy     *fabric.Publisher[float64]

	tags map[int64]*tagPubs

	frames    int64
	frameErrs int
	badFrames int
	statusNow string
}

// topicBinder collects the first bind error so a bundle of binds reads
// linearly.
type topicBinder struct {
	err error
}

func bindPub[T fabric.Value](b *topicBinder, t fabric.Table, e topics.Entry[T]) *fabric.Publisher[T] {
	if b.err != nil {
		return nil
	}
	p, err := e.Publish(t)
	if err != nil {
		b.err = err
	}
	return p
}

func bindSub[T fabric.Value](b *topicBinder, t fabric.Table, e topics.Entry[T]) *fabric.Subscriber[T] {
	if b.err != nil {
		return nil
	}
	s, err := e.Subscribe(t)
	if err != nil {
		b.err = err
	}
	return s
}

// newSimulator binds publishers for every topic the scene's tags can
// produce, plus the input/ readback subscriptions.
func newSimulator(table fabric.Table, scene Scene, log *slog.Logger, seed int) (*simulator, error) {
	b := &topicBinder{}
	s := &simulator{
		scene: scene,
		log:   log,
		rng:   newRNG(seed),
		tags:  make(map[int64]*tagPubs, len(scene.Tags)),

		hasTarget:  bindPub(b, table, topics.HasTarget),
		numTargets: bindPub(b, table, topics.NumTargets),
		primary:    bindPub(b, table, topics.PrimaryTagID),
		status:     bindPub(b, table, topics.Status),
		fps:        bindPub(b, table, topics.FPS),
		latency:    bindPub(b, table, topics.LatencyMs),
		robotPose:  bindPub(b, table, topics.RobotPose),
		tagIDs:     bindPub(b, table, topics.TagIDs),
	}

	off := table.Subtable(topics.OffsetScope)
	s.offValid = bindPub(b, off, topics.OffsetValid)
	s.offTagID = bindPub(b, off, topics.OffsetTagID)
	s.offX = bindPub(b, off, topics.OffsetX)
	s.offY = bindPub(b, off, topics.OffsetY)
	s.offZ = bindPub(b, off, topics.OffsetZ)
	s.offDirect = bindPub(b, off, topics.OffsetDirectDistance)
	s.offTx = bindPub(b, off, topics.OffsetTx)
	s.offTy = bindPub(b, off, topics.OffsetTy)

	for _, tag := range scene.Tags {
		scope := table.Subtable(topics.TagScope(tag.ID))
		s.tags[tag.ID] = &tagPubs{
			tx:       bindPub(b, scope, topics.TargetTx),
			ty:       bindPub(b, scope, topics.TargetTy),
			x:        bindPub(b, scope, topics.TargetX),
			y:        bindPub(b, scope, topics.TargetY),
			z:        bindPub(b, scope, topics.TargetZ),
			distance: bindPub(b, scope, topics.TargetDistance),
			yaw:      bindPub(b, scope, topics.TargetYaw),
			pitch:    bindPub(b, scope, topics.TargetPitch),
			roll:     bindPub(b, scope, topics.TargetRoll),
		}
	}

	in := table.Subtable(topics.InputScope)
	turretAngle := bindSub(b, in, topics.TurretAngle)
	turretEnabled := bindSub(b, in, topics.TurretEnabled)
	matchMode := bindSub(b, in, topics.MatchMode)

	if b.err != nil {
		return nil, b.err
	}

	// The far end of the robot's control loop: log what comes back.
	turretAngle.OnUpdate(func(v float64) {
		log.Debug("input received", "topic", "turretAngle", "deg", v)
	})
	turretEnabled.OnUpdate(func(v bool) {
		log.Info("input received", "topic", "turretEnabled", "on", v)
	})
	matchMode.OnUpdate(func(v bool) {
		log.Info("input received", "topic", "matchMode", "on", v)
	})

	return s, nil
}

func newRNG(seed int) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(uint64(seed), 0xda3e39cb94b95bdb))
}

// run publishes frames at rate Hz until ctx is done or the optional
// duration elapses.
func (s *simulator) run(ctx context.Context, rate float64, duration time.Duration) {
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	s.setStatus(topics.StatusStarting)

	interval := time.Duration(float64(time.Second) / rate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	start := time.Now()
	lastLog := start
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			f := s.compute(now.Sub(start), rate)
			s.publishFrame(f)
			s.accountFrame()
			s.frames++
			if now.Sub(lastLog) >= 5*time.Second {
				s.log.Info("frames published",
					"count", s.frames,
					"visible", len(f.obs),
					"primary", f.primary)
				lastLog = now
			}
		}
	}
}

// observation is one visible tag, geometry in the camera frame
// (x right, y down, z forward, angles in degrees).
type observation struct {
	id               int64
	tx, ty           float64
	x, y, z          float64
	distance         float64
	yaw, pitch, roll float64
}

type offsetObs struct {
	tagID  int64
	x      float64
	y      float64
	z      float64
	direct float64
	tx     float64
	ty     float64
}

type frame struct {
	obs     []observation
	primary int64      // closest visible tag, NoTagID when none
	pose    []float64  // nil when the pose solve dropped this frame
	offset  *offsetObs // nil when the offset tag is not visible
	fps     float64
	latency float64
}

// compute renders one frame of the scene at the given elapsed time.
func (s *simulator) compute(elapsed time.Duration, rate float64) frame {
	theta := 2 * math.Pi * float64(elapsed) / float64(time.Duration(s.scene.Orbit.Period))
	camX := s.scene.Orbit.CenterX + s.scene.Orbit.Radius*math.Cos(theta)
	camY := s.scene.Orbit.CenterY + s.scene.Orbit.Radius*math.Sin(theta)
	camZ := s.scene.Camera.Height

	// The camera tracks the centroid of the scene tags.
	var cx, cy float64
	for _, tag := range s.scene.Tags {
		cx += tag.X
		cy += tag.Y
	}
	cx /= float64(len(s.scene.Tags))
	cy /= float64(len(s.scene.Tags))
	camYaw := math.Atan2(cy-camY, cx-camX)

	f := frame{primary: topics.NoTagID}
	minDist := math.MaxFloat64
	for _, tag := range s.scene.Tags {
		obs, ok := s.observe(tag, camX, camY, camZ, camYaw)
		if !ok {
			continue
		}
		f.obs = append(f.obs, obs)
		if obs.distance < minDist {
			minDist = obs.distance
			f.primary = obs.id
		}
	}

	if s.rng.Float64() >= s.scene.PoseDropout {
		f.pose = []float64{camX, camY, 0, 0, 0, deg(camYaw)}
	}

	if s.scene.Offset != nil {
		f.offset = s.observeOffset(*s.scene.Offset, f.obs, camX, camY, camZ, camYaw)
	}

	f.fps = rate * (1 + 0.01*s.rng.NormFloat64())
	f.latency = 14 + 5*math.Abs(s.rng.NormFloat64())
	return f
}

// observe projects one tag into the camera frame. Not ok when the tag
// is behind the camera, outside the field of view, or out of range.
func (s *simulator) observe(tag SceneTag, camX, camY, camZ, camYaw float64) (observation, bool) {
	x, y, z := toCameraFrame(tag.X, tag.Y, tag.Z, camX, camY, camZ, camYaw)
	if z < minForward {
		return observation{}, false
	}

	tx := deg(math.Atan2(x, z))
	ty := -deg(math.Atan2(y, z))
	dist := math.Sqrt(x*x + y*y + z*z)
	if math.Abs(tx) > s.scene.Camera.FOVDeg/2 || dist > s.scene.Camera.Range {
		return observation{}, false
	}

	return observation{
		id:       tag.ID,
		tx:       tx + s.angleNoise(),
		ty:       ty + s.angleNoise(),
		x:        x + s.posNoise(),
		y:        y + s.posNoise(),
		z:        z + s.posNoise(),
		distance: dist + s.posNoise(),
		yaw:      normDeg(tag.Facing-deg(camYaw)-180) + s.angleNoise(),
		pitch:    s.angleNoise(),
		roll:     s.angleNoise(),
	}, true
}

// observeOffset projects the configured offset point, valid only while
// its tag is among the visible observations.
func (s *simulator) observeOffset(off Offset, obs []observation, camX, camY, camZ, camYaw float64) *offsetObs {
	visible := false
	for _, o := range obs {
		if o.id == off.Tag {
			visible = true
			break
		}
	}
	if !visible {
		return nil
	}

	var tag SceneTag
	for _, t := range s.scene.Tags {
		if t.ID == off.Tag {
			tag = t
			break
		}
	}

	// Offset coordinates live in the tag's frame: x out along the
	// normal, y left along the face, z up.
	sin, cos := math.Sincos(rad(tag.Facing))
	px := tag.X + off.X*cos - off.Y*sin
	py := tag.Y + off.X*sin + off.Y*cos
	pz := tag.Z + off.Z

	x, y, z := toCameraFrame(px, py, pz, camX, camY, camZ, camYaw)
	if z < minForward {
		return nil
	}

	return &offsetObs{
		tagID:  off.Tag,
		x:      x,
		y:      y,
		z:      z,
		direct: math.Sqrt(x*x + y*y + z*z),
		tx:     deg(math.Atan2(x, z)),
		ty:     -deg(math.Atan2(y, z)),
	}
}

// publishFrame pushes one frame in the coprocessor's publish order:
// summary fields, tagIds, primaryTagId, per-tag geometry, robotPose,
// then offsetPoint.
func (s *simulator) publishFrame(f frame) {
	s.frameErrs = 0

	ids := make([]int64, len(f.obs))
	for i, obs := range f.obs {
		ids[i] = obs.id
	}

	setVal(s, s.hasTarget, len(f.obs) > 0)
	setVal(s, s.numTargets, int64(len(f.obs)))
	setVal(s, s.fps, f.fps)
	setVal(s, s.latency, f.latency)
	setVal(s, s.tagIDs, ids)
	setVal(s, s.primary, f.primary)

	for _, obs := range f.obs {
		pubs := s.tags[obs.id]
		setVal(s, pubs.tx, obs.tx)
		setVal(s, pubs.ty, obs.ty)
		setVal(s, pubs.x, obs.x)
		setVal(s, pubs.y, obs.y)
		setVal(s, pubs.z, obs.z)
		setVal(s, pubs.distance, obs.distance)
		setVal(s, pubs.yaw, obs.yaw)
		setVal(s, pubs.pitch, obs.pitch)
		setVal(s, pubs.roll, obs.roll)
	}

	pose := f.pose
	if pose == nil {
		pose = make([]float64, topics.RobotPoseLen)
	}
	setVal(s, s.robotPose, pose)

	if f.offset != nil {
		setVal(s, s.offValid, true)
		setVal(s, s.offTagID, f.offset.tagID)
		setVal(s, s.offX, f.offset.x)
		setVal(s, s.offY, f.offset.y)
		setVal(s, s.offZ, f.offset.z)
		setVal(s, s.offDirect, f.offset.direct)
		setVal(s, s.offTx, f.offset.tx)
		setVal(s, s.offTy, f.offset.ty)
	} else {
		setVal(s, s.offValid, false)
	}
}

func setVal[T fabric.Value](s *simulator, p *fabric.Publisher[T], v T) {
	if err := p.Set(v); err != nil {
		s.frameErrs++
		s.log.Debug("publish failed", "error", err)
	}
}

// accountFrame tracks publish health and drives the status topic:
// running while frames flow, error after a burst of failed frames.
func (s *simulator) accountFrame() {
	if s.frameErrs > 0 {
		s.badFrames++
		if s.badFrames == errorBurst && s.statusNow != topics.StatusError {
			s.setStatus(topics.StatusError)
		}
		return
	}
	s.badFrames = 0
	if s.statusNow != topics.StatusRunning {
		s.setStatus(topics.StatusRunning)
	}
}

func (s *simulator) setStatus(v string) {
	s.statusNow = v
	if err := s.status.Set(v); err != nil {
		s.log.Debug("status publish failed", "error", err)
	}
	s.log.Info("status changed", "status", v)
}

// toCameraFrame converts a world point into the camera frame. World
// axes: x/y in the field plane, z up. Camera axes: x right, y down,
// z forward.
func toCameraFrame(px, py, pz, camX, camY, camZ, camYaw float64) (x, y, z float64) {
	dx := px - camX
	dy := py - camY
	dz := pz - camZ
	sin, cos := math.Sincos(camYaw)
	x = dx*sin - dy*cos
	y = -dz
	z = dx*cos + dy*sin
	return x, y, z
}

// normDeg wraps an angle to (-180, 180].
func normDeg(a float64) float64 {
	a = math.Mod(a, 360)
	switch {
	case a > 180:
		a -= 360
	case a <= -180:
		a += 360
	}
	return a
}

func deg(rad float64) float64 { return rad * 180 / math.Pi }

func rad(deg float64) float64 { return deg * math.Pi / 180 }

func (s *simulator) angleNoise() float64 { return s.scene.NoiseDeg * s.rng.NormFloat64() }

func (s *simulator) posNoise() float64 { return s.scene.NoiseM * s.rng.NormFloat64() }
