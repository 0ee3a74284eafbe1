package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scene describes the synthetic world: AprilTags fixed on the field
// and a robot circling among them with a forward-facing camera aimed
// at the tag centroid.
//
// A scene file overlays the built-in defaults, so partial files work:
//
//	tags:
//	  - id: 12
//	    x: 8.0
//	    y: 2.0
//	    z: 1.2
//	orbit:
//	  radius: 3.5
type Scene struct {
	Tags        []SceneTag `yaml:"tags"`
	Orbit       Orbit      `yaml:"orbit"`
	Camera      Camera     `yaml:"camera"`
	Offset      *Offset    `yaml:"offset"`
	NoiseDeg    float64    `yaml:"noiseDeg"`
	NoiseM      float64    `yaml:"noiseM"`
	PoseDropout float64    `yaml:"poseDropout"`
}

// SceneTag is one tag on the field. Facing is the world yaw of the
// tag's outward normal in degrees; position is meters, z up.
type SceneTag struct {
	ID     int64   `yaml:"id"`
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Z      float64 `yaml:"z"`
	Facing float64 `yaml:"facing"`
}

// Orbit is the circular path the simulated robot drives.
type Orbit struct {
	CenterX float64  `yaml:"centerX"`
	CenterY float64  `yaml:"centerY"`
	Radius  float64  `yaml:"radius"`
	Period  Duration `yaml:"period"`
}

// Camera models the detector's mount height, horizontal field of view,
// and maximum detection distance.
type Camera struct {
	Height float64 `yaml:"height"`
	FOVDeg float64 `yaml:"fovDeg"`
	Range  float64 `yaml:"range"`
}

// Offset is the configured aim point relative to one tag, in the tag's
// frame: x out along the normal, y left along the face, z up.
type Offset struct {
	Tag int64   `yaml:"tag"`
	X   float64 `yaml:"x"`
	Y   float64 `yaml:"y"`
	Z   float64 `yaml:"z"`
}

// Duration parses YAML durations in time.ParseDuration form ("14s",
// "250ms").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// defaultScene is a two-tag scene sized like one end of an FRC field.
func defaultScene() Scene {
	return Scene{
		Tags: []SceneTag{
			{ID: 7, X: 8.0, Y: 4.0, Z: 1.45, Facing: 180},
			{ID: 3, X: 8.0, Y: 1.2, Z: 0.90, Facing: 180},
		},
		Orbit:       Orbit{CenterX: 4.0, CenterY: 2.6, Radius: 2.0, Period: Duration(14 * time.Second)},
		Camera:      Camera{Height: 0.62, FOVDeg: 70, Range: 7.0},
		Offset:      &Offset{Tag: 7, Y: -0.35, Z: 0.25},
		NoiseDeg:    0.05,
		NoiseM:      0.004,
		PoseDropout: 0.04,
	}
}

// loadScene reads a YAML scene overlaid on the defaults. An empty path
// returns the built-in scene.
func loadScene(path string) (Scene, error) {
	if path == "" {
		return defaultScene(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Scene{}, err
	}

	scene := defaultScene()
	if err := yaml.Unmarshal(data, &scene); err != nil {
		return Scene{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := scene.validate(); err != nil {
		return Scene{}, fmt.Errorf("scene %s: %w", path, err)
	}
	return scene, nil
}

func (s Scene) validate() error {
	if len(s.Tags) == 0 {
		return errors.New("at least one tag required")
	}

	seen := make(map[int64]bool, len(s.Tags))
	for _, tag := range s.Tags {
		if tag.ID < 0 {
			return fmt.Errorf("tag id %d: must be non-negative", tag.ID)
		}
		if seen[tag.ID] {
			return fmt.Errorf("tag id %d: duplicate", tag.ID)
		}
		seen[tag.ID] = true
	}

	if s.Orbit.Radius <= 0 {
		return errors.New("orbit radius must be positive")
	}
	if time.Duration(s.Orbit.Period) <= 0 {
		return errors.New("orbit period must be positive")
	}

	if s.Camera.FOVDeg <= 0 || s.Camera.FOVDeg > 180 {
		return fmt.Errorf("camera fovDeg %.1f: must be in (0, 180]", s.Camera.FOVDeg)
	}
	if s.Camera.Range <= 0 {
		return errors.New("camera range must be positive")
	}

	if s.Offset != nil && !seen[s.Offset.Tag] {
		return fmt.Errorf("offset tag %d: not in scene", s.Offset.Tag)
	}

	if s.PoseDropout < 0 || s.PoseDropout >= 1 {
		return fmt.Errorf("poseDropout %.2f: must be in [0, 1)", s.PoseDropout)
	}
	if s.NoiseDeg < 0 || s.NoiseM < 0 {
		return errors.New("noise must be non-negative")
	}

	return nil
}
