// Package smooth eases rendered values toward the visual targets of the
// engine with critically damped springs, one spring per channel.
package smooth

import (
	"sort"
	"sync"

	"github.com/charmbracelet/harmonica"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/KikinaStudio/kikiscroll/pkg/director"
)

// Angular frequencies per channel group. Materials settle faster than the
// camera, the shader scroll sits in between.
const (
	MaterialFrequency = 6.9
	CameraFrequency   = 4.6
	ScrollFrequency   = 6.3

	// vanishScale is the scale under which a removed clone is dropped.
	vanishScale = 0.01
)

type channel struct {
	pos, vel float64
}

func (c *channel) step(s harmonica.Spring, target float64) float64 {
	c.pos, c.vel = s.Update(c.pos, c.vel, target)
	return c.pos
}

type blobState struct {
	r, g, b      channel
	deform       channel
	roughness    channel
	transmission channel
	rotSpeed     channel
	scale        channel
	x, y, z      channel

	rotation float64
	target   director.Blob
	removed  bool
}

func newBlob(from *blobState, b director.Blob) *blobState {
	s := &blobState{target: b}
	if from != nil {
		// Clones grow out of the main blob.
		s.r, s.g, s.b = channel{pos: from.r.pos}, channel{pos: from.g.pos}, channel{pos: from.b.pos}
		s.deform = channel{pos: from.deform.pos}
		s.roughness = channel{pos: from.roughness.pos}
		s.transmission = channel{pos: from.transmission.pos}
		s.rotSpeed = channel{pos: from.rotSpeed.pos}
		s.x, s.y, s.z = channel{pos: from.x.pos}, channel{pos: from.y.pos}, channel{pos: from.z.pos}
		s.rotation = b.RotationOffset
		return s
	}
	m := b.Material
	s.r, s.g, s.b = channel{pos: m.Color.R}, channel{pos: m.Color.G}, channel{pos: m.Color.B}
	s.deform = channel{pos: m.Deform}
	s.roughness = channel{pos: m.Roughness}
	s.transmission = channel{pos: m.Transmission}
	s.rotSpeed = channel{pos: m.RotationSpeed}
	s.scale = channel{pos: b.Scale}
	s.x, s.y, s.z = channel{pos: b.Position.X}, channel{pos: b.Position.Y}, channel{pos: b.Position.Z}
	return s
}

// BlobView is the rendered state of one blob.
type BlobView struct {
	Index        int
	Position     director.Vec3
	Scale        float64
	Rotation     float64 // Accumulated Y rotation in radians
	Color        colorful.Color
	Deform       float64
	Roughness    float64
	Transmission float64
}

// View is one rendered frame.
type View struct {
	Section      int
	Blobs        []BlobView // Sorted by index, main blob first
	Camera       director.CameraPose
	ShaderScroll float64
}

// Follower implements engine.Renderer. Render stores the latest target
// from any goroutine; Step advances one tick from the render loop.
type Follower struct {
	dt       float64
	material harmonica.Spring
	camera   harmonica.Spring
	scroll   harmonica.Spring

	mu      sync.Mutex
	target  director.Frame
	primed  bool
	blobs   map[int]*blobState
	cam     [6]channel
	shader  channel
	section int
}

// New creates a follower stepping at fps.
func New(fps int) *Follower {
	if fps <= 0 {
		fps = 30
	}
	dt := harmonica.FPS(fps)
	return &Follower{
		dt:       dt,
		material: harmonica.NewSpring(dt, MaterialFrequency, 1.0),
		camera:   harmonica.NewSpring(dt, CameraFrequency, 1.0),
		scroll:   harmonica.NewSpring(dt, ScrollFrequency, 1.0),
		blobs:    make(map[int]*blobState),
	}
}

// Render sets a new target. The first target is adopted without easing.
func (f *Follower) Render(fr director.Frame) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.target = fr
	f.section = fr.Section
	wanted := make(map[int]bool, len(fr.Clones)+1)
	for _, b := range fr.Blobs() {
		wanted[b.Index] = true
		if s, ok := f.blobs[b.Index]; ok {
			s.target = b
			s.removed = false
			continue
		}
		var from *blobState
		if b.Index != fr.Main.Index {
			from = f.blobs[fr.Main.Index]
		}
		f.blobs[b.Index] = newBlob(from, b)
	}
	for idx, s := range f.blobs {
		if !wanted[idx] {
			s.removed = true
		}
	}

	if !f.primed {
		f.primed = true
		f.setCamera(fr.Camera)
		f.shader = channel{pos: fr.ShaderScroll}
	}
}

func (f *Follower) setCamera(p director.CameraPose) {
	vals := [6]float64{p.Position.X, p.Position.Y, p.Position.Z, p.LookAt.X, p.LookAt.Y, p.LookAt.Z}
	for i, v := range vals {
		f.cam[i] = channel{pos: v}
	}
}

// Step advances every channel by one tick and returns the result.
func (f *Follower) Step() View {
	f.mu.Lock()
	defer f.mu.Unlock()

	v := View{Section: f.section}
	if !f.primed {
		return v
	}

	for idx, s := range f.blobs {
		m := s.target.Material
		scale := s.target.Scale
		if s.removed {
			scale = 0
		}
		s.r.step(f.material, m.Color.R)
		s.g.step(f.material, m.Color.G)
		s.b.step(f.material, m.Color.B)
		s.deform.step(f.material, m.Deform)
		s.roughness.step(f.material, m.Roughness)
		s.transmission.step(f.material, m.Transmission)
		speed := s.rotSpeed.step(f.material, m.RotationSpeed)
		s.rotation += speed * f.dt
		sc := s.scale.step(f.material, scale)
		s.x.step(f.material, s.target.Position.X)
		s.y.step(f.material, s.target.Position.Y)
		s.z.step(f.material, s.target.Position.Z)

		if s.removed && sc < vanishScale && s.scale.vel <= 0 {
			delete(f.blobs, idx)
			continue
		}
		v.Blobs = append(v.Blobs, BlobView{
			Index:        idx,
			Position:     director.Vec3{X: s.x.pos, Y: s.y.pos, Z: s.z.pos},
			Scale:        sc,
			Rotation:     s.rotation,
			Color:        colorful.Color{R: s.r.pos, G: s.g.pos, B: s.b.pos}.Clamped(),
			Deform:       s.deform.pos,
			Roughness:    s.roughness.pos,
			Transmission: s.transmission.pos,
		})
	}
	sort.Slice(v.Blobs, func(i, j int) bool { return v.Blobs[i].Index < v.Blobs[j].Index })

	t := f.target.Camera
	targets := [6]float64{t.Position.X, t.Position.Y, t.Position.Z, t.LookAt.X, t.LookAt.Y, t.LookAt.Z}
	for i := range f.cam {
		f.cam[i].step(f.camera, targets[i])
	}
	v.Camera = director.CameraPose{
		Position: director.Vec3{X: f.cam[0].pos, Y: f.cam[1].pos, Z: f.cam[2].pos},
		LookAt:   director.Vec3{X: f.cam[3].pos, Y: f.cam[4].pos, Z: f.cam[5].pos},
	}
	v.ShaderScroll = f.shader.step(f.scroll, f.target.ShaderScroll)
	return v
}
