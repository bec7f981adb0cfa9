// Package preview draws the bound hand skeleton as a JPEG image for the
// studio's MJPEG stream.
package preview

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/sawtak/glovestudio/internal/pose"
	"github.com/sawtak/glovestudio/internal/skeleton"
)

// Default image size.
const (
	DefaultWidth  = 480
	DefaultHeight = 360
)

var (
	background = gocv.NewScalar(32, 28, 24, 0)
	boneColor  = color.RGBA{R: 230, G: 200, B: 120, A: 0}
	jointColor = color.RGBA{R: 90, G: 200, B: 250, A: 0}
	palmColor  = color.RGBA{R: 120, G: 120, B: 120, A: 0}
	textColor  = color.RGBA{R: 220, G: 220, B: 220, A: 0}
)

// boneAxis is the rest direction of every bone: up the image.
var boneAxis = pose.Axis{X: 0, Y: -1, Z: 0}

// Chain is one finger: its joints from knuckle to tip.
type Chain struct {
	Name   string
	Joints []string
}

// ChainsFor derives one chain per channel of r, in channel order.
func ChainsFor(r *pose.Registry) []Chain {
	var chains []Chain
	for _, ch := range r.Channels() {
		targets := r.Mapping(ch)
		if len(targets) == 0 {
			continue
		}
		c := Chain{Name: ch}
		for _, t := range targets {
			c.Joints = append(c.Joints, t.Joint)
		}
		chains = append(chains, c)
	}
	return chains
}

// Segment is one drawn bone in image coordinates.
type Segment struct {
	Joint    string
	From, To image.Point
}

// Renderer is a skeleton.Mesh that can draw itself.
type Renderer struct {
	*skeleton.Rig
	chains []Chain
	width  int
	height int
	title  string
}

// NewRenderer creates a Renderer for the given finger chains. Non-positive
// sizes use the defaults.
func NewRenderer(chains []Chain, width, height int, title string) *Renderer {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}

	var names []string
	for _, c := range chains {
		names = append(names, c.Joints...)
	}

	return &Renderer{
		Rig:    skeleton.NewRig(names...),
		chains: chains,
		width:  width,
		height: height,
		title:  title,
	}
}

// Segments projects the current pose into bones. Each bone's orientation is
// composed with its parent's, so bending a knuckle carries the finger tip.
func (r *Renderer) Segments() []Segment {
	n := len(r.chains)
	baseY := r.height * 3 / 4
	boneLen := float64(r.height) * 0.2

	var segs []Segment
	for i, c := range r.chains {
		pos := image.Pt(r.width*(i+1)/(n+1), baseY)
		acc := pose.Identity
		length := boneLen
		for _, j := range c.Joints {
			q, ok := r.Orientation(j)
			if !ok {
				q = pose.Identity
			}
			acc = pose.Compose(acc, q)
			dir := pose.Rotate(acc, boneAxis)
			end := image.Pt(
				pos.X+int(dir.X*length),
				pos.Y+int(dir.Y*length),
			)
			segs = append(segs, Segment{Joint: j, From: pos, To: end})
			pos = end
			length *= 0.75
		}
	}
	return segs
}

// Render draws the current pose and returns it JPEG-encoded.
func (r *Renderer) Render() ([]byte, error) {
	img := gocv.NewMatWithSize(r.height, r.width, gocv.MatTypeCV8UC3)
	defer img.Close()
	img.SetTo(background)

	n := len(r.chains)
	baseY := r.height * 3 / 4
	if n > 0 {
		gocv.Line(&img,
			image.Pt(r.width/(n+1), baseY),
			image.Pt(r.width*n/(n+1), baseY),
			palmColor, 6)
	}

	for _, s := range r.Segments() {
		gocv.Line(&img, s.From, s.To, boneColor, 4)
		gocv.Circle(&img, s.From, 5, jointColor, -1)
		gocv.Circle(&img, s.To, 3, jointColor, -1)
	}

	if r.title != "" {
		gocv.PutText(&img, r.title, image.Pt(10, 24), gocv.FontHersheyPlain, 1.4, textColor, 1)
	}

	buf, err := gocv.IMEncode(".jpg", img)
	if err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}
