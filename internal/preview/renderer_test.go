package preview

import (
	"math"
	"testing"

	"github.com/sawtak/glovestudio/internal/pose"
)

func testRenderer(t *testing.T) *Renderer {
	t.Helper()
	reg, err := pose.NewRegistry(pose.HandConfig(pose.ModeDelta))
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return NewRenderer(ChainsFor(reg), 0, 0, "live")
}

func TestChainsFor(t *testing.T) {
	reg, err := pose.NewRegistry(pose.HandConfig(pose.ModeDelta))
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	chains := ChainsFor(reg)
	if len(chains) != 5 {
		t.Fatalf("len(chains) = %d, want 5", len(chains))
	}
	for _, c := range chains {
		switch c.Name {
		case "thumb":
			if len(c.Joints) != 1 {
				t.Errorf("thumb chain = %v, want one joint", c.Joints)
			}
		default:
			if len(c.Joints) != 2 {
				t.Errorf("%s chain = %v, want two joints", c.Name, c.Joints)
			}
		}
	}
}

func TestRenderer_Segments(t *testing.T) {
	r := testRenderer(t)

	segs := r.Segments()
	if len(segs) != 9 {
		t.Fatalf("len(Segments()) = %d, want 9", len(segs))
	}
	for _, s := range segs {
		if s.To.X != s.From.X || s.To.Y >= s.From.Y {
			t.Errorf("rest bone %s should point straight up: %v -> %v", s.Joint, s.From, s.To)
		}
	}

	node, ok := r.Node("index_01R_017")
	if !ok {
		t.Fatal("renderer has no index_01R_017 node")
	}
	node.SetOrientation(pose.FromAxisAngle(pose.AxisZ, math.Pi/2))

	var knuckle, tip Segment
	for _, s := range r.Segments() {
		switch s.Joint {
		case "index_01R_017":
			knuckle = s
		case "index_02R_018":
			tip = s
		}
	}
	if knuckle.To.X <= knuckle.From.X || knuckle.To.Y != knuckle.From.Y {
		t.Errorf("bent knuckle %v -> %v should point sideways", knuckle.From, knuckle.To)
	}
	if tip.From != knuckle.To {
		t.Errorf("tip starts at %v, want knuckle end %v", tip.From, knuckle.To)
	}
	if tip.To.X <= tip.From.X {
		t.Errorf("tip %v -> %v should follow the knuckle", tip.From, tip.To)
	}
}

func TestRenderer_Render(t *testing.T) {
	r := testRenderer(t)

	jpg, err := r.Render()
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if len(jpg) < 2 || jpg[0] != 0xFF || jpg[1] != 0xD8 {
		t.Errorf("Render() did not produce a JPEG")
	}
}
