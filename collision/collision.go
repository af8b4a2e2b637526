// Package collision implements the workspace AABB and static-obstacle
// envelope of spec §4.3: workspace bounds plus named box/sphere obstacles,
// checked against a spherical tool at a point (or along a trajectory).
package collision

import (
	"fmt"
	"math"

	"github.com/Benergy80/Kuka-Jetson-Conversion/config"
)

// Point is a 3-vector in the workspace frame.
type Point [3]float64

// AABB is an axis-aligned box.
type AABB struct {
	Name string
	Min  Point
	Max  Point
}

// Sphere is a named spherical obstacle.
type Sphere struct {
	Name   string
	Center Point
	Radius float64
}

// Envelope is the workspace boundary plus the set of static obstacles.
type Envelope struct {
	Workspace AABB
	Boxes     []AABB
	Spheres   []Sphere
}

// NewEnvelope builds an Envelope whose workspace is the configured AABB,
// with no static obstacles; obstacles are added with AddBox/AddSphere.
func NewEnvelope(ws config.AABB) *Envelope {
	return &Envelope{Workspace: AABB{Name: "workspace", Min: Point(ws.Min), Max: Point(ws.Max)}}
}

// AddBox registers a named static box obstacle.
func (e *Envelope) AddBox(b AABB) { e.Boxes = append(e.Boxes, b) }

// AddSphere registers a named static sphere obstacle.
func (e *Envelope) AddSphere(s Sphere) { e.Spheres = append(e.Spheres, s) }

// distToBox returns the distance from p to the closest point on box b (zero
// if p is inside b).
func distToBox(p Point, b AABB) float64 {
	var d float64
	for i := 0; i < 3; i++ {
		var axisDist float64
		if p[i] < b.Min[i] {
			axisDist = b.Min[i] - p[i]
		} else if p[i] > b.Max[i] {
			axisDist = p[i] - b.Max[i]
		}
		d += axisDist * axisDist
	}
	return math.Sqrt(d)
}

func distToSphereCenter(p, c Point) float64 {
	dx, dy, dz := p[0]-c[0], p[1]-c[1], p[2]-c[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// CheckPosition checks a spherical tool of toolRadius centered at p.
// Violations are evaluated in order, first wins, per spec §4.3:
//  1. any axis of p within toolRadius of a workspace bound;
//  2. distance to the closest point on any box obstacle < toolRadius;
//  3. distance to any sphere center < toolRadius+sphere.Radius.
func (e *Envelope) CheckPosition(p Point, toolRadius float64) (ok bool, message string) {
	for i := 0; i < 3; i++ {
		if p[i]-e.Workspace.Min[i] < toolRadius {
			return false, fmt.Sprintf("tool within %.4f of workspace min on axis %d", toolRadius, i)
		}
		if e.Workspace.Max[i]-p[i] < toolRadius {
			return false, fmt.Sprintf("tool within %.4f of workspace max on axis %d", toolRadius, i)
		}
	}
	for _, b := range e.Boxes {
		if distToBox(p, b) < toolRadius {
			return false, fmt.Sprintf("tool within %.4f of obstacle box %q", toolRadius, b.Name)
		}
	}
	for _, s := range e.Spheres {
		if distToSphereCenter(p, s.Center) < toolRadius+s.Radius {
			return false, fmt.Sprintf("tool within %.4f of obstacle sphere %q", toolRadius, s.Name)
		}
	}
	return true, ""
}

// CheckTrajectory iterates points in order and returns the index of the
// first violating point, or -1 if all points are ok.
func (e *Envelope) CheckTrajectory(points []Point, toolRadius float64) (ok bool, firstBadIndex int, message string) {
	for i, p := range points {
		if pok, msg := e.CheckPosition(p, toolRadius); !pok {
			return false, i, msg
		}
	}
	return true, -1, ""
}
