package trajectory

import (
	"github.com/Benergy80/Kuka-Jetson-Conversion/ctlerr"
	"github.com/Benergy80/Kuka-Jetson-Conversion/gcode"
)

// FromProgram expands a parsed G-code program (spec §4.9) into a single
// continuous trajectory: G0/G1 moves become direct waypoints, G2/G3 moves
// are expanded into chorded waypoints via ArcToWaypoints, and the whole
// sequence is stitched through Waypoints. The machine starts at the
// all-zero position, matching gcode.NewMachineState's default.
func FromProgram(prog *gcode.Program, vMax, aMax []float64) ([]Point, error) {
	cur := make([]float64, 6)
	waypoints := [][]float64{append([]float64(nil), cur...)}

	for _, cmd := range prog.Commands {
		switch cmd.Kind {
		case gcode.CmdRapid, gcode.CmdLinear, gcode.CmdHome:
			target := append([]float64(nil), cmd.State.Position[:]...)
			waypoints = append(waypoints, target)
			cur = target
		case gcode.CmdArcCW, gcode.CmdArcCCW:
			end := append([]float64(nil), cmd.State.Position[:]...)
			arcPoints, err := ArcToWaypoints(cur, end, cmd.Arc.I, cmd.Arc.J, cmd.Kind == gcode.CmdArcCW)
			if err != nil {
				return nil, err
			}
			waypoints = append(waypoints, arcPoints[1:]...)
			cur = end
		}
	}

	if len(waypoints) < 2 {
		return nil, ctlerr.New(ctlerr.InvalidArgument, "program has no motion commands")
	}
	return Waypoints(waypoints, nil, vMax, aMax)
}
