// Package gcode implements the G-code lexer/parser and modal machine state
// of spec §4.9: one command per line, comments to end of line or
// parenthesized inline, optional leading line number, <letter><number>
// token pairs.
package gcode

import (
	"strconv"
	"strings"

	"github.com/Benergy80/Kuka-Jetson-Conversion/ctlerr"
)

// axis letters, in index order.
var axisLetters = []byte{'X', 'Y', 'Z', 'A', 'B', 'C'}

func axisIndex(letter byte) (int, bool) {
	for i, l := range axisLetters {
		if l == letter {
			return i, true
		}
	}
	return 0, false
}

// SpindleDirection is the modal spindle direction.
type SpindleDirection int

// Spindle directions.
const (
	SpindleOff SpindleDirection = iota
	SpindleCW
	SpindleCCW
)

// MachineState is the modal register persisted across commands (spec §3).
type MachineState struct {
	Position    [6]float64
	Feedrate    float64
	SpindleDir  SpindleDirection
	SpindleRPM  float64
	Coolant     bool
	Absolute    bool
	WorkOffset  [6]float64
	ProgramDone bool
}

// NewMachineState returns the default modal state: absolute mode, spindle
// off, coolant off.
func NewMachineState() MachineState {
	return MachineState{Absolute: true}
}

// CommandKind names the emitted command type.
type CommandKind string

// The closed set of recognized command kinds (spec §4.9).
const (
	CmdRapid       CommandKind = "G0"
	CmdLinear      CommandKind = "G1"
	CmdArcCW       CommandKind = "G2"
	CmdArcCCW      CommandKind = "G3"
	CmdHome        CommandKind = "G28"
	CmdAbsolute    CommandKind = "G90"
	CmdIncremental CommandKind = "G91"
	CmdSpindleCW   CommandKind = "M3"
	CmdSpindleCCW  CommandKind = "M4"
	CmdSpindleOff  CommandKind = "M5"
	CmdCoolantOn   CommandKind = "M8"
	CmdCoolantOff  CommandKind = "M9"
	CmdProgramEnd  CommandKind = "M30"
)

// ArcParams carries the G2/G3 arc center offsets when present.
type ArcParams struct {
	I, J, K float64
	HasArc  bool
}

// Command is one parsed, fully-resolved line: the modal state snapshot
// after applying it, plus the kind that produced it.
type Command struct {
	Line  int
	Kind  CommandKind
	State MachineState
	Arc   ArcParams
}

// ParseReport carries a non-fatal UnsupportedCode finding; parsing
// continues past it (spec §4.9/§7).
type ParseReport struct {
	Line    int
	Message string
}

// Program is a parsed sequence of commands plus any unsupported-code
// reports collected along the way.
type Program struct {
	Commands []Command
	Reports  []ParseReport
}

type token struct {
	letter byte
	value  float64
	raw    string
}

func tokenize(line string) []token {
	var toks []token
	i := 0
	for i < len(line) {
		c := line[i]
		if c == ' ' || c == '\t' {
			i++
			continue
		}
		if (c >= 'A' && c <= 'Z') || c == 'N' {
			letter := c
			j := i + 1
			start := j
			for j < len(line) && (isDigit(line[j]) || line[j] == '.' || line[j] == '-' || line[j] == '+') {
				j++
			}
			raw := line[start:j]
			v, _ := strconv.ParseFloat(raw, 64)
			toks = append(toks, token{letter: letter, value: v, raw: raw})
			i = j
			continue
		}
		i++
	}
	return toks
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// stripComments removes ;... to end of line and (...)  inline comments.
func stripComments(line string) string {
	if idx := strings.Index(line, ";"); idx >= 0 {
		line = line[:idx]
	}
	for {
		open := strings.Index(line, "(")
		if open < 0 {
			break
		}
		closeIdx := strings.Index(line[open:], ")")
		if closeIdx < 0 {
			line = line[:open]
			break
		}
		line = line[:open] + line[open+closeIdx+1:]
	}
	return line
}

// Parse parses a full program's text into a Program, applying each line's
// effect to a running MachineState. Unknown codes are collected as reports
// but do not halt parsing of further lines (spec §4.9/§7 UnsupportedCode).
func Parse(text string) (*Program, error) {
	prog := &Program{}
	state := NewMachineState()

	for lineNo, raw := range strings.Split(text, "\n") {
		line := strings.ToUpper(strings.TrimSpace(raw))
		line = stripComments(line)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		toks := tokenize(line)
		if len(toks) == 0 {
			continue
		}

		idx := 0
		if toks[0].letter == 'N' {
			idx = 1
		}
		if idx >= len(toks) {
			continue
		}

		codeTok := toks[idx]
		kind, known := resolveCode(codeTok)
		if !known {
			prog.Reports = append(prog.Reports, ParseReport{
				Line:    lineNo + 1,
				Message: "unsupported code " + codeTok.raw,
			})
			continue
		}

		cmd := Command{Line: lineNo + 1, Kind: kind}
		applyCommand(&state, kind, toks[idx+1:], &cmd.Arc)
		cmd.State = state
		prog.Commands = append(prog.Commands, cmd)

		if kind == CmdProgramEnd {
			break
		}
	}

	return prog, nil
}

func resolveCode(t token) (CommandKind, bool) {
	switch t.letter {
	case 'G':
		switch int(t.value) {
		case 0:
			return CmdRapid, true
		case 1:
			return CmdLinear, true
		case 2:
			return CmdArcCW, true
		case 3:
			return CmdArcCCW, true
		case 28:
			return CmdHome, true
		case 90:
			return CmdAbsolute, true
		case 91:
			return CmdIncremental, true
		}
	case 'M':
		switch int(t.value) {
		case 3:
			return CmdSpindleCW, true
		case 4:
			return CmdSpindleCCW, true
		case 5:
			return CmdSpindleOff, true
		case 8:
			return CmdCoolantOn, true
		case 9:
			return CmdCoolantOff, true
		case 30:
			return CmdProgramEnd, true
		}
	}
	return "", false
}

func applyCommand(state *MachineState, kind CommandKind, params []token, arc *ArcParams) {
	switch kind {
	case CmdRapid, CmdLinear, CmdArcCW, CmdArcCCW:
		applyAxes(state, params)
		for _, p := range params {
			switch p.letter {
			case 'F':
				state.Feedrate = p.value
			case 'I':
				arc.I, arc.HasArc = p.value, true
			case 'J':
				arc.J, arc.HasArc = p.value, true
			case 'K':
				arc.K, arc.HasArc = p.value, true
			}
		}
	case CmdHome:
		state.Position = [6]float64{}
	case CmdAbsolute:
		state.Absolute = true
	case CmdIncremental:
		state.Absolute = false
	case CmdSpindleCW:
		state.SpindleDir = SpindleCW
		applyRPM(state, params)
	case CmdSpindleCCW:
		state.SpindleDir = SpindleCCW
		applyRPM(state, params)
	case CmdSpindleOff:
		state.SpindleDir = SpindleOff
	case CmdCoolantOn:
		state.Coolant = true
	case CmdCoolantOff:
		state.Coolant = false
	case CmdProgramEnd:
		state.ProgramDone = true
	}
}

func applyRPM(state *MachineState, params []token) {
	for _, p := range params {
		if p.letter == 'S' {
			state.SpindleRPM = p.value
		}
	}
}

// applyAxes updates position per spec §4.9: in absolute mode a missing axis
// retains its current value; in incremental mode the parameter is added to
// the current value.
func applyAxes(state *MachineState, params []token) {
	for _, p := range params {
		idx, ok := axisIndex(p.letter)
		if !ok {
			continue
		}
		if state.Absolute {
			state.Position[idx] = p.value
		} else {
			state.Position[idx] += p.value
		}
	}
}

// String re-emits a program as canonical one-command-per-line text
// (uppercase codes, fixed axis order), enabling the round-trip testable
// property of spec §8. Motion lines in incremental mode carry the per-axis
// change from the previous command; spindle commands carry their S value.
func (p *Program) String() string {
	var b strings.Builder
	var prev [6]float64
	for _, cmd := range p.Commands {
		b.WriteString(string(cmd.Kind))
		if isMotion(cmd.Kind) {
			for i, letter := range axisLetters {
				v := cmd.State.Position[i]
				if !cmd.State.Absolute {
					v -= prev[i]
				}
				b.WriteByte(' ')
				b.WriteByte(letter)
				b.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
			}
			if cmd.State.Feedrate > 0 {
				b.WriteString(" F")
				b.WriteString(strconv.FormatFloat(cmd.State.Feedrate, 'f', -1, 64))
			}
		}
		if cmd.Kind == CmdSpindleCW || cmd.Kind == CmdSpindleCCW {
			b.WriteString(" S")
			b.WriteString(strconv.FormatFloat(cmd.State.SpindleRPM, 'f', -1, 64))
		}
		prev = cmd.State.Position
		b.WriteString("\n")
	}
	return b.String()
}

func isMotion(k CommandKind) bool {
	return k == CmdRapid || k == CmdLinear || k == CmdArcCW || k == CmdArcCCW
}

// ErrEmptyProgram is an InvalidArgument error describing a program with no
// commands. No function in this module currently returns it.
var ErrEmptyProgram = ctlerr.New(ctlerr.InvalidArgument, "program has no commands")
