package gcode

import (
	"fmt"
	"sort"
	"strings"
)

// capability describes one supported G/M-code for the M115-style report.
type capability struct {
	code string
	desc string
}

// Registry tracks which G/M-codes a build of this firmware understands and
// can emit an M115-style capability report on request.
//
// Adapted from the teacher's core/driver_registry.go + core/dictionary.go
// command-registration pattern: instead of registering Klipper wire-command
// IDs with byte-format strings, this registers G/M-code numbers with a
// human description, repointed at G-code instead of a binary dictionary.
type Registry struct {
	caps []capability
}

// NewRegistry returns a registry pre-populated with the codes this
// interpreter understands.
func NewRegistry() *Registry {
	r := &Registry{}
	r.Register("G0", "linear move (no extrusion priority)")
	r.Register("G1", "linear move")
	r.Register("G28", "home endstops")
	r.Register("G90", "absolute positioning")
	r.Register("G91", "relative positioning")
	r.Register("G92", "set position (accepted, no effect; see doSetPosition)")
	r.Register("M82", "absolute extrusion")
	r.Register("M83", "relative extrusion")
	r.Register("M104", "set extruder temperature")
	r.Register("M109", "set extruder temperature (same as M104; does not wait)")
	r.Register("M140", "set bed temperature")
	r.Register("M190", "set bed temperature (same as M140; does not wait)")
	r.Register("M115", "report firmware capabilities")
	return r
}

// Register adds a code to the capability list.
func (r *Registry) Register(code, desc string) {
	r.caps = append(r.caps, capability{code: code, desc: desc})
}

// Report renders an M115-style capability line: a FIRMWARE_NAME header
// followed by one "Cap:<CODE>:1 ; <description>" line per registered code, sorted for a
// stable diff-friendly report.
func (r *Registry) Report() string {
	caps := make([]capability, len(r.caps))
	copy(caps, r.caps)
	sort.Slice(caps, func(i, j int) bool { return caps[i].code < caps[j].code })

	var b strings.Builder
	fmt.Fprintf(&b, "FIRMWARE_NAME:printipi-go PROTOCOL_VERSION:1.0\n")
	for _, c := range caps {
		fmt.Fprintf(&b, "Cap:%s:1 ; %s\n", c.code, c.desc)
	}
	return b.String()
}
