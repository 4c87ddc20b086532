package gcode

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/shlex"

	"printipi/gcode/serial"
	"printipi/protocol"
)

// Console is an interactive line-oriented front-end: it reads G-code lines
// (optionally RepRap-style checksummed, "N<seq> ...*<checksum>") from a
// reader, executes them through an Interpreter, and writes "ok"/error
// responses to a writer. It also recognizes a small set of "!"-prefixed
// local meta-commands (capability report, quit) tokenized with shlex so a
// quoted argument ("!log \"main run\"") splits correctly.
//
// Grounded on the teacher's host/cmd/gopper-host/main.go interactive REPL
// and host/mcu/mcu.go's request/response transport, generalized from
// Klipper's binary dictionary framing to line-based G-code.
type Console struct {
	r    *bufio.Scanner
	w    io.Writer
	interp *Interpreter
	reg    *Registry
	parser *Parser
}

// NewConsole builds a console reading from r and writing responses to w.
func NewConsole(r io.Reader, w io.Writer, interp *Interpreter, reg *Registry) *Console {
	return &Console{
		r:      bufio.NewScanner(r),
		w:      w,
		interp: interp,
		reg:    reg,
		parser: NewParser(),
	}
}

// OpenSerialConsole opens device (e.g. "/dev/ttyACM0") as the console's
// transport, matching the teacher's default USB-serial console device.
func OpenSerialConsole(device string, interp *Interpreter, reg *Registry) (*Console, error) {
	port, err := serial.Open(serial.DefaultConfig(device))
	if err != nil {
		return nil, fmt.Errorf("open console serial port: %w", err)
	}
	return NewConsole(port, port, interp, reg), nil
}

// Run reads and executes lines until r is exhausted or returns an error.
func (c *Console) Run() error {
	for c.r.Scan() {
		line := strings.TrimSpace(c.r.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "!") {
			c.handleMeta(line[1:])
			continue
		}
		c.handleGCodeLine(line)
	}
	return c.r.Err()
}

// handleGCodeLine strips and validates an optional RepRap-style line
// checksum/sequence ("N12 G1 X10*137") before parsing and executing. This
// console additionally accepts CRC16-validated lines (protocol.CRC16, the
// teacher's own checksum algorithm) from senders that append one instead
// of the classic XOR checksum: the suffix after '*' must be decimal, and if
// it does not match the XOR checksum it is compared with the CRC16 of the
// line body. A suffix that is not decimal is rejected.
func (c *Console) handleGCodeLine(line string) {
	body := line
	if idx := strings.IndexByte(line, '*'); idx >= 0 {
		body = line[:idx]
		checkStr := line[idx+1:]
		if !validChecksum(body, checkStr) {
			fmt.Fprintf(c.w, "Error:checksum mismatch\n")
			return
		}
	}
	if strings.HasPrefix(body, "N") {
		if sp := strings.IndexByte(body, ' '); sp > 0 {
			body = strings.TrimSpace(body[sp+1:])
		}
	}

	cmd, err := c.parser.ParseLine(body)
	if err != nil {
		fmt.Fprintf(c.w, "Error:%v\n", err)
		return
	}
	if cmd == nil || cmd.Type == 0 {
		fmt.Fprintln(c.w, "ok")
		return
	}
	if cmd.Type == 'M' && cmd.Number == 115 && c.reg != nil {
		fmt.Fprint(c.w, c.reg.Report())
		fmt.Fprintln(c.w, "ok")
		return
	}
	if err := c.interp.Execute(cmd); err != nil {
		fmt.Fprintf(c.w, "Error:%v\n", err)
		return
	}
	fmt.Fprintln(c.w, "ok")
}

// validChecksum accepts either the classic RepRap XOR checksum or a CRC16
// over the line body, both rendered as decimal text.
func validChecksum(body, want string) bool {
	wantN, err := strconv.Atoi(strings.TrimSpace(want))
	if err != nil {
		return false
	}
	xor := 0
	for i := 0; i < len(body); i++ {
		xor ^= int(body[i])
	}
	if xor == wantN {
		return true
	}
	return int(protocol.CRC16([]byte(body))) == wantN
}

// handleMeta executes a "!"-prefixed local command: "!caps" reports
// capabilities, "!quit" is a no-op signal left for the caller's main loop
// to observe via Scan() returning false once the reader is closed.
func (c *Console) handleMeta(rest string) {
	args, err := shlex.Split(rest)
	if err != nil || len(args) == 0 {
		fmt.Fprintln(c.w, "Error:bad meta command")
		return
	}
	switch args[0] {
	case "caps":
		if c.reg != nil {
			fmt.Fprint(c.w, c.reg.Report())
		}
	case "quit":
	default:
		fmt.Fprintf(c.w, "Error:unknown meta command %q\n", args[0])
	}
}
