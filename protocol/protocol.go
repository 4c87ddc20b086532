// Package protocol carries the checksum algorithm shared with the
// teacher's Klipper-derived wire protocol; the binary message-framing,
// VLQ integer encoding, and FIFO buffering that protocol also needed have
// no home here since this port's console speaks line-oriented G-code to
// a single attached host rather than framing commands for a remote MCU.
package protocol
