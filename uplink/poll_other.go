//go:build unix && !linux

package uplink

// Peer close is detected by write error only.
const pollRdHup = 0
