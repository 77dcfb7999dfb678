package helpers

import (
	"expvar"
	"io"
)

// StatWriter counts written bytes into expvar.
type StatWriter struct {
	W io.Writer
	V *expvar.Int
}

var _ io.Writer = &StatWriter{}

func NewStatWriter(w io.Writer, v *expvar.Int) io.Writer {
	return &StatWriter{W: w, V: v}
}

func (sw *StatWriter) Write(p []byte) (n int, err error) {
	n, err = sw.W.Write(p)
	if n > 0 {
		sw.V.Add(int64(n))
	}
	return
}
