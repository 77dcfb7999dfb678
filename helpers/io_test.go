package helpers

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteAll(t *testing.T) {
	t.Parallel()

	// two collector records
	payload := []byte("00010001000100010512" + "00000001000200000000")
	cases := []struct {
		name   string
		limit  int
		fail   error
		expect string
		err    error
	}{
		{"whole", len(payload), nil, string(payload), nil},
		{"short-writes", 7, nil, string(payload), nil},
		{"one-byte", 1, nil, string(payload), nil},
		{"stalled", 0, nil, "", io.ErrShortWrite},
		{"error", 7, errBroken, "0001000", errBroken},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			buf := bytes.NewBuffer(nil)
			tw := &throttleWriter{w: buf, n: c.limit, failAfter: c.fail}
			err := WriteAll(tw, payload)
			assert.Equal(t, c.err, err)
			assert.Equal(t, c.expect, buf.String())
		})
	}
}

var errBroken = errors.New("broken pipe")

// throttleWriter accepts at most n bytes per call, then fails with failAfter if set.
type throttleWriter struct {
	w         io.Writer
	n         int
	failAfter error
	calls     int
}

func (tw *throttleWriter) Write(p []byte) (int, error) {
	tw.calls++
	if tw.failAfter != nil && tw.calls > 1 {
		return 0, tw.failAfter
	}
	limit := len(p)
	if limit > tw.n {
		limit = tw.n
	}
	return tw.w.Write(p[:limit])
}
