// Package decode prints collector payload captured on the wire.
package decode

import (
	"bytes"
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/juju/errors"
	"github.com/temoto/concentrator/cmd/concentrator/subcmd"
	"github.com/temoto/concentrator/record"
	"github.com/temoto/concentrator/sensor"
)

const usage = `decode [-hex] [payload...]
payload is read from stdin when not given as arguments, whitespace is ignored`

var Mod = subcmd.Mod{Name: "decode", Usage: usage, NoConfig: true, Main: Main}

func Main(ctx context.Context, env *subcmd.Env) error {
	fs := flag.NewFlagSet("decode", flag.ContinueOnError)
	isHex := fs.Bool("hex", false, "payload is hex encoded")
	if err := fs.Parse(env.Args); err != nil {
		return err
	}
	var input []byte
	if fs.NArg() > 0 {
		for _, a := range fs.Args() {
			input = append(input, a...)
		}
	} else {
		var err error
		if input, err = io.ReadAll(os.Stdin); err != nil {
			return errors.Annotate(err, "read stdin")
		}
	}
	return Print(os.Stdout, input, *isHex)
}

func Print(w io.Writer, input []byte, isHex bool) error {
	b := bytes.Join(bytes.Fields(input), nil)
	if isHex {
		decoded := make([]byte, hex.DecodedLen(len(b)))
		n, err := hex.Decode(decoded, b)
		if err != nil {
			return errors.Annotate(err, "hex")
		}
		b = decoded[:n]
	}
	records, err := record.Decode(b)
	if err != nil {
		return err
	}
	for i, r := range records {
		fmt.Fprintf(w, "%d valid=%d type=%s number=%d digital=%d analog=%d\n",
			i, r.Valid, sensor.Type(r.Type), r.Number, r.Digital, r.Analog)
	}
	return nil
}
