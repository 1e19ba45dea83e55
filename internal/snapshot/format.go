// Package snapshot reads and writes span collections as files in any of the
// supported encodings, including a bolt database of OTLP batches.
package snapshot

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"go.uber.org/multierr"

	"github.com/deepaksharma/otel-trace-access/internal/otlp"
	"github.com/deepaksharma/otel-trace-access/internal/otlp/otlpjson"
	"github.com/deepaksharma/otel-trace-access/internal/otlp/otlpproto"
	"github.com/deepaksharma/otel-trace-access/internal/otlp/ss4o"
)

// Format names a span collection encoding.
type Format string

const (
	FormatSS4OBare  Format = "ss4o-bare"
	FormatSS4O      Format = "ss4o"
	FormatOTLPJSON  Format = "otlp-json"
	FormatOTLPProto Format = "otlp-proto"
	FormatOTLPBolt  Format = "otlp-bolt"
)

// Stdio is the path that stands for stdin or stdout.
const Stdio = "-"

// ErrUnsupportedFormat is returned for unknown formats and for formats that
// cannot be used in the requested direction.
var ErrUnsupportedFormat = errors.New("unsupported format")

type formatInfo struct {
	description string
	writable    bool
	stream      bool
}

var formats = map[Format]formatInfo{
	FormatSS4OBare:  {description: "JSON list of search index span documents", stream: true},
	FormatSS4O:      {description: "search response with hits.hits[]._source span documents", stream: true},
	FormatOTLPJSON:  {description: "OTLP-JSON TracesData", writable: true, stream: true},
	FormatOTLPProto: {description: "OTLP Protobuf TracesData", writable: true, stream: true},
	FormatOTLPBolt:  {description: "bolt database of OTLP Protobuf batches", writable: true},
}

// Formats lists every known format, sorted by name.
func Formats() []Format {
	out := make([]Format, 0, len(formats))
	for f := range formats {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	f := Format(s)
	if _, ok := formats[f]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
	return f, nil
}

// Description returns a one line explanation of the format.
func (f Format) Description() string { return formats[f].description }

// Writable reports whether collections can be written in the format.
func (f Format) Writable() bool { return formats[f].writable }

// Read decodes a collection from r. The bolt format needs a file and is
// only available through Load.
func Read(r io.Reader, f Format) (otlp.SpanCollection, error) {
	switch f {
	case FormatSS4OBare:
		return ss4o.ParseBare(r)
	case FormatSS4O:
		return ss4o.ParseResponse(r)
	case FormatOTLPJSON:
		return otlpjson.Parse(r)
	case FormatOTLPProto:
		b, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read input: %w", err)
		}
		return otlpproto.Unmarshal(b)
	default:
		return nil, fmt.Errorf("%w: cannot stream %q", ErrUnsupportedFormat, f)
	}
}

// Encode writes c to w. The bolt format needs a file and is only available
// through Write.
func Encode(w io.Writer, f Format, c otlp.SpanCollection) error {
	switch f {
	case FormatOTLPJSON:
		return otlp.WriteJSON(w, c)
	case FormatOTLPProto:
		b, err := otlp.MarshalProto(c)
		if err != nil {
			return err
		}
		_, err = w.Write(b)
		return err
	default:
		return fmt.Errorf("%w: cannot encode to %q", ErrUnsupportedFormat, f)
	}
}

// Load reads and materializes the collection stored at path. Stdio reads
// stdin.
func Load(path string, f Format) (*otlp.TracesData, error) {
	if f == FormatOTLPBolt {
		store, err := OpenBoltStore(path, true)
		if err != nil {
			return nil, err
		}
		td, err := store.Load()
		return td, multierr.Append(err, store.Close())
	}

	if path == Stdio {
		return materialize(Read(bufio.NewReader(os.Stdin), f))
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()
	return materialize(Read(bufio.NewReader(file), f))
}

func materialize(c otlp.SpanCollection, err error) (*otlp.TracesData, error) {
	if err != nil {
		return nil, err
	}
	return otlp.Materialize(c)
}

// Write stores c at path. Stdio writes to stdout. Bolt files gain one batch
// per call; other formats replace the file.
func Write(path string, f Format, c otlp.SpanCollection) (err error) {
	if !f.Writable() {
		return fmt.Errorf("%w: cannot write %q", ErrUnsupportedFormat, f)
	}
	if f == FormatOTLPBolt {
		store, err := OpenBoltStore(path, false)
		if err != nil {
			return err
		}
		return multierr.Append(store.Append(c), store.Close())
	}

	if path == Stdio {
		return Encode(os.Stdout, f, c)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer multierr.AppendInvoke(&err, multierr.Close(file))

	w := bufio.NewWriter(file)
	if err := Encode(w, f, c); err != nil {
		return err
	}
	return w.Flush()
}
