package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/deepaksharma/otel-trace-access/internal/otlp"
	"github.com/deepaksharma/otel-trace-access/internal/snapshot"
)

func newConvertCommand() *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "convert IN OUT",
		Short: "Convert a span collection between formats",
		Long:  "Convert a span collection between formats. Use - for stdin or stdout.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			inFormat, err := snapshot.ParseFormat(from)
			if err != nil {
				return err
			}
			outFormat, err := snapshot.ParseFormat(to)
			if err != nil {
				return err
			}
			if !outFormat.Writable() {
				return fmt.Errorf("%w: %s cannot be written", snapshot.ErrUnsupportedFormat, outFormat)
			}
			return convert(cmd.InOrStdin(), cmd.OutOrStdout(), args[0], inFormat, args[1], outFormat)
		},
	}
	cmd.Flags().StringVar(&from, "from", string(snapshot.FormatOTLPJSON), "input format")
	cmd.Flags().StringVar(&to, "to", string(snapshot.FormatOTLPJSON), "output format")
	return cmd
}

func convert(stdin io.Reader, stdout io.Writer, in string, inFormat snapshot.Format, out string, outFormat snapshot.Format) error {
	if (in == snapshot.Stdio && inFormat == snapshot.FormatOTLPBolt) || (out == snapshot.Stdio && outFormat == snapshot.FormatOTLPBolt) {
		return fmt.Errorf("%w: %s needs a file path", snapshot.ErrUnsupportedFormat, snapshot.FormatOTLPBolt)
	}

	var view otlp.SpanCollection
	switch {
	case inFormat == snapshot.FormatOTLPBolt:
		td, err := snapshot.Load(in, inFormat)
		if err != nil {
			return err
		}
		view = td.Collection()
	case in == snapshot.Stdio:
		var err error
		if view, err = snapshot.Read(bufio.NewReader(stdin), inFormat); err != nil {
			return err
		}
	default:
		file, err := os.Open(in)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", in, err)
		}
		defer file.Close()
		if view, err = snapshot.Read(bufio.NewReader(file), inFormat); err != nil {
			return err
		}
	}

	if out == snapshot.Stdio {
		w := bufio.NewWriter(stdout)
		if err := snapshot.Encode(w, outFormat, view); err != nil {
			return err
		}
		return w.Flush()
	}
	return snapshot.Write(out, outFormat, view)
}

func newListFormatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list-formats",
		Short: "List the supported span collection formats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, f := range snapshot.Formats() {
				mode := "read/write"
				if !f.Writable() {
					mode = "read"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", f, mode, f.Description())
			}
			return w.Flush()
		},
	}
}
