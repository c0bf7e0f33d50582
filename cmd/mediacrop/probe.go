package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/heimdex/mediacrop/internal/engine"
	"github.com/heimdex/mediacrop/internal/timecode"
)

func newProbeCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "probe FILE",
		Short: "Show container and stream metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			prober, err := engine.NewFFprobe(cfg.FFprobePath())
			if err != nil {
				return err
			}
			pr, err := prober.Probe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(pr)
			}
			writeProbe(cmd.OutOrStdout(), pr)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print raw metadata as JSON")
	return cmd
}

func writeProbe(w io.Writer, pr *engine.ProbeResult) {
	p := newPainter(w)

	duration := p.warn("unknown")
	if d, ok := pr.Duration(); ok {
		duration = timecode.FormatSeconds(d)
	}

	fmt.Fprintf(w, "Format:   %s\n", valueOr(pr.Format.FormatName, "unknown"))
	fmt.Fprintf(w, "Duration: %s\n", duration)
	fmt.Fprintf(w, "Size:     %s\n", formatSizeField(pr.Format.Size))
	fmt.Fprintf(w, "Bit rate: %s\n", formatBitRate(pr.Format.BitRate))
	fmt.Fprintf(w, "Streams:  %d video, %d audio\n", pr.VideoStreams(), pr.AudioStreams())

	if len(pr.Streams) == 0 {
		return
	}

	rows := make([][]string, 0, len(pr.Streams))
	for _, s := range pr.Streams {
		res := ""
		if s.Width > 0 && s.Height > 0 {
			res = fmt.Sprintf("%dx%d", s.Width, s.Height)
		}
		rows = append(rows, []string{
			strconv.Itoa(s.Index),
			s.CodecType,
			s.CodecName,
			res,
			formatStreamDuration(s.Duration),
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"#", "Type", "Codec", "Resolution", "Duration"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight},
	))
}

func humanizeBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

func formatSizeField(raw string) string {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return "unknown"
	}
	return humanizeBytes(n)
}

func formatBitRate(raw string) string {
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || n == 0 {
		return "unknown"
	}
	return humanize.SI(float64(n), "bit/s")
}

func formatStreamDuration(raw string) string {
	d, err := strconv.ParseFloat(raw, 64)
	if err != nil || d < 0 {
		return ""
	}
	return timecode.FormatSeconds(d)
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
