package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/heimdex/mediacrop/internal/editor"
	"github.com/heimdex/mediacrop/internal/engine"
	"github.com/heimdex/mediacrop/internal/media"
	"github.com/heimdex/mediacrop/internal/timecode"
)

type cutOptions struct {
	start string
	end   string
	out   string
}

func newCutCommand(ctx *commandContext) *cobra.Command {
	var opts cutOptions

	cmd := &cobra.Command{
		Use:   "cut FILE",
		Short: "Trim a file without opening the editor",
		Long: "Trim a local MP3 or MP4 file. --start and --end take the editor's\n" +
			"time format, HH:MM:SS or HH:MM:SS.cc.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCut(cmd.Context(), ctx, args[0], opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&opts.start, "start", "", "Range start (default: beginning of file)")
	cmd.Flags().StringVar(&opts.end, "end", "", "Range end (default: end of file)")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Output path (default: cropped_<name> next to the input)")
	return cmd
}

func runCut(ctx context.Context, cc *commandContext, input string, opts cutOptions, stdout, stderr io.Writer) error {
	cfg, err := cc.ensureConfig()
	if err != nil {
		return err
	}
	logger := cc.cliLogger(stderr)

	info, err := os.Stat(input)
	if err != nil {
		return fmt.Errorf("cannot read input: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", input)
	}

	src, err := localSource(input, info.Size())
	if err != nil {
		return err
	}

	out := opts.out
	if out == "" {
		out = filepath.Join(filepath.Dir(input), src.OutputName())
	}
	if sameFile(input, out) {
		return errors.New("output would overwrite the input")
	}

	prober, err := engine.NewFFprobe(cfg.FFprobePath())
	if err != nil {
		return err
	}
	pr, err := prober.Probe(ctx, input)
	if err != nil {
		return err
	}
	duration, ok := pr.Duration()
	if !ok {
		return errors.New("cannot determine media duration")
	}

	rng, err := planCut(duration, opts.start, opts.end)
	if err != nil {
		return err
	}

	workDir, err := os.MkdirTemp("", "mediacrop-")
	if err != nil {
		return fmt.Errorf("cannot create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	ffmpeg := engine.NewFFmpeg(engine.Config{
		BinaryPath:  cfg.FFmpegPath(),
		WorkDir:     workDir,
		InitTimeout: cfg.EngineInitTimeout(),
		Logger:      logger,
	})
	if err := ffmpeg.Initialize(ctx); err != nil {
		return err
	}

	var progress engine.ProgressFunc
	var bar *progressbar.ProgressBar
	if isTerminal(stderr) {
		bar = newCutProgressBar(stderr)
		progress = func(percent int) { _ = bar.Set(percent) }
	}

	err = ffmpeg.Cut(ctx, engine.CutRequest{
		InputPath:  input,
		OutputPath: out,
		Start:      rng.Start,
		Duration:   rng.Length(),
		Ext:        src.Ext(),
	}, progress)
	if bar != nil {
		_ = bar.Clear()
	}

	p := newPainter(stdout)
	if err != nil {
		fmt.Fprintln(stdout, p.fail("crop failed"))
		return err
	}

	size := int64(0)
	if st, statErr := os.Stat(out); statErr == nil {
		size = st.Size()
	}
	fmt.Fprintf(stdout, "%s %s [%s - %s] %s\n",
		p.ok("wrote"),
		out,
		timecode.FormatSeconds(rng.Start),
		timecode.FormatSeconds(rng.End),
		humanizeBytes(size),
	)
	if note := keyframeNote(src.Kind); note != "" {
		fmt.Fprintln(stdout, p.warn(note))
	}
	return nil
}

// keyframeNote warns that a stream copy starts video at a keyframe.
func keyframeNote(kind media.Kind) string {
	if kind != media.KindVideo {
		return ""
	}
	return "note: streams are copied without re-encoding, so video may start at the keyframe just before the chosen start"
}

// planCut applies start and end the way the editor's text fields do and
// returns the resulting range.
func planCut(duration float64, start, end string) (editor.Range, error) {
	sel := editor.NewSelector()
	sel.Reset(duration)

	if strings.TrimSpace(start) != "" {
		if err := sel.SetManualTime(editor.EndpointStart, start); err != nil {
			return editor.Range{}, fmt.Errorf("--start: %w", err)
		}
	}
	if strings.TrimSpace(end) != "" {
		if err := sel.SetManualTime(editor.EndpointEnd, end); err != nil {
			return editor.Range{}, fmt.Errorf("--end: %w", err)
		}
	}

	rng := sel.Range()
	if rng.Length() <= 0 {
		return editor.Range{}, editor.ErrEmptyRange
	}
	return rng, nil
}

// localSource describes a file on disk without copying it.
func localSource(path string, size int64) (media.SourceFile, error) {
	name := filepath.Base(path)
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
	kind, err := media.DetectKind(name, mimeType)
	if err != nil {
		return media.SourceFile{}, err
	}
	return media.SourceFile{
		Path: path,
		Name: name,
		Size: size,
		MIME: mimeType,
		Kind: kind,
	}, nil
}

func sameFile(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return a == b
	}
	if absA == absB {
		return true
	}
	infoA, errA := os.Stat(absA)
	infoB, errB := os.Stat(absB)
	return errA == nil && errB == nil && os.SameFile(infoA, infoB)
}

func newCutProgressBar(w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(100,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("cropping"),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionClearOnFinish(),
	)
}
