package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"thumbcrafter/internal/candidates"
	"thumbcrafter/internal/engine"
	"thumbcrafter/internal/export"
	"thumbcrafter/internal/media"
	"thumbcrafter/internal/mediatypes"
	"thumbcrafter/internal/startup"

	"golang.org/x/term"
)

// generator is the slice of the engine the command needs.
type generator interface {
	Generate(ctx context.Context, input engine.ProjectInput) engine.Result
}

type options struct {
	description string
	video       string
	preset      export.Preset
	format      export.Format
	quality     int
	outDir      string
	images      []string
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
	}()

	opts, err := parseArgs(os.Args[1:], os.Stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(2)
	}

	config, err := startup.ParseConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if config.VipsEnabled {
		if err := media.InitVips(); err == nil {
			defer media.ShutdownVips()
		}
	}

	eng := engine.New(media.NewDecoder(media.Config{
		FFmpegPath:  config.FFmpegPath,
		FFprobePath: config.FFprobePath,
		UseVips:     config.VipsEnabled,
	}), engine.Config{
		TempDir:       config.TempDir,
		MaxCandidates: config.MaxCandidates,
		MaxFrames:     config.MaxFrames,
		SeekTimeout:   config.SeekTimeout,
		PreviewWidth:  config.PreviewWidth,
		PreviewHeight: config.PreviewHeight,
		LoadWorkers:   config.LoadWorkers,
	})

	tty := term.IsTerminal(int(os.Stdout.Fd()))
	if err := run(ctx, eng, opts, os.Stdout, tty); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage(fs *flag.FlagSet) func() {
	return func() {
		w := fs.Output()
		fmt.Fprintln(w, "Thumbnail candidate generator")
		fmt.Fprintln(w, "")
		fmt.Fprintln(w, "Usage: thumbgen -d <description> -out <dir> [-video file] [options] [images...]")
		fmt.Fprintln(w, "")
		fmt.Fprintln(w, "Options:")
		fs.PrintDefaults()
		fmt.Fprintln(w, "")
		fmt.Fprintf(w, "Presets: %s\n", strings.Join(export.PresetNames(), ", "))
		fmt.Fprintln(w, "Engine settings are read from the same environment variables as the server.")
	}
}

func parseArgs(args []string, errOut io.Writer) (options, error) {
	fs := flag.NewFlagSet("thumbgen", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.Usage = usage(fs)

	var opts options
	var presetName, formatName string
	fs.StringVar(&opts.description, "d", "", "project description")
	fs.StringVar(&opts.video, "video", "", "video file; when set, images are ignored")
	fs.StringVar(&presetName, "preset", "", "export preset (default preview)")
	fs.StringVar(&formatName, "format", "jpeg", "output format: jpeg, png or webp")
	fs.IntVar(&opts.quality, "quality", export.DefaultQuality, "JPEG/WebP quality 1-100")
	fs.StringVar(&opts.outDir, "out", "", "output directory")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	opts.images = fs.Args()

	var err error
	if opts.preset, err = export.LookupPreset(presetName); err != nil {
		return options{}, err
	}
	if opts.format, err = export.ParseFormat(formatName); err != nil {
		return options{}, err
	}
	if opts.outDir == "" {
		return options{}, errors.New("-out is required")
	}
	if opts.video == "" && len(opts.images) == 0 {
		return options{}, errors.New("nothing to do: pass -video or at least one image")
	}
	return opts, nil
}

// readBlob loads a file from disk and validates it as the expected kind.
func readBlob(path string, kind mediatypes.FileType) (*mediatypes.MediaBlob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	blob := mediatypes.NewMediaBlob(filepath.Base(path), data, "")

	limits := mediatypes.DefaultLimits()
	if kind == mediatypes.FileTypeVideo {
		err = mediatypes.ValidateVideo(blob, limits)
	} else {
		err = mediatypes.ValidateImage(blob, limits)
	}
	if err != nil {
		return nil, err
	}
	return blob, nil
}

func buildInput(opts options) (engine.ProjectInput, error) {
	input := engine.ProjectInput{Description: opts.description}
	if opts.video != "" {
		blob, err := readBlob(opts.video, mediatypes.FileTypeVideo)
		if err != nil {
			return input, err
		}
		input.Video = blob
		return input, nil
	}
	for _, path := range opts.images {
		blob, err := readBlob(path, mediatypes.FileTypeImage)
		if err != nil {
			return input, err
		}
		input.Images = append(input.Images, blob)
	}
	return input, nil
}

type written struct {
	candidate candidates.Candidate
	path      string
	bytes     int
}

func run(ctx context.Context, gen generator, opts options, stdout io.Writer, table bool) error {
	input, err := buildInput(opts)
	if err != nil {
		return err
	}

	result := gen.Generate(ctx, input)
	if result.Superseded {
		return fmt.Errorf("run %s was superseded", result.RunID)
	}
	if len(result.Candidates) == 0 {
		return fmt.Errorf("no candidates generated from %s input", result.Branch)
	}

	if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	encodeOpts := export.Options{Preset: opts.preset.Name, Format: opts.format, Quality: opts.quality}
	var out []written
	for _, c := range result.Candidates {
		var buf bytes.Buffer
		if err := export.Encode(&buf, c.Preview, encodeOpts); err != nil {
			return fmt.Errorf("failed to encode %s: %w", c.ID, err)
		}
		path := filepath.Join(opts.outDir, c.ID+opts.format.Extension())
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		out = append(out, written{candidate: c, path: path, bytes: buf.Len()})
	}

	printSummary(stdout, result, out, table)
	return nil
}

func printSummary(w io.Writer, result engine.Result, out []written, table bool) {
	if !table {
		for _, f := range out {
			fmt.Fprintln(w, f.path)
		}
		return
	}

	fmt.Fprintf(w, "Run %s (%s): %d candidates\n\n", result.RunID, result.Branch, len(out))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tTITLE\tFILE\tSIZE")
	for _, f := range out {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n",
			f.candidate.ID, f.candidate.Kind, f.candidate.Title, f.path, f.bytes)
	}
	tw.Flush()
}
