package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/gogpu/emote"
	"github.com/gogpu/emote/internal/iterm2"
)

func (a *app) list(args []string) error {
	fs := a.flagSet("list", "")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cat, err := a.catalog()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tDURATION\tFRAMES\tTRANSPARENT")
	for _, e := range cat.Effects() {
		key := "-"
		if c := e.Transparent; c != nil {
			key = fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
		}
		fmt.Fprintf(tw, "%s\t%.3fs\t%d\t%s\n", e.Name, e.Duration, emote.FrameCount(e.Duration), key)
	}
	return tw.Flush()
}

func (a *app) render(ctx context.Context, args []string) error {
	fs := a.flagSet("render", "image")
	var effects stringList
	fs.Var(&effects, "effect", "effect to render, repeatable or comma separated")
	all := fs.Bool("all", false, "render every effect of the catalog")
	outDir := fs.String("o", a.conf.OutputDir, "output directory")
	show := fs.Bool("show", false, "show results inline even when the terminal is not detected as iTerm2")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("render: expected one image")
	}

	cat, err := a.catalog()
	if err != nil {
		return err
	}
	names := []string(effects)
	if *all {
		names = cat.Names()
	}
	if len(names) == 0 {
		return errors.New("render: no effect, use -effect or -all")
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}

	e, err := a.openEngine()
	if err != nil {
		return err
	}
	defer e.Close()
	ctrl := emote.NewController(e,
		emote.WithCatalog(cat),
		emote.WithEncoderWorkers(a.conf.EncoderWorkers),
		emote.WithPaletteSize(a.conf.PaletteSize))
	defer ctrl.Close()

	if err := a.upload(ctx, ctrl, fs.Arg(0)); err != nil {
		return err
	}

	inline := *show || a.inline()
	var errs []error
	for _, name := range names {
		art, err := renderOne(ctx, ctrl, name)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			a.log.Error("render failed", "effect", name, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		path := filepath.Join(*outDir, art.Name())
		if err := writeArtifact(path, art); err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "%s\t%d frames\t%d bytes\n", path, art.Frames(), art.Len())
		if inline {
			if err := iterm2.File(a.stdout, art.Name(), art.Bytes()); err != nil {
				return err
			}
		}
	}
	return errors.Join(errs...)
}

// upload binds the image at path, or the fallback image when it cannot be
// decoded.
func (a *app) upload(ctx context.Context, ctrl *emote.Controller, path string) error {
	src, err := emote.LoadSourceImage(path, a.conf.Size)
	if err != nil {
		return ctrl.ReportUploadError(ctx, err)
	}
	return ctrl.UploadSource(ctx, src)
}

func renderOne(ctx context.Context, ctrl *emote.Controller, name string) (*emote.Artifact, error) {
	if err := ctrl.SelectEffect(ctx, name); err != nil {
		return nil, err
	}
	return ctrl.Wait(ctx)
}

func writeArtifact(path string, art *emote.Artifact) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := art.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (a *app) preview(ctx context.Context, args []string) error {
	fs := a.flagSet("preview", "[image]")
	name := fs.String("effect", "", "effect to play")
	duration := fs.Duration("duration", 2*time.Second, "how long to play")
	snapshot := fs.String("snapshot", "", "write the last frame to this PNG file")
	show := fs.Bool("show", false, "show the last frame inline even when the terminal is not detected as iTerm2")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" || fs.NArg() > 1 {
		fs.Usage()
		return errors.New("preview: expected -effect and at most one image")
	}

	cat, err := a.catalog()
	if err != nil {
		return err
	}
	effect, ok := cat.Get(*name)
	if !ok {
		return fmt.Errorf("%w: %q", emote.ErrUnknownEffect, *name)
	}

	e, err := a.openEngine()
	if err != nil {
		return err
	}
	defer e.Close()
	p := emote.NewPreview(e, emote.WithRate(a.conf.PreviewRate))
	defer p.Close()

	if err := p.SetEffect(ctx, effect); err != nil {
		return err
	}
	src := emote.FallbackImage(e.Size())
	if fs.NArg() == 1 {
		loaded, err := emote.LoadSourceImage(fs.Arg(0), e.Size())
		if err != nil {
			a.notify(emote.Notification{Title: emote.TitleUploadFailed, Err: err})
		} else {
			src = loaded
		}
	}
	if err := p.SetImage(ctx, src); err != nil {
		return err
	}

	runCtx, cancel := context.WithTimeout(ctx, *duration)
	err = p.Run(runCtx)
	cancel()
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// One more tick so there is a frame even for a zero duration.
	if err := p.Tick(ctx); err != nil {
		return err
	}
	last, err := p.Snapshot(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%s\t%d frames\t%.2fs\n", effect.Name, p.Ticks(), p.Time())

	if *snapshot != "" {
		if err := writePNG(*snapshot, last); err != nil {
			return err
		}
	}
	if *show || a.inline() {
		return iterm2.Image(a.stdout, last)
	}
	return nil
}

func writePNG(path string, m image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, m); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (a *app) configure(args []string) error {
	fs := a.flagSet("config", "")
	write := fs.Bool("write", false, "write the effective configuration to the config file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *write {
		if err := writeConfig(a.configPath, a.conf); err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, a.configPath)
		return nil
	}
	return toml.NewEncoder(a.stdout).Encode(a.conf)
}
