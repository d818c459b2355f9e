// Command emote renders animated emotes from a picture and a catalog of
// shader effects.
//
// Usage:
//
//	emote [-v] [-config file] list
//	emote [-v] [-config file] render [-effect name]... [-all] [-o dir] [-show] image
//	emote [-v] [-config file] preview -effect name [-duration 2s] [-snapshot file.png] [-show] [image]
//	emote [-v] [-config file] config [-write]
//
// Rendered GIFs are written to the output directory as
// <image>-<effect>.gif. In iTerm2 results are also shown inline.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/gogpu/emote"
	"github.com/gogpu/emote/catalog"
	_ "github.com/gogpu/emote/gpu" // enable GPU rendering
	"github.com/gogpu/emote/internal/iterm2"
)

const usage = `Usage: emote [flags] command [command flags] [args]

Commands:
  list      list the effects of the catalog
  render    render effects of an image to GIF files
  preview   play an effect live and snapshot the last frame
  config    print or write the configuration

Flags:
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := &app{stdout: os.Stdout, stderr: os.Stderr}
	if err := a.run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "emote: %v\n", err)
		os.Exit(1)
	}
}

// lockedWriter serializes writes from render goroutines and the logger.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

type app struct {
	stdout io.Writer
	stderr io.Writer

	// engineOpts are applied after the options derived from the config.
	engineOpts []emote.EngineOption

	log        *slog.Logger
	conf       config
	configPath string
}

func (a *app) run(ctx context.Context, args []string) error {
	a.stderr = &lockedWriter{w: a.stderr}

	fs := flag.NewFlagSet("emote", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	verbose := fs.Bool("v", false, "verbose output")
	confPath := fs.String("config", configPath(), "config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	a.log = slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))
	emote.SetLogger(a.log)
	defer emote.SetLogger(nil)

	conf, err := readConfig(a.log, *confPath)
	if err != nil {
		return err
	}
	a.conf = conf
	a.configPath = *confPath

	if fs.NArg() == 0 {
		fs.Usage()
		return flag.ErrHelp
	}
	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "list":
		return a.list(rest)
	case "render":
		return a.render(ctx, rest)
	case "preview":
		return a.preview(ctx, rest)
	case "config":
		return a.configure(rest)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *app) flagSet(name, args string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: emote %s [flags] %s\n", name, args)
		fs.PrintDefaults()
	}
	return fs
}

func (a *app) notify(n emote.Notification) {
	switch {
	case n.Err != nil && n.Message != "":
		fmt.Fprintf(a.stderr, "%s: %s: %v\n", n.Title, n.Message, n.Err)
	case n.Err != nil:
		fmt.Fprintf(a.stderr, "%s: %v\n", n.Title, n.Err)
	default:
		fmt.Fprintf(a.stderr, "%s: %s\n", n.Title, n.Message)
	}
}

// openEngine opens the configured backend. Without one it tries the best
// backend and falls back to software rendering when no GPU can be opened.
func (a *app) openEngine() (*emote.Engine, error) {
	opts := []emote.EngineOption{
		emote.WithSize(a.conf.Size),
		emote.WithNotifier(emote.NotifierFunc(a.notify)),
	}
	if a.conf.Backend != "" {
		opts = append(opts, emote.WithBackend(a.conf.Backend))
	}
	opts = append(opts, a.engineOpts...)

	e, err := emote.NewEngine(opts...)
	if err != nil && a.conf.Backend == "" {
		a.log.Warn("no GPU backend, rendering in software", "err", err)
		e, err = emote.NewEngine(append(opts, emote.WithBackend("software"))...)
	}
	return e, err
}

func (a *app) catalog() (*emote.Catalog, error) {
	if a.conf.Catalog == "" {
		return emote.DefaultCatalog(), nil
	}
	return catalog.LoadFile(a.conf.Catalog)
}

// inline reports whether stdout can show images.
func (a *app) inline() bool {
	f, ok := a.stdout.(*os.File)
	return ok && iterm2.IsCompatible(f)
}

type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }

func (l *stringList) Set(s string) error {
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			*l = append(*l, v)
		}
	}
	return nil
}
