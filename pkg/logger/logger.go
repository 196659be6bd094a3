// Package logger owns the process-wide zerolog logger of the auth service.
//
// main calls Init exactly once; packages that are not handed a logger use
// Get or Component.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Options controls logger behaviour at initialisation time.
type Options struct {
	// Level is one of trace, debug, info, warn, error. Anything else means info.
	Level string
	// Pretty writes coloured console lines instead of JSON.
	Pretty bool
	// Service is added to every line as "service".
	Service string
	// Output defaults to os.Stdout.
	Output io.Writer
}

var (
	once sync.Once
	root *zerolog.Logger
)

// Init builds the shared logger and sets the global level. Later calls return
// the logger built by the first one.
func Init(opts Options) zerolog.Logger {
	once.Do(func() {
		l := New(opts)
		zerolog.SetGlobalLevel(parseLevel(opts.Level))
		root = &l
	})
	return *root
}

// New returns an independent logger; the shared one is left alone.
func New(opts Options) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	w := opts.Output
	if w == nil {
		w = os.Stdout
	}
	if opts.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}

	fields := zerolog.New(w).Level(parseLevel(opts.Level)).With().Timestamp()
	if opts.Service != "" {
		fields = fields.Str("service", opts.Service)
	}
	return fields.Logger()
}

// Get returns the shared logger and panics when Init has not run.
func Get() zerolog.Logger {
	if root == nil {
		panic("logger: Get() called before Init()")
	}
	return *root
}

// Component is Get with a "component" field, one per subsystem.
func Component(name string) zerolog.Logger {
	return Get().With().Str("component", name).Logger()
}

// Reset forgets the shared logger. Tests only.
func Reset() {
	once = sync.Once{}
	root = nil
}

func parseLevel(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || lvl == zerolog.NoLevel || lvl > zerolog.ErrorLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
