package logging

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options configures process-wide logging.
type Options struct {
	Level   string // trace|debug|info|warn|error
	File    string // optional append-only sink
	NoColor bool
}

// Run is the per-process logging context: a correlation id and a session counter.
// It is constructed once in main and handed to the components that need it.
type Run struct {
	ID      string
	Started time.Time

	seq atomic.Uint64
}

// NewRun returns a Run with a short random id.
func NewRun() *Run {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return &Run{ID: id[:8], Started: time.Now()}
}

// SessionID returns prefix_<YYYYMMDDThhmmssZ>_<NNNN>, unique within the run.
func (r *Run) SessionID(prefix string) string {
	n := r.seq.Add(1) - 1
	return fmt.Sprintf("%s_%s_%04d", prefix, time.Now().UTC().Format("20060102T150405Z"), n)
}

// Init installs the global zerolog logger. The returned closer flushes the file sink.
func Init(opts Options) (*Run, io.Closer, error) {
	zerolog.TimeFieldFormat = time.RFC3339
	lvl := zerolog.InfoLevel
	if opts.Level != "" {
		l, err := zerolog.ParseLevel(opts.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("log level %q: %w", opts.Level, err)
		}
		lvl = l
	}
	zerolog.SetGlobalLevel(lvl)

	console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen, NoColor: opts.NoColor}
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			log.Logger = log.Output(console)
			log.Warn().Err(err).Str("path", opts.File).Msg("failed to open log file sink; console only")
		} else {
			log.Logger = log.Output(zerolog.MultiLevelWriter(console, f))
			closer = f
		}
	} else {
		log.Logger = log.Output(console)
	}

	run := NewRun()
	log.Logger = log.With().Str("run", run.ID).Logger()
	return run, closer, nil
}

// PipeLines forwards every line of r into l under tag until r is exhausted.
// Child process stdout/stderr are routed through here so they share the log format.
func PipeLines(l zerolog.Logger, r io.Reader, tag string, warn bool) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}
		ev := l.Info()
		if warn {
			ev = l.Warn()
		}
		ev.Str("tag", tag).Msg(line)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
