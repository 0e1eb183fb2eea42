package diagnostics

import (
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Severity string

const (
	Info Severity = "info"
	Warn Severity = "warning"
	Err  Severity = "error"
)

// Diagnostic is a friendly report about a config file: what is wrong, where
// (Path is a JSON pointer prefixed with the file name) and what to do.
type Diagnostic struct {
	Severity       Severity       `json:"severity"`
	Code           string         `json:"code"`
	Path           string         `json:"path,omitempty"`
	Summary        string         `json:"summary"`
	Detail         string         `json:"detail,omitempty"`
	LikelyCauses   []string       `json:"likely_causes,omitempty"`
	SuggestedFixes []string       `json:"suggested_fixes,omitempty"`
	Evidence       map[string]any `json:"evidence,omitempty"`
}

func warn(code, path, summary, fix string) Diagnostic {
	d := Diagnostic{Severity: Warn, Code: code, Path: path, Summary: summary}
	if fix != "" {
		d.SuggestedFixes = []string{fix}
	}
	return d
}

func errorf(code, path, summary, fix string) Diagnostic {
	d := warn(code, path, summary, fix)
	d.Severity = Err
	return d
}

func info(code, path, summary, fix string) Diagnostic {
	d := warn(code, path, summary, fix)
	d.Severity = Info
	return d
}

// Counts returns the number of errors and warnings in ds.
func Counts(ds []Diagnostic) (errs, warns int) {
	for _, d := range ds {
		switch d.Severity {
		case Err:
			errs++
		case Warn:
			warns++
		}
	}
	return errs, warns
}

// Emit logs every diagnostic at its severity.
func Emit(tag string, ds []Diagnostic) {
	for _, d := range ds {
		var ev *zerolog.Event
		switch d.Severity {
		case Err:
			ev = log.Error()
		case Warn:
			ev = log.Warn()
		default:
			ev = log.Info()
		}
		ev = ev.Str("tag", tag).Str("code", d.Code).Str("path", d.Path)
		if len(d.SuggestedFixes) > 0 {
			ev = ev.Str("hint", strings.Join(d.SuggestedFixes, "; "))
		}
		ev.Msg(d.Summary)
	}
}

// Summary logs one line per validation run, including clean ones.
func Summary(tag, label string, ds []Diagnostic) {
	errs, warns := Counts(ds)
	if errs == 0 && warns == 0 {
		log.Info().Str("tag", tag).Str("file", label).Msg("validation OK (0 issues)")
		return
	}
	log.Warn().Str("tag", tag).Str("file", label).Int("errors", errs).Int("warnings", warns).
		Msg("validation issues found")
}
