package params

import (
	"sort"
	"strings"
)

// OSCRoute is a resolved osc.mappings entry.
type OSCRoute struct {
	Param      string
	Min        *float32
	Max        *float32
	Smooth     *float32
	Normalized bool
}

// OSCResult describes an applied OSC update.
type OSCResult struct {
	Name       string
	Value      float32
	Normalized bool
}

// OSCTable maps full OSC addresses to params and carries the fallback
// /<prefix>/param/<name> and /<prefix>/raw/<name> routes.
type OSCTable struct {
	Prefix     string
	Normalized bool
	Routes     map[string]OSCRoute
}

// NewOSCTable resolves mapping addresses against the prefix:
// "/prefix/..." is kept, "/param/x" and "/raw/x" are joined to the prefix,
// other absolute addresses are kept, and relative ones are joined with "/".
func NewOSCTable(cfg OSCConfig) *OSCTable {
	t := &OSCTable{
		Prefix:     strings.TrimRight(cfg.Prefix, "/"),
		Normalized: cfg.Normalized,
		Routes:     map[string]OSCRoute{},
	}
	for _, m := range cfg.Mappings {
		a := strings.TrimSpace(m.Addr)
		if a == "" {
			continue
		}
		var full string
		switch {
		case strings.HasPrefix(a, t.Prefix):
			full = a
		case strings.HasPrefix(a, "/param/") || strings.HasPrefix(a, "/raw/"):
			full = t.Prefix + a
		case strings.HasPrefix(a, "/"):
			full = a
		default:
			full = t.Prefix + "/" + a
		}

		norm := cfg.Normalized
		switch strings.ToLower(m.Mode) {
		case "raw":
			norm = false
		case "normalized", "norm", "param":
			norm = true
		}
		t.Routes[full] = OSCRoute{
			Param:      m.Param,
			Min:        m.Min,
			Max:        m.Max,
			Smooth:     m.Smooth,
			Normalized: norm,
		}
	}
	return t
}

// Addresses returns the configured route addresses, sorted.
func (t *OSCTable) Addresses() []string {
	out := make([]string, 0, len(t.Routes))
	for a := range t.Routes {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Fallback splits addr into a fallback route. ok is false when addr is not
// /<prefix>/param/<name> or /<prefix>/raw/<name> or the name is empty.
func (t *OSCTable) Fallback(addr string) (name string, normalized, ok bool) {
	addr = strings.TrimSpace(addr)
	if rest, found := strings.CutPrefix(addr, t.Prefix+"/param/"); found {
		name, normalized = rest, t.Normalized
	} else if rest, found := strings.CutPrefix(addr, t.Prefix+"/raw/"); found {
		name = rest
	} else {
		return "", false, false
	}
	name = strings.Trim(name, "/")
	return name, normalized, name != ""
}

// numeric extracts the first OSC argument as a float. Only float32, float64,
// int32 and int64 are accepted.
func numeric(args []any) (float32, bool) {
	if len(args) == 0 {
		return 0, false
	}
	switch v := args[0].(type) {
	case float32:
		return v, true
	case float64:
		return float32(v), true
	case int32:
		return float32(v), true
	case int64:
		return float32(v), true
	default:
		return 0, false
	}
}
