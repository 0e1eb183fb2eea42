package ws

import (
	"fmt"
	"sort"
	"strings"

	"github.com/coreman2200/shadecore/internal/control"
	"github.com/coreman2200/shadecore/internal/output"
)

const source = "ws"

// ParseControl maps one /control message to actions. Several keys in one
// message yield several actions in a fixed order; unusable keys are reported
// in the error while the usable ones are still returned.
//
//	{"param": "u_gain", "value": 1.2}   {"param": "u_gain", "norm": 0.5}
//	{"output": "stream"}                {"preview": "fill"}
//	{"profile": "next"|"prev"|name}     {"record": "toggle"|"start"|"stop"}
//	{"shader": "next"|"prev"}           {"quit": true}
func ParseControl(msg map[string]any) ([]control.Action, error) {
	var out []control.Action
	var probs []string

	if name, ok := msg["param"].(string); ok {
		switch {
		case isNumber(msg["value"]):
			out = append(out, control.Action{Kind: control.SetParam, Name: name, Value: number(msg["value"]), Source: source})
		case isNumber(msg["norm"]):
			out = append(out, control.Action{Kind: control.SetParamNorm, Name: name, Value: number(msg["norm"]), Source: source})
		default:
			probs = append(probs, "param needs a numeric value or norm")
		}
	}
	if v, ok := msg["output"].(string); ok {
		if m, ok := output.ParseMode(v); ok {
			out = append(out, control.Action{Kind: control.SetOutput, Mode: m, Source: source})
		} else {
			probs = append(probs, fmt.Sprintf("unknown output mode %q", v))
		}
	}
	if v, ok := msg["preview"].(string); ok {
		if m, ok := output.ParseScaleMode(v); ok {
			out = append(out, control.Action{Kind: control.SetPreviewScale, Scale: m, Source: source})
		} else {
			probs = append(probs, fmt.Sprintf("unknown preview scale %q", v))
		}
	}
	if v, ok := msg["profile"].(string); ok {
		switch v {
		case "next":
			out = append(out, control.Action{Kind: control.ProfileNext, Source: source})
		case "prev":
			out = append(out, control.Action{Kind: control.ProfilePrev, Source: source})
		case "":
			probs = append(probs, "empty profile name")
		default:
			out = append(out, control.Action{Kind: control.ProfileSet, Name: v, Source: source})
		}
	}
	if v, ok := msg["record"].(string); ok {
		kind := map[string]control.Kind{"toggle": control.RecordToggle, "start": control.RecordStart, "stop": control.RecordStop}[v]
		if kind == control.None {
			probs = append(probs, fmt.Sprintf("unknown record command %q", v))
		} else {
			out = append(out, control.Action{Kind: kind, Source: source})
		}
	}
	if v, ok := msg["shader"].(string); ok {
		switch v {
		case "next":
			out = append(out, control.Action{Kind: control.ShaderNext, Source: source})
		case "prev":
			out = append(out, control.Action{Kind: control.ShaderPrev, Source: source})
		default:
			probs = append(probs, fmt.Sprintf("unknown shader command %q", v))
		}
	}
	if q, ok := msg["quit"].(bool); ok && q {
		out = append(out, control.Action{Kind: control.Quit, Source: source})
	}

	if len(out) == 0 && len(probs) == 0 {
		keys := make([]string, 0, len(msg))
		for k := range msg {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		probs = append(probs, fmt.Sprintf("no known keys in %v", keys))
	}
	if len(probs) > 0 {
		return out, fmt.Errorf("control: %s", strings.Join(probs, "; "))
	}
	return out, nil
}

func isNumber(v any) bool {
	_, ok := v.(float64)
	return ok
}

func number(v any) float32 {
	f, _ := v.(float64)
	return float32(f)
}
