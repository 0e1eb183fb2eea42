package render

// Easing curves for crossfades, applied to a progress value in [0,1].
const (
	EaseLinear = "linear"
	EaseSmooth = "smooth" // smoothstep
	EaseCubic  = "cubic"  // smootherstep
)

// Ease clamps x to [0,1] and shapes it. Unknown kinds are linear.
func Ease(kind string, x float64) float64 {
	x = min(max(x, 0), 1)
	switch kind {
	case EaseSmooth:
		return x * x * (3 - 2*x)
	case EaseCubic:
		return x * x * x * (x*(x*6-15) + 10)
	default:
		return x
	}
}
