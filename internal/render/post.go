package render

import "math"

// FilmicToneMap applies exposure, an ACES curve and output gamma. It reads
// "u_exposure" (EV, default 0) and "u_gamma" (default 2.2; 1 disables).
func FilmicToneMap(buf []Color, u *Uniforms) {
	exposure := float32(math.Pow(2.0, u.Get("u_exposure", 0)))
	gamma := u.Get("u_gamma", 2.2)
	if gamma <= 0 {
		gamma = 2.2
	}
	ig := 1.0 / gamma

	for i := range buf {
		c := Color{
			R: acesApprox(buf[i].R * exposure),
			G: acesApprox(buf[i].G * exposure),
			B: acesApprox(buf[i].B * exposure),
		}
		if gamma != 1.0 {
			c.R, c.G, c.B = powf(c.R, ig), powf(c.G, ig), powf(c.B, ig)
		}
		buf[i] = Color{R: clamp01(c.R), G: clamp01(c.G), B: clamp01(c.B)}
	}
}

func clamp01(x float32) float32 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func powf(x float32, p float64) float32 {
	return float32(math.Pow(float64(x), p))
}

// Approximate ACES filmic curve (Narkowicz 2015).
func acesApprox(x float32) float32 {
	const a, b, c, d, e = 2.51, 0.03, 2.43, 0.59, 0.14
	return clamp01((x * (a*x + b)) / (x*(c*x+d) + e))
}
