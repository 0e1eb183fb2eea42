package render

// Mix blends two framebuffers into dst: alpha 0 is all a, 1 is all b.
func Mix(dst, a, b []Color, alpha float64) {
	switch {
	case alpha <= 0:
		copy(dst, a)
		return
	case alpha >= 1:
		copy(dst, b)
		return
	}
	bf := float32(alpha)
	af := 1 - bf
	for i := range dst {
		dst[i] = Color{
			R: a[i].R*af + b[i].R*bf,
			G: a[i].G*af + b[i].G*bf,
			B: a[i].B*af + b[i].B*bf,
		}
	}
}
