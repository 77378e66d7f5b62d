package ephemeris

// Lunar orbit points, mean equinox of date. Polynomials in Julian centuries
// of TT from J2000.

func meanNode(jde float64) float64 {
	t := centuries(jde)
	return norm360(125.0445479 - 1934.1362891*t + 0.0020754*t*t + t*t*t/467441 - t*t*t*t/60616000)
}

// trueNode adds the main periodic terms of the node's oscillation.
func trueNode(jde float64) float64 {
	t := centuries(jde)
	d := 297.8501921 + 445267.1114034*t - 0.0018819*t*t + t*t*t/545868 - t*t*t*t/113065000
	m := 357.5291092 + 35999.0502909*t - 0.0001536*t*t + t*t*t/24490000
	mp := 134.9633964 + 477198.8675055*t + 0.0087414*t*t + t*t*t/69699 - t*t*t*t/14712000
	f := 93.2720950 + 483202.0175233*t - 0.0036539*t*t - t*t*t/3526000 + t*t*t*t/863310000

	return norm360(meanNode(jde) -
		1.4979*sind(2*(d-f)) -
		0.1500*sind(m) -
		0.1226*sind(2*d) +
		0.1176*sind(2*f) -
		0.0801*sind(2*(mp-f)))
}

// meanApogee is the mean lunar apogee (Black Moon Lilith).
func meanApogee(jde float64) float64 {
	t := centuries(jde)
	perigee := 83.3532465 + 4069.0137287*t - 0.0103200*t*t - t*t*t/80053 + t*t*t*t/18999000
	return norm360(perigee + 180)
}
