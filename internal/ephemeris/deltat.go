package ephemeris

// DeltaT returns TT-UT in seconds for a decimal year, using the
// Espenak-Meeus polynomial fits.
func DeltaT(year float64) float64 {
	switch {
	case year >= 1700 && year < 1800:
		t := year - 1700
		return 8.83 + 0.1603*t - 0.0059285*t*t + 0.00013336*t*t*t - t*t*t*t/1174000
	case year >= 1800 && year < 1860:
		t := year - 1800
		return 13.72 - 0.332447*t + 0.0068612*pow(t, 2) + 0.0041116*pow(t, 3) -
			0.00037436*pow(t, 4) + 0.0000121272*pow(t, 5) - 0.0000001699*pow(t, 6) +
			0.000000000875*pow(t, 7)
	case year >= 1860 && year < 1900:
		t := year - 1860
		return 7.62 + 0.5737*t - 0.251754*pow(t, 2) + 0.01680668*pow(t, 3) -
			0.0004473624*pow(t, 4) + pow(t, 5)/233174
	case year >= 1900 && year < 1920:
		t := year - 1900
		return -2.79 + 1.494119*t - 0.0598939*pow(t, 2) + 0.0061966*pow(t, 3) - 0.000197*pow(t, 4)
	case year >= 1920 && year < 1941:
		t := year - 1920
		return 21.20 + 0.84493*t - 0.076100*pow(t, 2) + 0.0020936*pow(t, 3)
	case year >= 1941 && year < 1961:
		t := year - 1950
		return 29.07 + 0.407*t - pow(t, 2)/233 + pow(t, 3)/2547
	case year >= 1961 && year < 1986:
		t := year - 1975
		return 45.45 + 1.067*t - pow(t, 2)/260 - pow(t, 3)/718
	case year >= 1986 && year < 2005:
		t := year - 2000
		return 63.86 + 0.3345*t - 0.060374*pow(t, 2) + 0.0017275*pow(t, 3) +
			0.000651814*pow(t, 4) + 0.00002373599*pow(t, 5)
	case year >= 2005 && year < 2050:
		t := year - 2000
		return 62.92 + 0.32217*t + 0.005589*pow(t, 2)
	case year >= 2050 && year < 2150:
		u := (year - 1820) / 100
		return -20 + 32*u*u - 0.5628*(2150-year)
	default:
		u := (year - 1820) / 100
		return -20 + 32*u*u
	}
}

// TerrestrialTime converts a UT Julian Day to a Julian Ephemeris Day.
func TerrestrialTime(jd float64) float64 {
	year := 2000 + (jd-J2000)/365.25
	return jd + DeltaT(year)/86400
}

func pow(x float64, n int) float64 {
	r := 1.0
	for range n {
		r *= x
	}
	return r
}
