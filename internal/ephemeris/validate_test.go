package ephemeris

import (
	"math"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/natal-cli/internal/model"
)

func TestValidate(t *testing.T) {
	req := miamiRequest()

	require.NoError(t, Validate(req, synthesize(req)))

	tests := []struct {
		name   string
		mutate func(*Result)
	}{
		{"duplicate body", func(r *Result) { r.Bodies[1].Body = r.Bodies[0].Body }},
		{"unexpected body", func(r *Result) { r.Bodies[0].Body = model.Ascendant }},
		{"longitude out of range", func(r *Result) { r.Bodies[0].Longitude = 360 }},
		{"negative longitude", func(r *Result) { r.Bodies[0].Longitude = -1 }},
		{"nan speed", func(r *Result) { r.Bodies[0].Speed = math.NaN() }},
		{"nan midheaven", func(r *Result) { r.Midheaven = math.NaN() }},
		{"house numbering", func(r *Result) { r.Houses[4].House = 7 }},
		{"zero width house", func(r *Result) { r.Houses[5].Longitude = r.Houses[4].Longitude }},
		{"cusps out of order", func(r *Result) {
			r.Houses[2].Longitude, r.Houses[3].Longitude = r.Houses[3].Longitude, r.Houses[2].Longitude
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := synthesize(req)
			tt.mutate(res)
			err := Validate(req, res)
			require.Error(t, err)
			assert.True(t, eris.Is(err, ErrInvalidResult))
		})
	}

	assert.Error(t, Validate(req, nil))
}
