package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/natal-cli/internal/chart"
)

func miamiChart(t *testing.T) *chart.Chart {
	t.Helper()
	c, err := newTestEngine(t).Calculate(context.Background(), chart.Request{
		BirthDate:  "1995-10-08",
		BirthTime:  "19:56",
		BirthPlace: "Miami, FL, USA",
	})
	require.NoError(t, err)
	return c
}

func TestRenderChart_Table(t *testing.T) {
	c := miamiChart(t)

	var out bytes.Buffer
	require.NoError(t, renderChart(&out, c, "table", false))

	s := out.String()
	assert.Contains(t, s, "Miami, Florida, USA")
	assert.Contains(t, s, "(UTC-04:00)")
	assert.Contains(t, s, "1995-10-08 23:56 UTC")
	assert.Contains(t, s, "Placidus houses")
	assert.Contains(t, s, "BODY")
	assert.Contains(t, s, "Libra")
	assert.Contains(t, s, "STRENGTH")
	assert.NotContains(t, s, "approximate:")
}

func TestRenderChart_JSON(t *testing.T) {
	c := miamiChart(t)

	var out bytes.Buffer
	require.NoError(t, renderChart(&out, c, "json", false))

	var got map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, c.ID, got["id"])
	assert.Len(t, got["houses"], 12)

	out.Reset()
	require.NoError(t, renderChart(&out, c, "JSON", true))
	var rec chart.Record
	require.NoError(t, json.Unmarshal(out.Bytes(), &rec))
	assert.Equal(t, c.Record().Sun, rec.Sun)
}

func TestRenderChart_YAML(t *testing.T) {
	c := miamiChart(t)

	var out bytes.Buffer
	require.NoError(t, renderChart(&out, c, "yaml", true))

	var rec map[string]any
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &rec))
	assert.Equal(t, c.Record().Sun, rec["sun"])
	assert.Equal(t, "Placidus", rec["house_system"])
}

func TestRenderChart_UnknownFormat(t *testing.T) {
	var out bytes.Buffer
	err := renderChart(&out, miamiChart(t), "xml", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xml")
}
