package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/natal-cli/internal/chart"
	"github.com/sells-group/natal-cli/internal/instant"
)

var (
	chartDate        string
	chartTime        string
	chartPlace       string
	chartName        string
	chartHouseSystem string
	chartAspectSet   string
	chartBodies      []string
	chartFormat      string
	chartRecord      bool
)

var chartCmd = &cobra.Command{
	Use:   "chart",
	Short: "Calculate a birth chart",
	Example: `  natal chart --date 1995-10-08 --time 19:56 --place "Miami, FL, USA"
  natal chart --date 1990-03-21 --time 06:30 --place London --house-system W --format json`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx, "chart")
		if err != nil {
			return err
		}
		defer env.Close()

		c, err := env.Engine.Calculate(ctx, chart.Request{
			Name:        chartName,
			BirthDate:   chartDate,
			BirthTime:   chartTime,
			BirthPlace:  chartPlace,
			HouseSystem: chartHouseSystem,
			AspectSet:   chartAspectSet,
			Bodies:      chartBodies,
		})
		if err != nil {
			return eris.Wrap(err, "chart")
		}

		return renderChart(cmd.OutOrStdout(), c, chartFormat, chartRecord)
	},
}

func init() {
	f := chartCmd.Flags()
	f.StringVar(&chartDate, "date", "", "birth date, YYYY-MM-DD")
	f.StringVar(&chartTime, "time", "", "local birth time, HH:MM")
	f.StringVar(&chartPlace, "place", "", "birth place, e.g. \"Miami, FL, USA\"")
	f.StringVar(&chartName, "name", "", "optional label for the chart")
	f.StringVar(&chartHouseSystem, "house-system", "", "house system code (P, K, O, R, C, E, W); default from config")
	f.StringVar(&chartAspectSet, "aspects", "", "aspect set: major, extended or all; default from config")
	f.StringSliceVar(&chartBodies, "bodies", nil, "bodies to compute; default from config")
	f.StringVar(&chartFormat, "format", "table", "output format: table, json or yaml")
	f.BoolVar(&chartRecord, "record", false, "emit the flattened record instead of the full chart (json and yaml only)")
	_ = chartCmd.MarkFlagRequired("date")
	_ = chartCmd.MarkFlagRequired("time")
	_ = chartCmd.MarkFlagRequired("place")
	rootCmd.AddCommand(chartCmd)
}

// renderChart writes c to w in the requested format.
func renderChart(w io.Writer, c *chart.Chart, format string, record bool) error {
	var v any = c
	if record {
		v = c.Record()
	}

	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(v), "encode json")
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return eris.Wrap(enc.Close(), "encode yaml")
	case "table", "":
		writeChartTable(w, c)
		return nil
	default:
		return eris.Errorf("unknown format %q", format)
	}
}

func writeChartTable(w io.Writer, c *chart.Chart) {
	fmt.Fprintf(w, "%s\n", c.Location.FormattedName)
	fmt.Fprintf(w, "%s %s (UTC%s)  %s UTC\n",
		c.BirthDate, c.BirthTime,
		instant.FormatOffset(c.Instant.OffsetSeconds),
		c.Instant.UTC.Format("2006-01-02 15:04"),
	)
	fmt.Fprintf(w, "%s houses, %s sect, layer %s\n\n", c.HouseSystem.Name(), c.Sect, c.Layer)

	if c.Approximate {
		fmt.Fprintln(w, color.Warn.Sprint("approximate: the offset was estimated or positions came from a fallback"))
	}
	if c.Degraded {
		fmt.Fprintln(w, color.Warn.Sprintf("degraded: %d ephemeris layer(s) failed", len(c.Attempts)))
	}

	bodies := tablewriter.NewWriter(w)
	bodies.SetHeader([]string{"Body", "Sign", "Degree", "House", "Rx"})
	bodies.SetAutoWrapText(false)
	for _, p := range c.Placements {
		rx := ""
		if p.Retrograde {
			rx = "R"
		}
		bodies.Append([]string{
			p.Symbol + " " + p.Name,
			p.Sign.Symbol() + " " + p.Sign.String(),
			strconv.FormatFloat(p.DegreeInSign, 'f', 2, 64),
			strconv.Itoa(p.House),
			rx,
		})
	}
	bodies.Render()
	fmt.Fprintln(w)

	houses := tablewriter.NewWriter(w)
	houses.SetHeader([]string{"House", "Cusp", "Sign", "Degree"})
	for _, h := range c.Houses {
		houses.Append([]string{
			strconv.Itoa(h.Number),
			strconv.FormatFloat(h.Cusp, 'f', 2, 64),
			h.Sign.String(),
			strconv.FormatFloat(h.DegreeInSign, 'f', 2, 64),
		})
	}
	houses.Render()
	fmt.Fprintln(w)

	if len(c.Aspects) == 0 {
		fmt.Fprintln(w, "no aspects")
		return
	}
	aspects := tablewriter.NewWriter(w)
	aspects.SetHeader([]string{"Body", "Aspect", "Body", "Orb", "Strength"})
	for _, a := range c.Aspects {
		aspects.Append([]string{
			a.BodyA.Name(),
			a.Symbol + " " + a.Name,
			a.BodyB.Name(),
			strconv.FormatFloat(a.Orb, 'f', 2, 64),
			string(a.Strength),
		})
	}
	aspects.Render()
}
