package chart

import (
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/ontario-health/healthmap/internal/disease"
)

// missing is the echarts placeholder for a gap in a series.
const missing = "-"

func initOpts(title string) charts.GlobalOpts {
	return charts.WithInitializationOpts(opts.Initialization{
		PageTitle: title,
		Width:     "100%",
		Height:    "420px",
	})
}

func value(v *float64) any {
	if v == nil {
		return missing
	}
	return *v
}

func yearLabels(years []int) []string {
	labels := make([]string, len(years))
	for i, y := range years {
		labels[i] = strconv.Itoa(y)
	}
	return labels
}

// RenderTrends writes a line chart of t.
func RenderTrends(w io.Writer, title string, t Trends) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		initOpts(title),
		charts.WithTitleOpts(opts.Title{
			Title: title,
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:    opts.Bool(true),
			Trigger: "axis",
		}),
		charts.WithLegendOpts(opts.Legend{
			Show: opts.Bool(true),
			Top:  "bottom",
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name:  "Rate per 100,000",
			Scale: opts.Bool(true),
		}),
	)

	line.SetXAxis(yearLabels(t.Years))
	for _, l := range t.Lines {
		data := make([]opts.LineData, len(l.Values))
		for i, v := range l.Values {
			data[i] = opts.LineData{Value: value(v)}
		}
		line.AddSeries(l.Name, data)
	}
	line.SetSeriesOptions(
		charts.WithLineChartOpts(opts.LineChart{
			Smooth:     opts.Bool(true),
			ShowSymbol: opts.Bool(true),
		}),
	)

	return line.Render(w)
}

// RenderAgeGroups writes a grouped bar chart of g.
func RenderAgeGroups(w io.Writer, title string, g AgeGroups) error {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		initOpts(title),
		charts.WithTitleOpts(opts.Title{
			Title: title,
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show: opts.Bool(true),
		}),
		charts.WithLegendOpts(opts.Legend{
			Show: opts.Bool(true),
			Top:  "bottom",
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name: "Rate per 100,000",
		}),
	)

	bar.SetXAxis(g.Bands)
	for _, group := range g.Groups {
		data := make([]opts.BarData, len(group.Values))
		for i, v := range group.Values {
			data[i] = opts.BarData{Value: value(v)}
		}
		bar.AddSeries(group.Name, data)
	}
	return bar.Render(w)
}

// RenderTopRegions writes a bar chart of regions ranked by rate.
func RenderTopRegions(w io.Writer, title string, regions []disease.RegionRate) error {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		initOpts(title),
		charts.WithTitleOpts(opts.Title{
			Title: title,
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show: opts.Bool(true),
		}),
		charts.WithLegendOpts(opts.Legend{
			Show: opts.Bool(false),
		}),
		charts.WithXAxisOpts(opts.XAxis{
			AxisLabel: &opts.AxisLabel{
				Rotate:      35,
				HideOverlap: opts.Bool(true),
			},
		}),
	)

	names := make([]string, len(regions))
	data := make([]opts.BarData, len(regions))
	for i, r := range regions {
		names[i] = r.Geography
		data[i] = opts.BarData{Value: r.Rate}
	}
	bar.SetXAxis(names).AddSeries("Rate", data)
	return bar.Render(w)
}
