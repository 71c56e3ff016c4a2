package report

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"avoidance-eval/internal/experiment"
)

// SavePlot writes a PNG (or any format plot supports by extension) bar chart
// of the closest approach per vehicle pair.
func SavePlot(path string, r experiment.Report) error {
	pairs := Unordered(r)
	if len(pairs) == 0 {
		return errNoPairs
	}

	values := make(plotter.Values, len(pairs))
	labels := make([]string, len(pairs))
	for i, p := range pairs {
		values[i] = p.DistanceM
		labels[i] = p.Label()
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Closest approach - %s", filepath.Base(r.Experiment))
	p.X.Label.Text = "Vehicle pair"
	p.Y.Label.Text = "Distance (m)"

	bars, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return err
	}
	bars.LineStyle.Width = vg.Length(0)
	bars.Color = plotutil.Color(0)
	p.Add(bars)
	p.NominalX(labels...)

	width := vg.Length(len(pairs))*vg.Points(40) + 2*vg.Inch
	return p.Save(width, 4*vg.Inch, path)
}

// WriteHTML renders an interactive bar chart of the closest approach per
// vehicle pair.
func WriteHTML(w io.Writer, r experiment.Report) error {
	pairs := Unordered(r)
	if len(pairs) == 0 {
		return errNoPairs
	}

	x := make([]string, len(pairs))
	y := make([]opts.BarData, len(pairs))
	for i, p := range pairs {
		x[i] = p.Label()
		y[i] = opts.BarData{Value: fmt.Sprintf("%.2f", p.DistanceM)}
	}

	s := Summarize(r)
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Closest approach", Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Closest approach per vehicle pair",
			Subtitle: fmt.Sprintf("%s: %d vehicles, min %.2f m, mean %.2f m", r.Experiment, s.Vehicles, s.MinM, s.MeanM),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "pair"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "m"}),
	)
	bar.SetXAxis(x).
		AddSeries("closest approach", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar.Render(w)
}
