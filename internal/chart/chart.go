// Package chart renders a time series line as a PNG image.
package chart

import (
	"bytes"
	"errors"
	"fmt"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"vaultbot/internal/core"
)

const (
	Width  = 600
	Height = 400

	dateLayout = "2006-01-02"
	maxLabels  = 8
)

var (
	ErrUnknownSeries = errors.New("unknown series")
	ErrNoPoints      = errors.New("no data points")
)

var palette = []string{
	"e6194b", "3cb44b", "ffe119", "4363d8", "f58231",
	"911eb4", "46f0f0", "f032e6", "bcf60c", "fabebe",
	"008080", "e6beff", "9a6324", "fffac8", "800000",
	"aaffc3", "808000", "ffd8b1", "000075", "808080",
}

// Color returns the palette color of the i-th series, cycling.
func Color(i int) drawing.Color {
	return drawing.ColorFromHex(palette[i%len(palette)])
}

// Render draws the series stored under key as a line over ts.Dates.
func Render(ts core.TimeSeries, key string) ([]byte, error) {
	amounts, ok := ts.Amounts(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSeries, key)
	}
	if len(ts.Dates) == 0 {
		return nil, ErrNoPoints
	}

	color := Color(0)
	for i, k := range ts.Keys() {
		if k == key {
			color = Color(i)
			break
		}
	}

	xs := make([]float64, len(amounts))
	for i := range xs {
		xs[i] = float64(i)
	}

	graph := gochart.Chart{
		Width:  Width,
		Height: Height,
		Background: gochart.Style{
			FillColor: drawing.ColorWhite,
			Padding:   gochart.Box{Top: 40, Left: 10, Right: 10, Bottom: 10},
		},
		XAxis: gochart.XAxis{Ticks: dateTicks(ts)},
		YAxis: gochart.YAxis{Range: flatRange(amounts)},
		Series: []gochart.Series{
			gochart.ContinuousSeries{
				Name:    key,
				XValues: xs,
				YValues: amounts,
				Style: gochart.Style{
					StrokeColor: color,
					StrokeWidth: 2,
					DotColor:    color,
					DotWidth:    3,
				},
			},
		},
	}
	graph.Elements = []gochart.Renderable{gochart.LegendThin(&graph)}

	var buf bytes.Buffer
	if err := graph.Render(gochart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render chart %s: %w", key, err)
	}
	return buf.Bytes(), nil
}

// dateTicks labels at most maxLabels dates. A single date gets empty
// neighbours so the x range never collapses.
func dateTicks(ts core.TimeSeries) []gochart.Tick {
	n := len(ts.Dates)
	if n == 1 {
		return []gochart.Tick{
			{Value: -1},
			{Value: 0, Label: ts.Dates[0].Format(dateLayout)},
			{Value: 1},
		}
	}
	step := (n + maxLabels - 1) / maxLabels
	ticks := make([]gochart.Tick, 0, maxLabels+1)
	for i := 0; i < n; i += step {
		ticks = append(ticks, gochart.Tick{Value: float64(i), Label: ts.Dates[i].Format(dateLayout)})
	}
	if last := float64(n - 1); ticks[len(ticks)-1].Value != last {
		ticks = append(ticks, gochart.Tick{Value: last, Label: ts.Dates[n-1].Format(dateLayout)})
	}
	return ticks
}

// flatRange pads a constant series by one unit each way; nil lets the
// chart fit the data.
func flatRange(amounts []float64) gochart.Range {
	lo, hi := amounts[0], amounts[0]
	for _, v := range amounts[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	if lo != hi {
		return nil
	}
	return &gochart.ContinuousRange{Min: lo - 1, Max: hi + 1}
}
