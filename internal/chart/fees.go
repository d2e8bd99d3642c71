package chart

import (
	"bytes"
	"fmt"
	"math"
	"time"

	"gas-alert-bot/internal/types"
	"gas-alert-bot/lib/helpers"

	"github.com/pkg/errors"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

var (
	backgroundColor = drawing.Color{R: 55, G: 55, B: 55, A: 255}
	textColor       = drawing.Color{R: 200, G: 200, B: 200, A: 255}
	seriesColor     = drawing.Color{R: 0, G: 122, B: 255, A: 255}
	fillColor       = drawing.Color{R: 0, G: 122, B: 255, A: 25}
	thresholdColor  = drawing.Color{R: 255, G: 165, B: 0, A: 255}
)

// RenderFeeHistory draws the current fee of each snapshot as a PNG line
// chart. A positive threshold is drawn as a horizontal reference line.
func RenderFeeHistory(chain types.Chain, snaps []types.FeeSnapshot, threshold float64) ([]byte, error) {
	if len(snaps) < 2 {
		return nil, errors.Errorf("need at least 2 fee snapshots for %s, have %d", chain, len(snaps))
	}

	series := chart.TimeSeries{
		Name: fmt.Sprintf("%s gas (Gwei)", chain.DisplayName()),
		Style: chart.Style{
			StrokeColor: seriesColor,
			StrokeWidth: 2,
			FillColor:   fillColor,
		},
	}
	for _, s := range snaps {
		series.XValues = append(series.XValues, s.ObservedAt)
		series.YValues = append(series.YValues, s.Estimate.Current())
	}

	minValue, maxValue := minMax(series.YValues)
	if threshold > 0 {
		minValue = math.Min(minValue, threshold)
		maxValue = math.Max(maxValue, threshold)
	}
	padding := (maxValue - minValue) * 0.1
	if padding == 0 {
		padding = math.Max(maxValue*0.1, 0.001)
	}

	all := []chart.Series{series}
	if threshold > 0 {
		first, last := series.XValues[0], series.XValues[len(series.XValues)-1]
		all = append(all, chart.TimeSeries{
			Name: "threshold",
			Style: chart.Style{
				StrokeColor:     thresholdColor,
				StrokeWidth:     1,
				StrokeDashArray: []float64{5, 5},
			},
			XValues: []time.Time{first, last},
			YValues: []float64{threshold, threshold},
		})
	}

	graph := chart.Chart{
		Title:      fmt.Sprintf("%s gas price", chain.DisplayName()),
		TitleStyle: chart.Style{FontColor: textColor},
		Width:      1200,
		Height:     500,
		Background: chart.Style{
			FillColor: backgroundColor,
			Padding:   chart.Box{Top: 50, Left: 20, Right: 20, Bottom: 20},
		},
		Canvas: chart.Style{FillColor: backgroundColor},
		XAxis: chart.XAxis{
			Style:          chart.Style{FontColor: textColor, StrokeColor: textColor},
			ValueFormatter: chart.TimeHourValueFormatter,
		},
		YAxis: chart.YAxis{
			Style: chart.Style{FontColor: textColor, StrokeColor: textColor},
			Range: &chart.ContinuousRange{Min: math.Max(minValue-padding, 0), Max: maxValue + padding},
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return helpers.FormatFee(f, false)
				}
				return ""
			},
		},
		Series: all,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, errors.Wrap(err, "could not render fee chart")
	}
	return buf.Bytes(), nil
}

func minMax(values []float64) (min, max float64) {
	min, max = values[0], values[0]
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}
