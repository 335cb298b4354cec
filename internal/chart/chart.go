// Package chart draws the statement bar charts as PNG images.
package chart

import (
	"bytes"
	"fmt"
	"image/color"

	"gastos/internal/core"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

const (
	width    = 6 * vg.Inch
	height   = 4 * vg.Inch
	barWidth = vg.Inch / 3 // 24pt
)

var barColor = color.RGBA{R: 0x3b, G: 0x82, B: 0xf6, A: 0xff}

// Horizontal draws one horizontal bar per aggregate, bottom to top in the
// order given.
func Horizontal(title string, data []core.Aggregate) ([]byte, error) {
	return render(title, data, true)
}

// Vertical draws one vertical bar per aggregate, left to right in the order
// given.
func Vertical(title string, data []core.Aggregate) ([]byte, error) {
	return render(title, data, false)
}

func render(title string, data []core.Aggregate, horizontal bool) ([]byte, error) {
	p := plot.New()
	p.Title.Text = title

	if len(data) > 0 {
		values := make(plotter.Values, len(data))
		names := make([]string, len(data))
		for i, a := range data {
			values[i] = a.Amount.InexactFloat64()
			names[i] = a.Name
			if names[i] == "" {
				names[i] = "(none)"
			}
		}

		bars, err := plotter.NewBarChart(values, barWidth)
		if err != nil {
			return nil, fmt.Errorf("bar chart %q: %w", title, err)
		}
		bars.Horizontal = horizontal
		bars.Color = barColor
		bars.LineStyle.Width = 0
		p.Add(bars)

		if horizontal {
			p.NominalY(names...)
			p.X.Label.Text = "Amount"
		} else {
			p.NominalX(names...)
			p.Y.Label.Text = "Amount"
		}
	}

	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return nil, fmt.Errorf("chart writer %q: %w", title, err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("render chart %q: %w", title, err)
	}
	return buf.Bytes(), nil
}
