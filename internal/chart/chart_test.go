package chart

import (
	"bytes"
	"image/png"
	"testing"

	"gastos/internal/core"

	"github.com/shopspring/decimal"
	"gonum.org/v1/plot/vg"
)

func TestRender(t *testing.T) {
	data := []core.Aggregate{
		{Name: "Food", Amount: decimal.RequireFromString("12.50")},
		{Name: "Health", Amount: decimal.RequireFromString("80")},
	}

	tests := []struct {
		name   string
		render func(string, []core.Aggregate) ([]byte, error)
		data   []core.Aggregate
	}{
		{"horizontal", Horizontal, data},
		{"vertical", Vertical, data},
		{"horizontal empty", Horizontal, nil},
		{"vertical empty", Vertical, nil},
		{"unnamed group", Vertical, []core.Aggregate{{Name: "", Amount: decimal.NewFromInt(1)}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := tt.render("Expenses", tt.data)
			if err != nil {
				t.Fatalf("render: %v", err)
			}
			img, err := png.Decode(bytes.NewReader(b))
			if err != nil {
				t.Fatalf("not a PNG: %v", err)
			}
			if img.Bounds().Dx() == 0 || img.Bounds().Dy() == 0 {
				t.Fatalf("empty image")
			}
		})
	}
}

func TestBarWidth(t *testing.T) {
	if barWidth != vg.Points(24) {
		t.Fatalf("bar width = %v, want 24pt", barWidth)
	}
}
