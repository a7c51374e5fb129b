// Package linecluster groups recognizer word boxes into text lines.
package linecluster

import (
	"math"
	"slices"
	"sort"
	"strings"

	"github.com/Aashish23092/slice-receipts/dto"
)

const (
	MinConfidence    = 0.35
	defaultThreshold = 10.0
	minThreshold     = 8.0
	maxThreshold     = 20.0
	heightFactor     = 0.65
	smoothing        = 0.3
)

// Threshold is the vertical distance within which a word joins the current line:
// 0.65 of the median box height, clamped to [8, 20]. All boxes count, including
// ones later dropped for low confidence.
func Threshold(boxes []dto.WordBox) float64 {
	if len(boxes) == 0 {
		return defaultThreshold
	}
	heights := make([]float64, len(boxes))
	for i, b := range boxes {
		heights[i] = boxHeight(b)
	}
	sort.Float64s(heights)
	n := len(heights)
	median := heights[n/2]
	if n%2 == 0 {
		median = (heights[n/2-1] + heights[n/2]) / 2
	}
	return min(maxThreshold, max(minThreshold, median*heightFactor))
}

// Cluster turns word boxes into lines ordered top to bottom, each sorted left
// to right. Empty and low-confidence words are dropped.
func Cluster(boxes []dto.WordBox) []dto.Line {
	words := make([]dto.Word, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Text)
		if text == "" || b.Confidence < MinConfidence {
			continue
		}
		x, y := centroid(b)
		words = append(words, dto.Word{Text: text, X: x, Y: y, Height: boxHeight(b), Confidence: b.Confidence})
	}
	sort.SliceStable(words, func(i, j int) bool { return words[i].Y < words[j].Y })

	threshold := Threshold(boxes)
	var (
		lines   []dto.Line
		current dto.Line
		lineY   float64
	)
	for _, w := range words {
		if len(current) == 0 {
			current = dto.Line{w}
			lineY = w.Y
			continue
		}
		if math.Abs(w.Y-lineY) <= threshold {
			current = append(current, w)
			lineY = lineY*(1-smoothing) + w.Y*smoothing
			continue
		}
		lines = append(lines, byX(current))
		current = dto.Line{w}
		lineY = w.Y
	}
	if len(current) > 0 {
		lines = append(lines, byX(current))
	}
	return lines
}

// Texts returns the joined text of every line.
func Texts(lines []dto.Line) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Text()
	}
	return out
}

func byX(line dto.Line) dto.Line {
	slices.SortStableFunc(line, func(a, b dto.Word) int {
		switch {
		case a.X < b.X:
			return -1
		case a.X > b.X:
			return 1
		}
		return 0
	})
	return line
}

func centroid(b dto.WordBox) (float64, float64) {
	var x, y float64
	for _, p := range b.Polygon {
		x += p.X
		y += p.Y
	}
	return x / 4, y / 4
}

func boxHeight(b dto.WordBox) float64 {
	lo, hi := b.Polygon[0].Y, b.Polygon[0].Y
	for _, p := range b.Polygon[1:] {
		lo = min(lo, p.Y)
		hi = max(hi, p.Y)
	}
	return hi - lo
}
