package badge

import (
	"fmt"
	"math"
	"strings"

	"github.com/samber/lo"
)

const (
	brailleEmpty = '⠀'
	brailleQuart = '⣀'
	brailleHalf  = '⣤'
	braille3Q    = '⣶'
	brailleFull  = '⣿'
)

// Partial fills from empty to full, four steps per line
var brailleBlocks = []rune{brailleEmpty, brailleQuart, brailleHalf, braille3Q, brailleFull}

// Sparkline renders values as a two-line Braille chart, one column per value.
// It returns an empty string for fewer than two values.
func Sparkline(values []float64) string {
	if len(values) < 2 {
		return ""
	}

	minVal, maxVal := lo.Min(values), lo.Max(values)
	rangeVal := maxVal - minVal
	if rangeVal == 0 {
		rangeVal = 1
	}

	var top, bottom strings.Builder
	for _, v := range values {
		// Bar height in quarter lines, 0-8 across both rows
		height := (v - minVal) / rangeVal * 8
		topChar, bottomChar := sparkColumn(height)
		top.WriteRune(topChar)
		bottom.WriteRune(bottomChar)
	}

	return top.String() + "\n" + bottom.String()
}

// sparkColumn splits a 0-8 bar height into top and bottom cells. The lowest
// values still get a thin bottom mark so the line stays visible.
func sparkColumn(height float64) (top, bottom rune) {
	steps := int(math.Round(height))
	if steps < 1 {
		return brailleEmpty, brailleQuart
	}
	if steps <= 4 {
		return brailleEmpty, brailleBlocks[steps]
	}
	if steps > 8 {
		steps = 8
	}
	return brailleBlocks[steps-4], brailleFull
}

// Chart renders values as a multi-line Braille chart with min and max labels.
// The range is padded by 10 on each side, never below zero.
func Chart(values []float64, height int) string {
	if len(values) < 2 || height < 1 {
		return ""
	}

	const padding = 10.0
	const subBlocks = 4.0

	minVal := math.Max(0, lo.Min(values)-padding)
	maxVal := lo.Max(values) + padding
	rangeVal := maxVal - minVal

	rows := make([][]rune, height)
	for i := range rows {
		rows[i] = []rune(strings.Repeat(string(brailleEmpty), len(values)))
	}

	for x, v := range values {
		total := (v - minVal) / rangeVal * float64(height) * subBlocks

		for y := 0; y < height; y++ {
			row := height - 1 - y
			lineStart := float64(y) * subBlocks
			lineEnd := float64(y+1) * subBlocks

			switch {
			case total >= lineEnd:
				rows[row][x] = brailleFull
			case total > lineStart:
				partial := int(math.Round(total - lineStart))
				partial = max(0, min(partial, len(brailleBlocks)-1))
				rows[row][x] = brailleBlocks[partial]
			}
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Max: %.0f\n", maxVal)
	for _, row := range rows {
		sb.WriteString(string(row))
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "Min: %.0f", minVal)
	return sb.String()
}
