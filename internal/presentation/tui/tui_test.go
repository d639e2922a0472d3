package tui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/stategraph/pkg/domain"
)

func TestPrintBanner_Ascii(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, termenv.Ascii)
	assert.Contains(t, buf.String(), bannerLines[1])
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestColorChange(t *testing.T) {
	report := "META Stock Price\n====\nPrice: USD 1.00\nChange: -1.00 (-1.00%)\n===="
	q := domain.Quote{Change: -1}

	plain := ColorChange(report, q, termenv.Ascii)
	assert.Equal(t, report, plain)

	colored := ColorChange(report, q, termenv.TrueColor)
	lines := strings.Split(colored, "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[3], "\x1b[")
	assert.Equal(t, "Price: USD 1.00", lines[2])
}

func TestNewRenderer_NonInteractive(t *testing.T) {
	out, err := NewRenderer(false)("**bold**")
	require.NoError(t, err)
	assert.Equal(t, "**bold**", out)
}

func TestSpeaker(t *testing.T) {
	assert.Equal(t, "Bot: ", Speaker("Bot", termenv.Ascii))
}
