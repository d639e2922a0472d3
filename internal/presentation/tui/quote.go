package tui

import (
	"fmt"
	"strings"

	"github.com/muesli/termenv"

	"github.com/aretw0/stategraph/pkg/domain"
)

// ColorChange colors the "Change:" line of a quote report green for gains and
// red for losses.
func ColorChange(report string, q domain.Quote, p termenv.Profile) string {
	color := "#22c55e"
	if q.Change < 0 {
		color = "#ef4444"
	}
	lines := strings.Split(report, "\n")
	for i, l := range lines {
		if strings.HasPrefix(l, "Change:") {
			lines[i] = p.String(l).Foreground(p.Color(color)).String()
		}
		if i == 0 {
			lines[i] = p.String(l).Bold().String()
		}
	}
	return strings.Join(lines, "\n")
}

// Speaker formats a chat line prefix such as "Bot: ".
func Speaker(name string, p termenv.Profile) string {
	return p.String(fmt.Sprintf("%s: ", name)).Foreground(p.Color("#a78bfa")).Bold().String()
}
