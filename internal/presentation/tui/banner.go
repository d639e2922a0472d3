package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []string{
	"      _        _                              _     ",
	"  ___| |_ __ _| |_ ___  __ _ _ __ __ _ _ __ | |__  ",
	" / __| __/ _` | __/ _ \\/ _` | '__/ _` | '_ \\| '_ \\ ",
	" \\__ \\ || (_| | ||  __/ (_| | | | (_| | |_) | | | |",
	" |___/\\__\\__,_|\\__\\___|\\__, |_|  \\__,_| .__/|_| |_|",
	"                       |___/          |_|          ",
}

var bannerColors = []string{"#818cf8", "#a78bfa", "#c084fc", "#e879f9", "#f472b6", "#fb7185"}

// PrintBanner writes the ASCII art banner to w using the given color profile.
func PrintBanner(w io.Writer, p termenv.Profile) {
	fmt.Fprintln(w)
	for i, line := range bannerLines {
		fmt.Fprintln(w, p.String(line).Foreground(p.Color(bannerColors[i])))
	}
	fmt.Fprintln(w)
}
