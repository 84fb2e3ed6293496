package tui

import (
	"fmt"

	"github.com/muesli/termenv"
)

// PrintBanner outputs the startup banner with the running version.
func PrintBanner(version string) {
	p := termenv.ColorProfile()
	lines := []string{
		`      _                                 `,
		`  ___| |_ ___ _ __  ___ _   _ _ __   ___ `,
		` / __| __/ _ \ '_ \/ __| | | | '_ \ / __|`,
		` \__ \ ||  __/ |_) \__ \ |_| | | | | (__ `,
		` |___/\__\___| .__/|___/\__, |_| |_|\___|`,
		`             |_|        |___/            `,
	}
	colors := []string{"#818cf8", "#a78bfa", "#c084fc", "#e879f9", "#f472b6", "#fb7185"}

	fmt.Println()
	for i, line := range lines {
		fmt.Println(termenv.String(line).Foreground(p.Color(colors[i])))
	}
	fmt.Printf("  v%s\n\n", version)
}
