package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/pylock/pkg/lock"
)

// uiOut receives human-facing output. Logs go to the logger's writer.
var uiOut io.Writer = os.Stdout

var (
	colorCyan   = lipgloss.Color("36")  // package names
	colorGreen  = lipgloss.Color("35")  // success
	colorYellow = lipgloss.Color("220") // warnings
	colorRed    = lipgloss.Color("167") // errors
	colorBlue   = lipgloss.Color("75")  // commands
	colorWhite  = lipgloss.Color("255") // values
	colorGray   = lipgloss.Color("245") // labels
	colorDim    = lipgloss.Color("240") // muted text
)

var (
	// StyleTitle renders headings and package names.
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	// StyleVersion renders pinned versions.
	StyleVersion = lipgloss.NewStyle().Foreground(colorWhite)
	// StyleMarker renders environment markers.
	StyleMarker = lipgloss.NewStyle().Foreground(colorYellow).Italic(true)
	// StyleDim renders secondary text.
	StyleDim = lipgloss.NewStyle().Foreground(colorDim)
	// StyleWarning renders warnings.
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)

	styleLabel   = lipgloss.NewStyle().Foreground(colorGray).Width(10)
	styleCommand = lipgloss.NewStyle().Foreground(colorBlue)
)

// status icons
var (
	iconSuccess = lipgloss.NewStyle().Foreground(colorGreen).Render("✓")
	iconError   = lipgloss.NewStyle().Foreground(colorRed).Render("✗")
	iconWarning = lipgloss.NewStyle().Foreground(colorYellow).Render("!")
	iconInfo    = lipgloss.NewStyle().Foreground(colorGray).Render("›")
	iconSpinner = lipgloss.NewStyle().Foreground(colorCyan)
)

const iconArrow = "→"

func status(icon, format string, args ...any) {
	fmt.Fprintln(uiOut, icon+" "+fmt.Sprintf(format, args...))
}

func printSuccess(format string, args ...any) { status(iconSuccess, format, args...) }

func printError(format string, args ...any) { status(iconError, format, args...) }

func printInfo(format string, args ...any) { status(iconInfo, format, args...) }

func printWarning(format string, args ...any) {
	status(iconWarning, "%s", StyleWarning.Render(fmt.Sprintf(format, args...)))
}

// printDetail prints an indented, dimmed line.
func printDetail(format string, args ...any) {
	fmt.Fprintln(uiOut, "  "+StyleDim.Render(fmt.Sprintf(format, args...)))
}

// printFile names a file that was written.
func printFile(path string) {
	fmt.Fprintln(uiOut, "  "+StyleDim.Render(iconArrow)+" "+path)
}

func printKeyValue(key, value string) {
	fmt.Fprintln(uiOut, styleLabel.Render(key)+" "+value)
}

// printPackage prints "name version" with an optional marker.
func printPackage(name, version, markers string) {
	line := StyleTitle.Render(name) + " " + StyleVersion.Render(version)
	if markers != "" {
		line += "  " + StyleMarker.Render(markers)
	}
	fmt.Fprintln(uiOut, line)
}

// printLockStats prints section sizes and stage timings on one line.
func printLockStats(defaults, develop int, stats lock.Stats) {
	parts := []string{
		fmt.Sprintf("%d default", defaults),
		fmt.Sprintf("%d develop", develop),
		"resolve " + stats.ResolveTime.Round(time.Millisecond).String(),
	}
	if stats.HashTime > 0 {
		parts = append(parts, "hash "+stats.HashTime.Round(time.Millisecond).String())
	}
	fmt.Fprintln(uiOut, "  "+StyleDim.Render(strings.Join(parts, " · ")))
}

func printNextStep(description, cmd string) {
	fmt.Fprintln(uiOut, StyleDim.Render(description+":")+" "+styleCommand.Render(cmd))
}

func printNewline() {
	fmt.Fprintln(uiOut)
}
