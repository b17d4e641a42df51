package cmd

import (
	"fmt"
	"os"
)

// ── Unified output helpers ────────────────────────────────────────────────────
// Status lines share one icon set:
//   ✓  success
//   ✗  error / failure          (written to stderr)
//   ⚠  warning
//   ○  skipped
//   ~  neutral info

// printOK prints a success line.
//   name = "" → "  ✓  msg"
//   name set  → "  ✓  [name] msg"
func printOK(name, msg string) {
	fmt.Print(statusLine("✓", name, msg))
}

// printErr prints an error line to stderr.
func printErr(name, msg string) {
	fmt.Fprint(os.Stderr, statusLine("✗", name, msg))
}

// printWarn prints a warning line.
func printWarn(name, msg string) {
	fmt.Print(statusLine("⚠", name, msg))
}

// printSkip prints a skipped line.
func printSkip(name, msg string) {
	fmt.Print(statusLine("○", name, msg))
}

// printInfo prints a neutral informational line.
func printInfo(name, msg string) {
	fmt.Print(statusLine("~", name, msg))
}

func statusLine(icon, name, msg string) string {
	if name == "" {
		return fmt.Sprintf("  %s  %s\n", icon, msg)
	}
	return fmt.Sprintf("  %s  [%s] %s\n", icon, name, msg)
}
