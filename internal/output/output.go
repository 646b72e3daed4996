// Package output provides styled terminal output helpers (success, error,
// warning, session and flag formatting) using lipgloss.
package output

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/streetmix/sx/internal/apperr"
	"github.com/streetmix/sx/internal/flags"
	"github.com/streetmix/sx/internal/mode"
	"github.com/streetmix/sx/internal/roles"
)

var (
	// Styles
	titleStyle   = lipgloss.NewStyle().Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	modeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("45"))
	flagOnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	flagOffStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
)

// Success prints a success message
func Success(format string, args ...interface{}) {
	fmt.Println(successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message
func Error(format string, args ...interface{}) {
	fmt.Println(errorStyle.Render("ERROR: " + fmt.Sprintf(format, args...)))
}

// Warning prints a warning message
func Warning(format string, args ...interface{}) {
	fmt.Println(warningStyle.Render("Warning: " + fmt.Sprintf(format, args...)))
}

// Info prints an info message
func Info(format string, args ...interface{}) {
	fmt.Println(fmt.Sprintf(format, args...))
}

// JSON outputs data as JSON
func JSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// JSONError outputs a shown error as JSON
func JSONError(e apperr.Error) {
	result := map[string]interface{}{
		"error": map[string]interface{}{
			"code":    string(e.Code),
			"message": apperr.Message(e.Code),
			"fatal":   e.Fatal,
		},
	}
	data, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(data))
}

// FormatAppError formats a shown error, e.g. "[SIGN_IN_401] Your sign-in has expired..."
func FormatAppError(e apperr.Error) string {
	line := fmt.Sprintf("[%s] %s", e.Code, apperr.Message(e.Code))
	if e.Fatal {
		return errorStyle.Render(line)
	}
	return warningStyle.Render(line)
}

// FormatMode formats a mode with color
func FormatMode(m mode.Mode) string {
	return modeStyle.Render(m.String())
}

// FormatFlagState formats one flag row: name, value and the scope that set it.
func FormatFlagState(s flags.State, nameWidth int) string {
	value := flagOffStyle.Render("off")
	if s.Value {
		value = flagOnStyle.Render("on ")
	}
	return fmt.Sprintf("%-*s %s %s", nameWidth, s.Name, value, subtleStyle.Render("("+s.Source+")"))
}

// FormatFlagTable formats every flag state, one per line.
func FormatFlagTable(states []flags.State) string {
	width := 0
	for _, s := range states {
		if len(s.Name) > width {
			width = len(s.Name)
		}
	}
	lines := make([]string, len(states))
	for i, s := range states {
		lines[i] = FormatFlagState(s, width)
	}
	return strings.Join(lines, "\n")
}

// FormatRole formats a role and the flags it turns on or off.
func FormatRole(r roles.Role) string {
	names := make([]string, 0, len(r.Flags))
	for name := range r.Flags {
		names = append(names, name)
	}
	sort.Strings(names)

	grants := make([]string, len(names))
	for i, name := range names {
		if r.Flags[name] {
			grants[i] = flagOnStyle.Render("+" + name)
		} else {
			grants[i] = flagOffStyle.Render("-" + name)
		}
	}
	line := fmt.Sprintf("%s %s", r.Key, subtleStyle.Render("("+r.Name+")"))
	if len(grants) == 0 {
		return line + " " + subtleStyle.Render("no flags")
	}
	return line + " " + strings.Join(grants, " ")
}

// FormatSignIn describes the sign-in state in one line.
func FormatSignIn(signedIn bool, userID, displayName string) string {
	if !signedIn {
		return subtleStyle.Render("signed out")
	}
	if displayName != "" && displayName != userID {
		return successStyle.Render(fmt.Sprintf("signed in as %s (%s)", displayName, userID))
	}
	return successStyle.Render("signed in as " + userID)
}

// Title renders a bold heading
func Title(s string) string {
	return titleStyle.Render(s)
}

// FormatTimeAgo formats a time as a human-readable "ago" string
func FormatTimeAgo(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1m ago"
		}
		return fmt.Sprintf("%dm ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1h ago"
		}
		return fmt.Sprintf("%dh ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1d ago"
		}
		return fmt.Sprintf("%dd ago", days)
	default:
		return t.Format("2006-01-02")
	}
}

// SectionHeader returns a formatted section header for CLI output
// e.g., "\nFLAGS:\n"
func SectionHeader(title string) string {
	return fmt.Sprintf("\n%s:\n", strings.ToUpper(title))
}

// BulletList formats items as a bulleted list with optional indentation
func BulletList(items []string, indent int) []string {
	prefix := strings.Repeat(" ", indent)
	result := make([]string, len(items))
	for i, item := range items {
		result[i] = prefix + "- " + item
	}
	return result
}
