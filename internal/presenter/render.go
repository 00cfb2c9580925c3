package presenter

import (
	"fmt"
	"io"
	"strings"

	job "github.com/markdave123-py/hybridocr/internal/core/extraction_job"
)

// Theme only decides colors. It is owned by whoever renders and never reaches
// the job controller.
type Theme struct {
	Name      string
	Accent    string
	Secondary string
	Error     string
	Reset     string
}

var (
	Dark = Theme{
		Name:      "dark",
		Accent:    "\x1b[32m",
		Secondary: "\x1b[90m",
		Error:     "\x1b[31m",
		Reset:     "\x1b[0m",
	}
	Light = Theme{
		Name:      "light",
		Accent:    "\x1b[32;2m",
		Secondary: "\x1b[37m",
		Error:     "\x1b[31;2m",
		Reset:     "\x1b[0m",
	}
	Plain = Theme{Name: "plain"}
)

// ThemeByName falls back to Dark, the default of the web UI.
func ThemeByName(name string) Theme {
	switch strings.ToLower(name) {
	case "light":
		return Light
	case "plain", "none":
		return Plain
	default:
		return Dark
	}
}

// StatusLine is the one-line status shown above the output area.
func StatusLine(s job.Snapshot) string {
	switch {
	case s.Stage.Active() && s.Hint != "":
		return s.Hint
	case s.Stage == job.StageSubmitting:
		return "Uploading..."
	case s.Stage == job.StageAwaitingResult:
		return "Processing..."
	case s.Stage == job.StageCompleted:
		return "Extraction complete"
	case s.Stage == job.StageFailed:
		return "Extraction failed"
	case !s.HasDocument:
		return "Awaiting file upload..."
	default:
		return "Ready to extract"
	}
}

// RenderStatus writes the status line only; used for progress updates.
func RenderStatus(w io.Writer, s job.Snapshot, theme Theme) error {
	_, err := fmt.Fprintf(w, "%s%s%s\n", theme.Secondary, StatusLine(s), theme.Reset)
	return err
}

// Render writes the full view of a snapshot: status, stats card and output.
func Render(w io.Writer, s job.Snapshot, theme Theme) error {
	if err := RenderStatus(w, s, theme); err != nil {
		return err
	}

	switch s.Stage {
	case job.StageCompleted:
		if s.Stats != nil {
			if _, err := fmt.Fprintf(w, "Engine: %s%s%s\nTime:   %s\n",
				theme.Accent, strings.ToUpper(s.Stats.Mode.String()), theme.Reset, s.Stats.ElapsedString()); err != nil {
				return err
			}
		}
		if s.Result != nil {
			if _, err := fmt.Fprintf(w, "\n%s\n", s.Result.Text); err != nil {
				return err
			}
		}
	case job.StageFailed:
		if s.Err != nil {
			if _, err := fmt.Fprintf(w, "%s%s%s\n", theme.Error, s.Err.Message, theme.Reset); err != nil {
				return err
			}
		}
		if s.Stats != nil {
			if _, err := fmt.Fprintf(w, "Time:   %s\n", s.Stats.ElapsedString()); err != nil {
				return err
			}
		}
	}
	return nil
}
