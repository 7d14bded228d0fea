// package formatter renders import history (table, CSV, JSON) and the counts shown on the progress panel
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/desertthunder/muzictl/internal/models"
	"github.com/desertthunder/muzictl/internal/shared"
)

// Format selects a history output format.
type Format string

const (
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
)

// ParseFormat validates a --format value. Empty means table.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatTable, nil
	case FormatTable, FormatCSV, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("%w: format %q (want table, csv or json)", shared.ErrInvalidArgument, s)
	}
}

var historyHeaders = []string{"#", "Provider", "Job", "State", "Progress", "Tracks", "Started", "Duration", "Error"}

// FormatInt renders n with comma thousands separators, e.g. 1234567 → "1,234,567".
func FormatInt(n int) string {
	s := strconv.Itoa(n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	if len(s) <= 3 {
		if neg {
			return "-" + s
		}
		return s
	}

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	lead := len(s) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(s[:lead])
	for i := lead; i < len(s); i += 3 {
		b.WriteByte(',')
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatDuration renders d rounded to the second, or "-" for zero.
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Second).String()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func historyRecord(r *models.ImportRun) []string {
	return []string{
		strconv.Itoa(r.Sequence()),
		r.Provider(),
		r.JobID(),
		r.State().String(),
		fmt.Sprintf("%d%%", r.Percent()),
		FormatInt(r.TracksImported()),
		formatTime(r.StartedAt()),
		FormatDuration(r.Duration()),
		r.ErrorMessage(),
	}
}

// HistoryTable renders runs as a bordered table.
func HistoryTable(runs []*models.ImportRun) string {
	header := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(historyHeaders...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})
	for _, r := range runs {
		t.Row(historyRecord(r)...)
	}
	return t.String()
}

// HistoryCSV renders runs as CSV with a header row.
func HistoryCSV(runs []*models.ImportRun) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(historyHeaders); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, r := range runs {
		if err := writer.Write(historyRecord(r)); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// RunJSON is the JSON shape of an import run.
type RunJSON struct {
	ID             string     `json:"id"`
	Sequence       int        `json:"sequence"`
	Provider       string     `json:"provider"`
	JobID          string     `json:"job_id,omitempty"`
	State          string     `json:"state"`
	Percent        int        `json:"percent"`
	TracksImported int        `json:"tracks_imported"`
	Error          string     `json:"error,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
}

// ToRunJSON converts a run into its JSON shape.
func ToRunJSON(r *models.ImportRun) RunJSON {
	return RunJSON{
		ID:             r.ID(),
		Sequence:       r.Sequence(),
		Provider:       r.Provider(),
		JobID:          r.JobID(),
		State:          r.State().String(),
		Percent:        r.Percent(),
		TracksImported: r.TracksImported(),
		Error:          r.ErrorMessage(),
		StartedAt:      r.StartedAt(),
		FinishedAt:     r.FinishedAt(),
	}
}

// HistoryJSON renders runs as an indented JSON array.
func HistoryJSON(runs []*models.ImportRun) ([]byte, error) {
	out := make([]RunJSON, 0, len(runs))
	for _, r := range runs {
		out = append(out, ToRunJSON(r))
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal history: %w", err)
	}
	return data, nil
}

// WriteHistory writes runs to w in the given format.
func WriteHistory(w io.Writer, runs []*models.ImportRun, f Format) error {
	var data []byte
	var err error

	switch f {
	case FormatTable, "":
		data = []byte(HistoryTable(runs) + "\n")
	case FormatCSV:
		data, err = HistoryCSV(runs)
	case FormatJSON:
		data, err = HistoryJSON(runs)
		data = append(data, '\n')
	default:
		return fmt.Errorf("%w: format %q", shared.ErrInvalidArgument, f)
	}
	if err != nil {
		return err
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	return nil
}
