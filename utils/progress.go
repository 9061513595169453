package utils

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cheggaaa/pb/v3"
)

// BoardRow is one job line of the progress board
type BoardRow struct {
	ID     string
	Label  string
	Status string
	// Progress is only rendered when ShowProgress is set
	Progress     float64
	ShowProgress bool
	Detail       string
}

const (
	boardBarWidth = 30
	barTemplate   = `{{bar . }}`
)

// ProgressBoard renders the job list, redrawing in place on ANSI terminals
type ProgressBoard struct {
	out       io.Writer
	ansi      bool
	lastLines int
	mutex     sync.Mutex
}

// NewProgressBoard creates a board writing to out
func NewProgressBoard(out io.Writer, ansi bool) *ProgressBoard {
	return &ProgressBoard{out: out, ansi: ansi}
}

// Draw replaces the previously drawn board with rows and a summary line
func (b *ProgressBoard) Draw(rows []BoardRow, summary string) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	var sb strings.Builder
	if b.ansi && b.lastLines > 0 {
		fmt.Fprintf(&sb, "\033[%dA\033[J", b.lastLines)
	}

	lines := RenderRows(rows)
	if summary != "" {
		lines = append(lines, summary)
	}
	for _, line := range lines {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}

	b.lastLines = len(lines)
	_, err := io.WriteString(b.out, sb.String())
	return err
}

// RenderRows formats rows without any terminal control sequences
func RenderRows(rows []BoardRow) []string {
	if len(rows) == 0 {
		return []string{"No downloads yet"}
	}

	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, renderRow(row))
	}
	return lines
}

func renderRow(row BoardRow) string {
	label := truncate(row.Label, 40)
	line := fmt.Sprintf("%-10s %-12s %-40s", shortID(row.ID), row.Status, label)

	if row.ShowProgress {
		bar := pb.New(100).SetTemplateString(barTemplate).SetWidth(boardBarWidth)
		bar.SetCurrent(int64(row.Progress))
		line += fmt.Sprintf(" %s %3.0f%%", bar.String(), row.Progress)
	}

	if row.Detail != "" {
		line += "  " + row.Detail
	}
	return strings.TrimRight(line, " ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

// TransferSummary contains final statistics of a payload transfer
type TransferSummary struct {
	TotalBytes   int64
	TotalTime    time.Duration
	AverageSpeed float64 // bytes per second
	Filename     string
}

// ByteProgress tracks a payload fetch with a pb bar
type ByteProgress struct {
	bar       *pb.ProgressBar
	quiet     bool
	startTime time.Time
	current   atomic.Int64
}

// NewByteProgress creates a byte progress tracker. total <= 0 means the size is unknown.
func NewByteProgress(out io.Writer, total int64, quiet bool) *ByteProgress {
	p := &ByteProgress{quiet: quiet, startTime: time.Now()}
	if quiet {
		return p
	}

	tmpl := `{{string . "prefix"}}{{counters . }} {{bar . }} {{percent . }} {{speed . }} {{rtime . "ETA %s"}}`
	if total <= 0 {
		tmpl = `{{string . "prefix"}}{{counters . }} {{speed . }}`
	}

	bar := pb.New64(total).SetTemplateString(tmpl)
	bar.SetWriter(out)
	bar.Set(pb.Bytes, true)
	bar.Set(pb.SIBytesPrefix, true)
	bar.Set("prefix", "Fetching: ")
	p.bar = bar.Start()
	return p
}

// Wrap returns a reader that advances the progress as it is read
func (p *ByteProgress) Wrap(r io.Reader) io.Reader {
	return &progressReader{reader: r, progress: p}
}

func (p *ByteProgress) add(n int) {
	current := p.current.Add(int64(n))
	if p.bar != nil {
		p.bar.SetCurrent(current)
	}
}

// Finish stops the bar and returns the transfer summary
func (p *ByteProgress) Finish() *TransferSummary {
	if p.bar != nil {
		p.bar.Finish()
	}

	total := p.current.Load()
	elapsed := time.Since(p.startTime)
	summary := &TransferSummary{TotalBytes: total, TotalTime: elapsed}
	if elapsed > 0 {
		summary.AverageSpeed = float64(total) / elapsed.Seconds()
	}
	return summary
}

// IsQuiet returns whether the tracker is in quiet mode
func (p *ByteProgress) IsQuiet() bool {
	return p.quiet
}

type progressReader struct {
	reader   io.Reader
	progress *ByteProgress
}

func (r *progressReader) Read(b []byte) (int, error) {
	n, err := r.reader.Read(b)
	if n > 0 {
		r.progress.add(n)
	}
	return n, err
}
