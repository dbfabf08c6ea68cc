package commands

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/GriffinCanCode/speakerline/internal/orchestrator"
	"github.com/GriffinCanCode/speakerline/internal/orchestrator/cost"
	"github.com/GriffinCanCode/speakerline/internal/orchestrator/transcript"
)

var (
	colorCyan   = lipgloss.Color("#00FFFF")
	colorGray   = lipgloss.Color("#666666")
	colorYellow = lipgloss.Color("#FFFF00")
	colorRed    = lipgloss.Color("#FF0000")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	speakerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	timeStyle    = lipgloss.NewStyle().Foreground(colorGray)
	topicStyle   = lipgloss.NewStyle().Foreground(colorYellow)
	dimStyle     = lipgloss.NewStyle().Foreground(colorGray)
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorRed)
)

func renderSegment(seg transcript.Segment, kind string) string {
	marker := "+"
	if kind == string(transcript.SegmentUpdated) {
		marker = "~"
	}
	return fmt.Sprintf("%s %s %s %s %s",
		dimStyle.Render(marker),
		timeStyle.Render(seg.StartTime.Format("15:04:05")),
		speakerStyle.Render(seg.Speaker+":"),
		seg.Text,
		topicStyle.Render("["+seg.Topic+"]"),
	)
}

func renderNotice(code, msg string) string {
	return errorStyle.Render(code) + " " + msg
}

func renderSummary(id string, st orchestrator.Status) string {
	return dimStyle.Render(fmt.Sprintf("session %s: %d segments, %.1fs audio, ~$%.4f",
		id, st.Segments, st.TotalSeconds, st.EstimatedCostUSD))
}

func renderSnapshot(snap orchestrator.Snapshot) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Session "+snap.SessionID) + "\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("saved %s, %d segments, %.1fs audio in %d chunks, ~$%.4f at default rate",
		snap.TakenAt.Format("2006-01-02 15:04:05"), len(snap.Segments), snap.Seconds, snap.Chunks,
		snap.Seconds/60*cost.DefaultRatePerMinute)) + "\n\n")

	for _, seg := range snap.Segments {
		b.WriteString(renderSegment(seg, string(transcript.SegmentCreated)) + "\n")
	}
	if n := len(snap.Buffers); n > 0 {
		b.WriteString("\n" + dimStyle.Render(fmt.Sprintf("%d speaker buffers hold untranscribed audio", n)) + "\n")
	}
	return b.String()
}
