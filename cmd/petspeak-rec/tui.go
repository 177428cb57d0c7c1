package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/petspeakapp/petspeak/internal/analyzer"
	"github.com/petspeakapp/petspeak/internal/credit"
	"github.com/petspeakapp/petspeak/internal/orchestrator"
	"github.com/petspeakapp/petspeak/pkg/capture"
	"github.com/petspeakapp/petspeak/pkg/types"
)

type uiState int

const (
	uiIdle uiState = iota
	uiRecording
	uiAnalyzing
	uiResult
)

type tickMsg time.Time

type analysisDoneMsg struct {
	result *analyzer.Result
	err    error
}

type savedMsg struct{ err error }

// levelGlyphs maps normalized level samples onto bar heights.
var levelGlyphs = []rune("▁▂▃▄▅▆▇█")

var (
	styleRec     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	styleIdle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleBar     = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	styleTitle   = lipgloss.NewStyle().Foreground(lipgloss.Color("246")).Bold(true)
	styleResult  = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	styleUrgent  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleDim     = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	styleErr     = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	styleSaved   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleHelp    = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	styleHelpKey = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
)

type model struct {
	recorder *capture.Recorder
	orc      *orchestrator.Orchestrator
	mirror   *credit.Mirror
	saver    *historyClient
	language types.LanguageCode
	animal   types.AnimalType

	state   uiState
	samples []float64
	elapsed int
	result  *analyzer.Result
	saved   bool
	errLine string
	width   int
	height  int
}

func newModel(recorder *capture.Recorder, orc *orchestrator.Orchestrator, mirror *credit.Mirror, saver *historyClient, language types.LanguageCode, animal types.AnimalType) model {
	return model{
		recorder: recorder,
		orc:      orc,
		mirror:   mirror,
		saver:    saver,
		language: language,
		animal:   animal,
		samples:  make([]float64, capture.LevelBuckets),
	}
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{tick()}
	if m.mirror != nil {
		mirror := m.mirror
		cmds = append(cmds, func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = mirror.Refresh(ctx)
			return nil
		})
	}
	return tea.Batch(cmds...)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		m.samples = m.recorder.Meter().Samples()
		m.elapsed = m.recorder.Elapsed()
		return m, tick()

	case analysisDoneMsg:
		if msg.err != nil {
			m.state = uiIdle
			m.errLine = analysisError(msg.err)
			return m, nil
		}
		m.state = uiResult
		m.result = msg.result
		m.saved = false
		m.errLine = ""

	case savedMsg:
		if msg.err != nil {
			m.errLine = msg.err.Error()
		} else {
			m.saved = true
			m.errLine = ""
		}
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.recorder.Reset()
		return m, tea.Quit

	case " ":
		switch m.state {
		case uiIdle, uiResult:
			if err := m.recorder.Start(context.Background()); err != nil {
				m.errLine = err.Error()
				return m, nil
			}
			m.state = uiRecording
			m.result = nil
			m.saved = false
			m.errLine = ""
		case uiRecording:
			artifact, err := m.recorder.Stop()
			if err != nil {
				m.errLine = err.Error()
				m.state = uiIdle
				return m, nil
			}
			m.state = uiAnalyzing
			orc, lang := m.orc, m.language
			return m, func() tea.Msg {
				res, err := orc.Submit(context.Background(), artifact, lang)
				return analysisDoneMsg{result: res, err: err}
			}
		}

	case "a":
		// Retry with the preserved artifact after a failed analysis.
		if m.state == uiIdle {
			if artifact := m.recorder.Artifact(); artifact != nil {
				m.state = uiAnalyzing
				m.errLine = ""
				orc, lang := m.orc, m.language
				return m, func() tea.Msg {
					res, err := orc.Submit(context.Background(), artifact, lang)
					return analysisDoneMsg{result: res, err: err}
				}
			}
		}

	case "s":
		if m.state == uiResult && m.result != nil && !m.saved {
			saver, res, animal := m.saver, m.result, m.animal
			return m, func() tea.Msg {
				ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				return savedMsg{err: saver.Save(ctx, res, animal)}
			}
		}

	case "n":
		if m.state == uiResult || m.state == uiIdle {
			m.recorder.Reset()
			m.state = uiIdle
			m.result = nil
			m.saved = false
			m.errLine = ""
		}
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(styleTitle.Render("petspeak") + "\n\n")

	switch m.state {
	case uiRecording:
		b.WriteString(styleRec.Render(fmt.Sprintf("● REC %ds", m.elapsed)) + "\n")
	case uiAnalyzing:
		b.WriteString(styleIdle.Render("◌ ANALYZING…") + "\n")
	default:
		b.WriteString(styleIdle.Render("○ STANDBY") + "\n")
	}
	b.WriteString(styleBar.Render(renderLevels(m.samples)) + "\n")

	if m.mirror != nil {
		if remaining, ok := m.mirror.Remaining(); ok {
			b.WriteString(styleDim.Render(fmt.Sprintf("credits: %d remaining", remaining)) + "\n")
		}
	}
	b.WriteString("\n")

	if m.state == uiResult && m.result != nil {
		b.WriteString(m.renderResult())
	}

	if m.errLine != "" {
		b.WriteString(styleErr.Render("⚠ "+m.errLine) + "\n\n")
	}

	b.WriteString(styleHelpKey.Render("space") + styleHelp.Render(" record/stop  "))
	if m.state == uiIdle && m.recorder.Artifact() != nil {
		b.WriteString(styleHelpKey.Render("a") + styleHelp.Render(" retry  "))
	}
	if m.state == uiResult {
		b.WriteString(styleHelpKey.Render("s") + styleHelp.Render(" save  "))
		b.WriteString(styleHelpKey.Render("n") + styleHelp.Render(" discard  "))
	}
	b.WriteString(styleHelpKey.Render("q") + styleHelp.Render(" quit") + "\n")

	return b.String()
}

func (m model) renderResult() string {
	var b strings.Builder
	res := m.result

	b.WriteString(styleResult.Render(fmt.Sprintf("“%s”", res.Translation)) + "\n")
	b.WriteString(styleDim.Render(fmt.Sprintf("%s · %s · %d%% confident", res.AnimalType, res.DetectedNeed, res.Confidence)) + "\n\n")

	action := styleResult
	if res.Action.Urgent {
		action = styleUrgent
	}
	b.WriteString(action.Render(fmt.Sprintf("→ %s", res.Action.Title)) + "\n")
	if res.Action.Description != "" {
		b.WriteString(styleDim.Render("  "+res.Action.Description) + "\n")
	}
	for _, tip := range res.Tips {
		b.WriteString(styleDim.Render("  • "+tip) + "\n")
	}
	if m.saved {
		b.WriteString(styleSaved.Render("[✓ saved]") + "\n")
	}
	b.WriteString("\n")
	return b.String()
}

// renderLevels draws the level meter as one bar glyph per sample.
func renderLevels(samples []float64) string {
	var b strings.Builder
	for _, s := range samples {
		idx := int(s * float64(len(levelGlyphs)-1))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(levelGlyphs) {
			idx = len(levelGlyphs) - 1
		}
		b.WriteRune(levelGlyphs[idx])
	}
	return b.String()
}

// analysisError flattens submit failures into a short, user-facing line.
func analysisError(err error) string {
	switch {
	case errors.Is(err, orchestrator.ErrOutOfCredits):
		return "out of credits — sign up on the server to get more"
	case errors.Is(err, orchestrator.ErrAnalysisTimeout):
		return "analysis timed out — the credit was consumed, try again"
	case errors.Is(err, analyzer.ErrNotDelivered):
		return "could not reach the server — your credit was refunded"
	case errors.Is(err, analyzer.ErrEmptyAudio):
		return "nothing was recorded"
	default:
		return err.Error()
	}
}
