package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/emotionink/engine/internal/reconciler"
	"github.com/emotionink/engine/pkg/demo"
	"github.com/emotionink/engine/pkg/session"
)

const PlaceHolderText = "Ask about the blueprint..."

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config       *ConsoleConfig
	client       *http.Client
	sess         *session.Session
	chatViewport viewport.Model
	metaViewport viewport.Model
	textarea     textarea.Model
	ready        bool
	width        int
	height       int
	err          error
	loading      bool

	// Start modal state
	showStartModal bool
	startChoice    int
	enteringPath   bool

	// Demo guide overlay state
	guideSteps []demo.GuideStep

	// Quit confirmation state
	showQuitModal bool

	// Message target, cycled with Tab
	target session.MessageTarget

	// Effect playback state
	muted      bool
	nowPlaying string
	cueSeq     int

	// Progress bar state
	progressTick int

	copied bool
}

type sessionStartedMsg struct {
	result *reconciler.TurnResult
	err    error
}

type turnMsg struct {
	result *reconciler.TurnResult
	err    error
}

type sessionMsg struct {
	sess *session.Session
	err  error
}

type guideStepsMsg struct {
	steps []demo.GuideStep
	err   error
}

type effectMsg struct {
	effect session.Effect
}

type cueClearMsg struct {
	seq int
}

type progressTickMsg struct{}

var (
	chatPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	characterStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	eventStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")) // purple

	clueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("220")) // gold

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	loadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")). // bright green
			Bold(true)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)

	modalItemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	modalSelectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("205")).
				Bold(true)

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey
)

func NewConsoleUI(cfg *ConsoleConfig, client *http.Client) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 500
	ta.SetWidth(50)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	chatVp := viewport.New(50, 20)
	chatVp.MouseWheelEnabled = true

	metaVp := viewport.New(20, 20)

	return ConsoleUI{
		config:         cfg,
		client:         client,
		textarea:       ta,
		chatViewport:   chatVp,
		metaViewport:   metaVp,
		target:         session.TargetCharacter,
		showStartModal: true,
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	return textarea.Blink
}

// inGuide reports whether the demo walkthrough overlay is active.
func (m ConsoleUI) inGuide() bool {
	return m.sess != nil &&
		m.sess.Phase == session.PhaseDemo &&
		m.sess.DemoStatus == session.DemoGuide
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}
	if m.showStartModal {
		return m.updateStartModal(msg)
	}
	if m.inGuide() {
		return m.updateGuideModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		mvCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.chatViewport, vpCmd = m.chatViewport.Update(msg)
		m.textarea, tiCmd = m.textarea.Update(msg)
		m.metaViewport, mvCmd = m.metaViewport.Update(msg)
		return m, tea.Batch(tiCmd, vpCmd, mvCmd)

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil

		case tea.KeyTab:
			m.target = nextTarget(m.target)
			m.writeMetaContent()
			return m, nil

		case tea.KeyCtrlR:
			if m.sess != nil && !m.loading {
				return m, m.restart()
			}
			return m, nil

		case tea.KeyCtrlV:
			if m.sess != nil && !m.loading {
				return m, m.toggleVoice()
			}
			return m, nil

		case tea.KeyCtrlG:
			m.muted = !m.muted
			if m.muted {
				m.nowPlaying = ""
			}
			m.writeMetaContent()
			return m, nil

		case tea.KeyCtrlY:
			if m.sess != nil && m.sess.Phase == session.PhaseSuccess && m.sess.SuccessSummary != "" {
				if err := clipboard.WriteAll(m.sess.SuccessSummary); err == nil {
					m.copied = true
					m.writeChatContent()
				}
			}
			return m, nil

		case tea.KeyEnter:
			if m.loading {
				return m, nil
			}
			input := strings.TrimSpace(m.textarea.Value())
			if input == "" {
				return m, nil
			}

			m.textarea.Reset()
			m.loading = true
			m.progressTick = 0
			m.writeChatContent()

			return m, tea.Batch(m.send(input), progressTick())
		}

	case turnMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			m.writeChatContent()
			m.chatViewport.GotoBottom()
			// Resync with the server; the turn may have half-landed.
			return m, m.refreshSession()
		}
		m.err = nil
		m.sess = msg.result.Session
		m.writeChatContent()
		m.writeMetaContent()
		m.chatViewport.GotoBottom()
		return m, tea.Batch(m.playEffects(msg.result.Effects)...)

	case sessionMsg:
		if msg.err != nil {
			m.err = msg.err
			m.writeChatContent()
			return m, nil
		}
		m.sess = msg.sess
		if m.sess.Phase == session.PhaseInit {
			// Restart landed: back to the start choices.
			m.showStartModal = true
			m.startChoice = 0
			m.enteringPath = false
			m.copied = false
			m.textarea.Reset()
			m.textarea.Placeholder = PlaceHolderText
			return m, nil
		}
		m.writeChatContent()
		m.writeMetaContent()
		return m, nil

	case effectMsg:
		// Drop effects from a turn older than the one on screen.
		if m.sess == nil || msg.effect.Turn < m.sess.Turn {
			return m, nil
		}
		if m.muted {
			return m, nil
		}
		m.nowPlaying = describeEffect(msg.effect)
		m.cueSeq++
		m.writeMetaContent()
		return m, clearCueAfter(m.cueSeq, 2*time.Second)

	case cueClearMsg:
		if msg.seq == m.cueSeq {
			m.nowPlaying = ""
			m.writeMetaContent()
		}
		return m, nil

	case progressTickMsg:
		if m.loading {
			m.progressTick++
			m.writeChatContent()
			return m, progressTick()
		}
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.chatViewport, vpCmd = m.chatViewport.Update(msg)
	m.metaViewport, mvCmd = m.metaViewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, mvCmd)
}

func (m *ConsoleUI) resize(width, height int) {
	m.width = width
	m.height = height

	chatWidth := int(float64(m.width)*0.70) - 4
	metaWidth := m.width - chatWidth - 6

	m.chatViewport.Width = chatWidth - 2
	m.chatViewport.Height = m.height - 7
	m.metaViewport.Width = metaWidth - 2
	m.metaViewport.Height = m.height - 4
	m.textarea.SetWidth(chatWidth - 4)

	m.ready = true
	m.writeChatContent()
	m.writeMetaContent()
}

func nextTarget(t session.MessageTarget) session.MessageTarget {
	switch t {
	case session.TargetCharacter:
		return session.TargetWorld
	case session.TargetWorld:
		return session.TargetBoth
	default:
		return session.TargetCharacter
	}
}

func describeEffect(e session.Effect) string {
	switch e.Type {
	case session.EffectSpeech:
		return "voice reply"
	case session.EffectCinematic:
		return "cinematic moment"
	default:
		return strings.ReplaceAll(e.Cue, "_", " ")
	}
}

// playEffects schedules each effect for its stagger offset. Effects are
// presentation-only; state has already committed by the time they fire.
func (m ConsoleUI) playEffects(effects []session.Effect) []tea.Cmd {
	cmds := make([]tea.Cmd, 0, len(effects))
	for _, e := range effects {
		effect := e
		if effect.DelayMS > 0 {
			cmds = append(cmds, tea.Tick(time.Duration(effect.DelayMS)*time.Millisecond, func(time.Time) tea.Msg {
				return effectMsg{effect: effect}
			}))
		} else {
			cmds = append(cmds, func() tea.Msg {
				return effectMsg{effect: effect}
			})
		}
	}
	return cmds
}

func clearCueAfter(seq int, d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return cueClearMsg{seq: seq}
	})
}

func progressTick() tea.Cmd {
	return tea.Tick(time.Millisecond*200, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}

func (m ConsoleUI) send(text string) tea.Cmd {
	return func() tea.Msg {
		result, err := sendMessage(m.client, m.config.APIBaseURL, m.sess.ID, text, m.target)
		return turnMsg{result, err}
	}
}

func (m ConsoleUI) refreshSession() tea.Cmd {
	return func() tea.Msg {
		s, err := getSessionSnapshot(m.client, m.config.APIBaseURL, m.sess.ID)
		return sessionMsg{s, err}
	}
}

func (m ConsoleUI) toggleVoice() tea.Cmd {
	mode := session.ModeVoice
	if m.sess.CommunicationMode == session.ModeVoice {
		mode = session.ModeText
	}
	return func() tea.Msg {
		s, err := setCommunicationMode(m.client, m.config.APIBaseURL, m.sess.ID, mode)
		return sessionMsg{s, err}
	}
}

func (m ConsoleUI) restart() tea.Cmd {
	return func() tea.Msg {
		s, err := restartSession(m.client, m.config.APIBaseURL, m.sess.ID)
		return sessionMsg{s, err}
	}
}

func (m ConsoleUI) startDemo() tea.Cmd {
	return tea.Batch(
		func() tea.Msg {
			result, err := createDemoSession(m.client, m.config.APIBaseURL)
			return sessionStartedMsg{result, err}
		},
		func() tea.Msg {
			steps, err := getGuideSteps(m.client, m.config.APIBaseURL)
			return guideStepsMsg{steps, err}
		},
	)
}

func (m ConsoleUI) startLive(imagePath string) tea.Cmd {
	return func() tea.Msg {
		result, err := createSession(m.client, m.config.APIBaseURL, imagePath)
		return sessionStartedMsg{result, err}
	}
}

// --- Chat panel ---

func (m *ConsoleUI) writeChatContent() {
	chatWidth := m.chatViewport.Width - 6
	if chatWidth < 20 {
		chatWidth = 20
	}

	var content strings.Builder
	content.WriteString(titleStyle.Render("EMOTIONINK") + "\n\n")
	content.WriteString("Your drawing is alive. Help them remember the blueprint.\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", chatWidth-6)) + "\n\n")

	if m.sess != nil {
		name := "Character"
		if m.sess.Character != nil {
			name = m.sess.Character.Name
		}
		for _, item := range m.sess.History {
			content.WriteString(formatHistoryItem(item, name, chatWidth) + "\n\n")
		}

		switch m.sess.Phase {
		case session.PhaseSuccess:
			content.WriteString(successStyle.Render("★ Blueprint complete!") + "\n\n")
			content.WriteString(wordwrap.String(m.sess.SuccessSummary, chatWidth-6) + "\n\n")
			if m.copied {
				content.WriteString(promptStyle.Render("Summary copied to clipboard.") + "\n")
			} else {
				content.WriteString(promptStyle.Render("Ctrl+Y to copy the summary, Ctrl+R to start again.") + "\n")
			}
		case session.PhaseError:
			content.WriteString(errorStyle.Render(m.sess.ErrorMessage) + "\n")
			content.WriteString(promptStyle.Render("Ctrl+R to restart.") + "\n")
		}

		if m.sess.CinematicImageURL != "" {
			content.WriteString(clueStyle.Render("✦ A cinematic moment unfolds.") + "\n\n")
		}
	}

	if m.loading {
		content.WriteString(m.renderProgressBar())
	}
	if m.err != nil {
		content.WriteString(errorStyle.Render("Error: "+m.err.Error()) + "\n")
	}

	m.chatViewport.SetContent(content.String())
	m.chatViewport.GotoBottom()
}

func formatHistoryItem(item session.HistoryItem, characterName string, width int) string {
	switch item.Role {
	case session.RoleUser:
		if strings.HasPrefix(item.Text, "data:") {
			return userStyle.Render("You: ") + promptStyle.Render("[your sketch]")
		}
		return userStyle.Render("You: ") + wordwrap.String(item.Text, width-6)
	case session.RoleCharacter:
		return characterStyle.Render(characterName+": ") + wordwrap.String(item.Text, width-6)
	case session.RoleEvent:
		return eventStyle.Render(wordwrap.String("✧ "+item.Text, width-6))
	case session.RoleWorld:
		return clueStyle.Render(wordwrap.String("⚙ "+item.Text, width-6))
	default:
		return wordwrap.String(item.Text, width-6)
	}
}

func (m ConsoleUI) renderProgressBar() string {
	usable := m.chatViewport.Width - 6
	if usable <= 0 {
		usable = 30
	}
	if usable > 80 {
		usable = 80
	} else if usable < 10 {
		usable = 10
	}

	const totalFrames = 40
	frame := m.progressTick % totalFrames
	filled := (frame * usable) / totalFrames

	var bar strings.Builder
	for i := 0; i < usable; i++ {
		if i < filled {
			bar.WriteString("█")
		} else if i == filled && frame%4 < 2 {
			bar.WriteString("▓")
		} else {
			bar.WriteString("░")
		}
	}
	return separatorStyle.Render(bar.String())
}

// --- Meta panel ---

func meter(label string, value float64, width int) string {
	if width < 10 {
		width = 10
	}
	filled := int(value / 100 * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return fmt.Sprintf("%-10s %s %3.0f", label, bar, value)
}

func (m *ConsoleUI) writeMetaContent() {
	if m.sess == nil {
		return
	}
	s := m.sess
	barWidth := m.metaViewport.Width - 18
	if barWidth < 6 {
		barWidth = 6
	}

	var content strings.Builder

	if s.Character != nil {
		content.WriteString(titleStyle.Render(strings.ToUpper(s.Character.Name)) + "\n")
		content.WriteString(promptStyle.Render(s.Character.ShortTitle) + "\n")
		if s.MoodLabel != "" {
			content.WriteString("Mood: " + s.MoodLabel + "\n")
		}
		if len(s.Character.Traits) > 0 {
			content.WriteString(promptStyle.Render(strings.Join(s.Character.Traits, " · ")) + "\n")
		}
		content.WriteString("\n")
	}

	if s.EmotionState != nil {
		content.WriteString(titleStyle.Render("EMOTIONS") + "\n")
		content.WriteString(meter("Courage", s.EmotionState.Courage, barWidth) + "\n")
		content.WriteString(meter("Fear", s.EmotionState.Fear, barWidth) + "\n")
		content.WriteString(meter("Curiosity", s.EmotionState.Curiosity, barWidth) + "\n")
		content.WriteString(meter("Happiness", s.EmotionState.Happiness, barWidth) + "\n\n")
	}

	if s.BlueprintState != nil && s.BlueprintInfo != nil {
		content.WriteString(titleStyle.Render("BLUEPRINT") + "\n")
		content.WriteString(wordwrap.String(s.BlueprintInfo.Title, m.metaViewport.Width-2) + "\n")
		content.WriteString(meter("Progress", s.BlueprintState.Progress, barWidth) + "\n")
		content.WriteString(meter("Underst.", s.BlueprintState.Understanding, barWidth) + "\n")
		content.WriteString(meter("Complex.", s.BlueprintState.Complexity, barWidth) + "\n\n")
	}

	if s.WorldContext != nil {
		content.WriteString(titleStyle.Render("WORLD") + "\n")
		content.WriteString(s.WorldContext.CurrentLocationName + "\n")
		if s.WorldMood != "" {
			content.WriteString("Mood: " + s.WorldMood + "\n")
		}
		if s.AmbientSound != nil && s.AmbientSound.Description != "" {
			content.WriteString(promptStyle.Render(wordwrap.String("♪ "+s.AmbientSound.Description, m.metaViewport.Width-2)) + "\n")
		}
		if s.AmbientAnimation != nil && s.AmbientAnimation.Description != "" {
			content.WriteString(promptStyle.Render(wordwrap.String("~ "+s.AmbientAnimation.Description, m.metaViewport.Width-2)) + "\n")
		}
		content.WriteString("\n")
	}

	content.WriteString("Talking to: " + string(m.target) + "\n")
	if s.CommunicationMode == session.ModeVoice {
		content.WriteString("Voice replies: on\n")
	}
	if m.muted {
		content.WriteString("Sound: muted\n")
	} else if m.nowPlaying != "" {
		content.WriteString(loadingStyle.Render("♪ "+m.nowPlaying) + "\n")
	}

	content.WriteString("\n")
	content.WriteString("Commands:\n")
	content.WriteString("• Enter: Send\n")
	content.WriteString("• Tab: Switch target\n")
	content.WriteString("• Ctrl+V: Voice replies\n")
	content.WriteString("• Ctrl+G: Mute\n")
	content.WriteString("• Ctrl+R: Restart\n")
	content.WriteString("• Ctrl+C: Quit\n")

	m.metaViewport.SetContent(content.String())
}

// --- Start modal ---

var startOptions = []string{
	"Watch the interactive demo",
	"Bring your own sketch to life",
}

func (m ConsoleUI) updateStartModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case sessionStartedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.sess = msg.result.Session
		m.showStartModal = false
		m.enteringPath = false
		m.textarea.Reset()
		m.textarea.Placeholder = PlaceHolderText
		m.textarea.Focus()
		m.writeChatContent()
		m.writeMetaContent()
		cmds := append(m.playEffects(msg.result.Effects), textarea.Blink)
		return m, tea.Batch(cmds...)

	case guideStepsMsg:
		if msg.err == nil {
			m.guideSteps = msg.steps
		}
		return m, nil

	case tea.KeyMsg:
		if m.loading {
			if msg.Type == tea.KeyCtrlC {
				return m, tea.Quit
			}
			return m, nil
		}

		if m.enteringPath {
			switch msg.Type {
			case tea.KeyCtrlC:
				return m, tea.Quit
			case tea.KeyEsc:
				m.enteringPath = false
				m.textarea.Reset()
				return m, nil
			case tea.KeyEnter:
				path := strings.TrimSpace(m.textarea.Value())
				if path == "" {
					return m, nil
				}
				m.loading = true
				m.err = nil
				return m, m.startLive(path)
			}
			var cmd tea.Cmd
			m.textarea, cmd = m.textarea.Update(msg)
			return m, cmd
		}

		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyUp:
			if m.startChoice > 0 {
				m.startChoice--
			}
		case tea.KeyDown:
			if m.startChoice < len(startOptions)-1 {
				m.startChoice++
			}
		case tea.KeyEnter:
			if m.startChoice == 0 {
				m.loading = true
				m.err = nil
				return m, m.startDemo()
			}
			m.enteringPath = true
			m.textarea.Reset()
			m.textarea.Placeholder = "Path to your sketch (png/jpg)..."
			m.textarea.Focus()
			return m, textarea.Blink
		}
	}

	return m, nil
}

func (m ConsoleUI) renderStartModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("EMOTIONINK"))
	content.WriteString("\n\n")

	switch {
	case m.loading:
		content.WriteString(loadingStyle.Render("Bringing your character to life..."))
	case m.enteringPath:
		content.WriteString("Where is your character drawing?\n\n")
		content.WriteString(m.textarea.View())
		content.WriteString("\n\n")
		content.WriteString(promptStyle.Render("Enter to upload, Esc to go back"))
	default:
		for i, option := range startOptions {
			if i == m.startChoice {
				content.WriteString(modalSelectedItemStyle.Render(fmt.Sprintf("▶ %s", option)))
			} else {
				content.WriteString(modalItemStyle.Render(fmt.Sprintf("  %s", option)))
			}
			content.WriteString("\n")
		}
		content.WriteString("\n")
		content.WriteString(promptStyle.Render("Use ↑/↓ to navigate, Enter to select, Ctrl+C to exit"))
	}

	if m.err != nil {
		content.WriteString("\n\n")
		content.WriteString(errorStyle.Render(m.err.Error()))
	}

	modal := modalStyle.Width(60).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

// --- Demo guide overlay ---

func (m ConsoleUI) updateGuideModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case guideStepsMsg:
		if msg.err == nil {
			m.guideSteps = msg.steps
		}
		return m, nil

	case sessionMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.sess = msg.sess
		m.writeChatContent()
		m.writeMetaContent()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			m.showQuitModal = true
			return m, nil
		case tea.KeyEsc:
			return m, m.endGuideCmd()
		case tea.KeyEnter, tea.KeyRight:
			if m.sess.DemoStep >= len(m.guideSteps)-1 {
				return m, m.endGuideCmd()
			}
			return m, m.advanceGuideCmd()
		}
	}

	return m, nil
}

func (m ConsoleUI) advanceGuideCmd() tea.Cmd {
	return func() tea.Msg {
		s, err := advanceGuide(m.client, m.config.APIBaseURL, m.sess.ID)
		return sessionMsg{s, err}
	}
}

func (m ConsoleUI) endGuideCmd() tea.Cmd {
	return func() tea.Msg {
		s, err := endGuide(m.client, m.config.APIBaseURL, m.sess.ID)
		return sessionMsg{s, err}
	}
}

func (m ConsoleUI) renderGuideModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	step := m.sess.DemoStep
	if len(m.guideSteps) == 0 {
		content.WriteString(loadingStyle.Render("Loading the walkthrough..."))
	} else {
		if step >= len(m.guideSteps) {
			step = len(m.guideSteps) - 1
		}
		gs := m.guideSteps[step]
		content.WriteString(modalTitleStyle.Render(gs.Title))
		content.WriteString("\n\n")
		content.WriteString(wordwrap.String(gs.Body, 52))
		content.WriteString("\n\n")
		content.WriteString(promptStyle.Render(fmt.Sprintf("Step %d of %d", step+1, len(m.guideSteps))))
		content.WriteString("\n")
		if step >= len(m.guideSteps)-1 {
			content.WriteString(promptStyle.Render("Enter to start the story, Esc to skip"))
		} else {
			content.WriteString(promptStyle.Render("Enter for next, Esc to skip"))
		}
	}

	modal := modalStyle.Width(60).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

// --- Quit modal ---

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEnter:
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
				if !m.showStartModal && !m.inGuide() {
					m.textarea.Focus()
					return m, textarea.Blink
				}
				return m, nil
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Leave the story?"))
	content.WriteString("\n\n")
	content.WriteString("Your session stays saved on the server.")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

// --- View ---

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}
	if m.showStartModal {
		return m.renderStartModal()
	}
	if m.inGuide() {
		return m.renderGuideModal()
	}

	if !m.ready {
		return "\n  Initializing..."
	}

	chatWidth := int(float64(m.width)*0.70) - 4
	metaWidth := m.width - chatWidth - 6

	chatPanel := chatPanelStyle.Width(chatWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.chatViewport.View(),
			"",
			separatorStyle.Render(strings.Repeat("─", chatWidth-4)),
			m.textarea.View(),
		),
	)

	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		m.metaViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, chatPanel, metaPanel)
}
