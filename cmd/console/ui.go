package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/muesli/reflow/wordwrap"

	"github.com/jwebster45206/adventure-engine/internal/services/effectlog"
	"github.com/jwebster45206/adventure-engine/internal/sessions"
	"github.com/jwebster45206/adventure-engine/pkg/actor"
	"github.com/jwebster45206/adventure-engine/pkg/adventure"
	"github.com/jwebster45206/adventure-engine/pkg/storage"
)

const (
	PlaceHolderText = "Type a command (help for the list)..."
	maxFeedLines    = 200
	pulseFrames     = 6
)

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	manager       *sessions.Manager
	storage       storage.Storage
	clientID      uuid.UUID
	authenticated bool

	session     *sessions.Session
	unsubscribe func()
	changes     chan struct{}

	feed         []string
	feedViewport viewport.Model
	metaViewport viewport.Model
	textarea     textarea.Model
	ready        bool
	width        int
	height       int
	err          error

	// Adventure selection state
	showAdventureModal bool
	adventures         []adventure.Adventure
	selectedAdventure  int
	loadingAdventures  bool

	// Quit confirmation state
	showQuitModal bool

	// Shake and flash effects pulse the surge border for a few frames
	pulse int
}

type sessionLoadedMsg struct {
	session *sessions.Session
	err     error
}

type adventuresLoadedMsg struct {
	adventures []adventure.Adventure
	err        error
}

type engineChangedMsg struct{}

type pulseTickMsg struct{}

var (
	feedPanelStyle = lipgloss.NewStyle().
			PaddingTop(1).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(1).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	toastStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")). // yellow
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	loadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	activeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("205")).
			Bold(true)

	surgeStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("135")).
			Padding(0, 1)

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

var themeColors = map[adventure.Theme]lipgloss.Color{
	adventure.ThemeRed:    "196",
	adventure.ThemeGreen:  "82",
	adventure.ThemeBlue:   "39",
	adventure.ThemeGold:   "220",
	adventure.ThemePurple: "135",
}

func NewConsoleUI(manager *sessions.Manager, store storage.Storage, clientID uuid.UUID, authenticated bool) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 200
	ta.SetWidth(50)
	ta.SetHeight(1)
	ta.ShowLineNumbers = false

	feedVp := viewport.New(50, 20)
	feedVp.MouseWheelEnabled = true

	return ConsoleUI{
		manager:       manager,
		storage:       store,
		clientID:      clientID,
		authenticated: authenticated,
		changes:       make(chan struct{}, 1),
		textarea:      ta,
		feedViewport:  feedVp,
		metaViewport:  viewport.New(30, 20),
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	return tea.Batch(m.loadSession(), waitForChange(m.changes), textarea.Blink)
}

// waitForChange turns the next engine notification into a message.
func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return engineChangedMsg{}
	}
}

func pulseTick() tea.Cmd {
	return tea.Tick(120*time.Millisecond, func(time.Time) tea.Msg {
		return pulseTickMsg{}
	})
}

func (m ConsoleUI) loadSession() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s, err := m.manager.Get(ctx, m.clientID)
		return sessionLoadedMsg{s, err}
	}
}

func (m ConsoleUI) loadAdventures() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		titles, err := m.storage.ListAdventures(ctx)
		if err != nil {
			return adventuresLoadedMsg{err: err}
		}
		list := make([]adventure.Adventure, 0, len(titles))
		for id, title := range titles {
			list = append(list, adventure.Adventure{ID: id, Title: title})
		}
		sort.Slice(list, func(i, j int) bool { return list[i].Title < list[j].Title })
		return adventuresLoadedMsg{adventures: list}
	}
}

func (m ConsoleUI) startSession(adventureID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s, err := m.manager.Start(ctx, m.clientID, adventureID, m.authenticated)
		return sessionLoadedMsg{s, err}
	}
}

// attach makes s the live session and subscribes to its changes.
func (m *ConsoleUI) attach(s *sessions.Session) {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	m.session = s
	changes := m.changes
	m.unsubscribe = s.Engine.Subscribe(func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	})
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.ready = true
		m.refresh()
		return m, nil

	case sessionLoadedMsg:
		m.loadingAdventures = false
		if errors.Is(msg.err, sessions.ErrSessionNotFound) {
			m.showAdventureModal = true
			m.loadingAdventures = true
			return m, m.loadAdventures()
		}
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.attach(msg.session)
		m.showAdventureModal = false
		m.feed = nil
		v := msg.session.View()
		m.addFeed(titleStyle.Render(strings.ToUpper(v.Title)))
		if adv := msg.session.Adventure(); adv != nil && adv.Body != "" {
			m.addFeed(wordwrap.String(adv.Body, m.feedWidth()))
		}
		m.addFeed(promptStyle.Render("Session " + v.SessionID + " • turn " + fmt.Sprint(v.CurrentTurn)))
		m.refresh()
		return m, textarea.Blink

	case adventuresLoadedMsg:
		m.loadingAdventures = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.adventures = msg.adventures
		m.selectedAdventure = 0
		return m, nil

	case engineChangedMsg:
		pulse := m.refresh()
		cmds := []tea.Cmd{waitForChange(m.changes)}
		if pulse && m.pulse == 0 {
			m.pulse = pulseFrames
			cmds = append(cmds, pulseTick())
		}
		return m, tea.Batch(cmds...)

	case pulseTickMsg:
		if m.pulse > 0 {
			m.pulse--
			if m.pulse > 0 {
				return m, pulseTick()
			}
		}
		return m, nil

	case tea.KeyMsg:
		if m.showAdventureModal {
			return m.updateAdventureModal(msg)
		}
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyEnter:
			input := strings.TrimSpace(m.textarea.Value())
			m.textarea.Reset()
			if input == "" || m.session == nil {
				return m, nil
			}
			return m.handleCommand(input)
		}
	}

	var tiCmd, vpCmd tea.Cmd
	m.textarea, tiCmd = m.textarea.Update(msg)
	m.feedViewport, vpCmd = m.feedViewport.Update(msg)
	return m, tea.Batch(tiCmd, vpCmd)
}

func (m ConsoleUI) handleCommand(input string) (tea.Model, tea.Cmd) {
	m.addFeed(promptStyle.Render(":: " + input))

	switch strings.ToLower(input) {
	case "help":
		m.addFeed(helpText)
		m.refresh()
		return m, nil

	case "copy":
		id := m.session.Engine.SessionID()
		if err := clipboard.WriteAll(id); err != nil {
			m.addFeed(errorStyle.Render("Clipboard unavailable: " + err.Error()))
		} else {
			m.addFeed(statusStyle.Render("Copied " + id))
		}
		m.refresh()
		return m, nil

	case "reset":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if m.unsubscribe != nil {
			m.unsubscribe()
			m.unsubscribe = nil
		}
		m.session = nil
		if err := m.manager.Reset(ctx, m.clientID); err != nil {
			m.err = err
			return m, nil
		}
		m.showAdventureModal = true
		m.loadingAdventures = true
		return m, m.loadAdventures()

	case "quit", "exit":
		m.showQuitModal = true
		return m, nil
	}

	status, err := execute(m.session, input)
	if err != nil {
		m.addFeed(errorStyle.Render(err.Error()))
	} else if status != "" {
		m.addFeed(statusStyle.Render(status))
	}
	m.refresh()
	return m, nil
}

// refresh drains fired effects into the feed and redraws both panels. It
// reports whether a shake or flash effect fired.
func (m *ConsoleUI) refresh() bool {
	pulse := false
	if m.session != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		entries, err := m.manager.DrainEffects(ctx, m.clientID)
		cancel()
		if err != nil {
			m.addFeed(errorStyle.Render("Failed to read effects: " + err.Error()))
		}
		for _, e := range entries {
			if e.Action == string(adventure.ActionShake) || e.Action == string(adventure.ActionFlash) {
				pulse = true
			}
			m.addFeed(renderEffect(e))
		}
		if m.session.Engine.ConsumeAutoExpand() {
			pulse = true
		}
	}

	if !m.ready {
		return pulse
	}
	m.resize()
	m.feedViewport.SetContent(strings.Join(m.feed, "\n"))
	m.feedViewport.GotoBottom()
	if m.session != nil {
		m.metaViewport.SetContent(writeMetadata(m.session.View(), m.session.Adventure()))
	}
	return pulse
}

func (m *ConsoleUI) addFeed(line string) {
	m.feed = append(m.feed, line)
	if len(m.feed) > maxFeedLines {
		m.feed = m.feed[len(m.feed)-maxFeedLines:]
	}
}

func (m ConsoleUI) feedWidth() int {
	if w := m.feedViewport.Width - 4; w > 10 {
		return w
	}
	return 40
}

func (m *ConsoleUI) resize() {
	feedWidth := int(float64(m.width)*0.65) - 4
	metaWidth := m.width - feedWidth - 6

	m.feedViewport.Width = feedWidth - 2
	m.feedViewport.Height = m.height - m.surgeHeight() - 6
	m.metaViewport.Width = metaWidth - 2
	m.metaViewport.Height = m.height - 3
	m.textarea.SetWidth(feedWidth - 4)
}

func (m ConsoleUI) surgeHeight() int {
	if m.session == nil || m.session.Engine.ActiveSurge() == nil {
		return 0
	}
	return lipgloss.Height(m.renderSurge())
}

func renderEffect(e effectlog.Entry) string {
	switch adventure.Action(e.Action) {
	case adventure.ActionToast:
		return toastStyle.Render("» " + e.Payload)
	case adventure.ActionConfetti:
		return toastStyle.Render("* * * confetti! * * *")
	case adventure.ActionShake:
		return errorStyle.Render("~ the ground shakes ~")
	case adventure.ActionFlash:
		return loadingStyle.Render("! a blinding flash !")
	case adventure.ActionRedirect:
		return statusStyle.Render("→ continue at " + e.Payload)
	case adventure.ActionUnlock:
		return statusStyle.Render("unlocked " + e.Payload)
	}
	return promptStyle.Render(fmt.Sprintf("%s %s", e.Action, e.Payload))
}

// resourceBar renders a filled bar of width cells for value out of limit.
func resourceBar(value, limit, width int) string {
	filled := 0
	if limit > 0 {
		filled = value * width / limit
	}
	filled = max0(min(width, filled))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func max0(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

func writeResources(adv *adventure.Adventure, values map[string]int) string {
	var content strings.Builder
	for _, r := range adv.Resources {
		v := values[r.ID]
		color, ok := themeColors[r.Theme]
		if !ok {
			color = themeColors[adventure.ThemeBlue]
		}
		style := lipgloss.NewStyle().Foreground(color)
		switch r.Style {
		case adventure.StyleHidden:
			continue
		case adventure.StyleCounter:
			content.WriteString(fmt.Sprintf("%s %s\n", r.Label+":", style.Render(fmt.Sprint(v))))
		default:
			content.WriteString(fmt.Sprintf("%s\n%s %d/%d\n", r.Label, style.Render(resourceBar(v, r.Max, 16)), v, r.Max))
		}
	}
	return content.String()
}

func writeQueue(v sessions.View) string {
	health := make(map[string]actor.Health, len(v.Health))
	for _, h := range v.Health {
		health[h.ID] = h
	}

	var content strings.Builder
	for _, c := range v.Queue {
		line := c.Name
		if h, ok := health[c.ID]; ok {
			line += fmt.Sprintf(" (%d%%)", h.Percent())
			if h.Down {
				line += " down"
			}
		}
		if c.ID == v.RoundLeader {
			line += " ◆"
		}
		if c.ID == v.CurrentCombatant {
			content.WriteString(activeStyle.Render("▶ "+line) + "\n")
		} else {
			content.WriteString("  " + line + "\n")
		}
	}
	return content.String()
}

func writeMetadata(v sessions.View, adv *adventure.Adventure) string {
	var content strings.Builder
	content.WriteString(titleStyle.Render(fmt.Sprintf("TURN %d", v.CurrentTurn)) + "\n\n")

	if adv != nil {
		content.WriteString(writeResources(adv, v.State) + "\n")
	}

	if v.DrawerExpanded {
		content.WriteString(titleStyle.Render("QUEUE") + "\n")
		if len(v.Queue) == 0 {
			content.WriteString("No encounter\n")
		} else {
			content.WriteString(writeQueue(v))
		}
	} else if v.CurrentCombatant != "" {
		acting := v.CurrentCombatant
		for _, c := range v.Queue {
			if c.ID == v.CurrentCombatant {
				acting = c.Name
			}
		}
		content.WriteString(fmt.Sprintf("Acting: %s (%d in queue)\n", acting, len(v.Queue)))
	}

	if len(v.Party) > 0 {
		names := make([]string, 0, len(v.Party))
		for _, p := range v.Party {
			names = append(names, p.Name)
		}
		content.WriteString("\nParty: " + strings.Join(names, ", ") + "\n")
	}

	content.WriteString("\n" + promptStyle.Render(fmt.Sprintf("%s\n%d snapshots • %d rules fired", v.SessionID, len(v.History), len(v.FiredRules))) + "\n")
	return content.String()
}

func (m ConsoleUI) renderSurge() string {
	s := m.session.Engine.ActiveSurge()
	if s == nil {
		return ""
	}
	style := surgeStyle.Width(m.feedWidth())
	if m.pulse%2 == 1 {
		style = style.BorderForeground(lipgloss.Color("196"))
	}

	var content strings.Builder
	content.WriteString(titleStyle.Render("SURGE") + "\n")
	content.WriteString(wordwrap.String(s.Dialogue, m.feedWidth()-4) + "\n")
	for _, mod := range s.ModifyResources {
		content.WriteString(promptStyle.Render(fmt.Sprintf("%s %+d on dismiss", mod.ResourceID, mod.Delta)) + "\n")
	}
	if s.Animation == adventure.AnimationLock {
		content.WriteString(errorStyle.Render("Locked until dismissed") + "\n")
	}
	content.WriteString(promptStyle.Render("Type dismiss to continue"))
	return style.Render(content.String())
}

func (m ConsoleUI) updateAdventureModal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.loadingAdventures || m.err != nil {
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		return m, nil
	}

	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		m.showQuitModal = true
		return m, nil
	case tea.KeyUp:
		if m.selectedAdventure > 0 {
			m.selectedAdventure--
		}
	case tea.KeyDown:
		if m.selectedAdventure < len(m.adventures)-1 {
			m.selectedAdventure++
		}
	case tea.KeyEnter:
		if len(m.adventures) > 0 {
			m.loadingAdventures = true
			return m, m.startSession(m.adventures[m.selectedAdventure].ID)
		}
	}
	return m, nil
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
				m.textarea.Focus()
				return m, textarea.Blink
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
	content.WriteString(modalTitleStyle.Render("Quit?"))
	content.WriteString("\n\n")
	content.WriteString("Your session is saved and resumes next time.")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) renderAdventureModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder

	switch {
	case m.err != nil:
		content.WriteString(modalTitleStyle.Render("Error"))
		content.WriteString("\n\n")
		content.WriteString(errorStyle.Render(fmt.Sprintf("Failed to load adventures: %v", m.err)))
		content.WriteString("\n\n")
		content.WriteString("Press Ctrl+C to exit")
	case m.loadingAdventures:
		content.WriteString(modalTitleStyle.Render("Loading..."))
		content.WriteString("\n\n")
		content.WriteString(loadingStyle.Render("Setting up your adventure..."))
	case len(m.adventures) == 0:
		content.WriteString(modalTitleStyle.Render("No Adventures"))
		content.WriteString("\n\n")
		content.WriteString("Add .mdoc files under DATA_DIR/adventures and restart.")
	default:
		content.WriteString(modalTitleStyle.Render("Select an Adventure"))
		content.WriteString("\n\n")
		for i, a := range m.adventures {
			if i == m.selectedAdventure {
				content.WriteString(modalSelectedItemStyle.Render(fmt.Sprintf("▶ %s", a.Title)))
			} else {
				content.WriteString(modalItemStyle.Render(fmt.Sprintf("  %s", a.Title)))
			}
			content.WriteString("\n")
		}
		content.WriteString("\n")
		content.WriteString(promptStyle.Render("Use ↑/↓ to navigate, Enter to select, Ctrl+C to exit"))
	}

	modal := modalStyle.Width(60).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}
	if m.showAdventureModal {
		return m.renderAdventureModal()
	}
	if m.err != nil {
		return errorStyle.Render("\n  Error: "+m.err.Error()) + "\n"
	}
	if !m.ready || m.session == nil {
		return "\n  Initializing..."
	}

	feedWidth := int(float64(m.width)*0.65) - 4
	metaWidth := m.width - feedWidth - 6

	parts := []string{}
	if surge := m.renderSurge(); surge != "" {
		parts = append(parts, surge)
	}
	parts = append(parts,
		m.feedViewport.View(),
		separatorStyle.Render(strings.Repeat("─", max0(feedWidth-4))),
		m.textarea.View(),
	)

	feedPanel := feedPanelStyle.Width(feedWidth).Height(m.height - 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, parts...),
	)
	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		m.metaViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, feedPanel, metaPanel)
}
