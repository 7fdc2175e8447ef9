package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/rgeddes/inkbound/internal/llm"
	"github.com/rgeddes/inkbound/pkg/book"
	"github.com/rgeddes/inkbound/pkg/player"
)

const placeHolderText = "Choose, or type /help for commands..."

// sinkEvent is one narrated output item crossing from the session
// layer into the UI loop.
type sinkEvent struct {
	kind   sinkKind
	page   *book.Page
	text   string
	status llm.Status
}

type sinkKind int

const (
	sinkPage sinkKind = iota
	sinkText
	sinkImage
	sinkStatus
)

// uiSink buffers narrated output on a channel the BubbleTea loop
// drains. It satisfies book.Sink and the llm status notifier.
type uiSink struct {
	ch chan sinkEvent
}

func newUISink() *uiSink {
	return &uiSink{ch: make(chan sinkEvent, 64)}
}

func (s *uiSink) ShowPage(p *book.Page) {
	s.ch <- sinkEvent{kind: sinkPage, page: p}
}

func (s *uiSink) ShowText(text string) {
	s.ch <- sinkEvent{kind: sinkText, text: text}
}

func (s *uiSink) ShowImage(ref string) {
	s.ch <- sinkEvent{kind: sinkImage, text: ref}
}

func (s *uiSink) notifyStatus(status llm.Status) {
	// Status ticks are advisory; drop them rather than block a call.
	select {
	case s.ch <- sinkEvent{kind: sinkStatus, status: status}:
	default:
	}
}

type sinkMsg struct {
	ev sinkEvent
}

type cmdDoneMsg struct {
	err error
}

var (
	storyPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3)

	statsPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	pageTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	proseStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	choiceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

// ConsoleUI is the BubbleTea model that runs the reader's terminal.
type ConsoleUI struct {
	shelf  *book.Shelf
	player *player.State
	client *llm.Client
	sink   *uiSink

	storyViewport viewport.Model
	statsViewport viewport.Model
	textarea      textarea.Model

	transcript []string
	lastProse  string
	status     string
	loading    bool
	ready      bool
	width      int
	height     int
}

func NewConsoleUI(shelf *book.Shelf, state *player.State, client *llm.Client, sink *uiSink) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = placeHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 500
	ta.SetWidth(50)
	ta.SetHeight(2)
	ta.ShowLineNumbers = false

	storyVp := viewport.New(50, 20)
	storyVp.MouseWheelEnabled = true
	statsVp := viewport.New(20, 20)

	return ConsoleUI{
		shelf:         shelf,
		player:        state,
		client:        client,
		sink:          sink,
		textarea:      ta,
		storyViewport: storyVp,
		statsViewport: statsVp,
		transcript: []string{
			titleStyle.Render("INKBOUND") + "\n\nOpen a book with /open <book_id> to begin.",
		},
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.waitForSink())
}

// waitForSink blocks on the next narrated output item.
func (m ConsoleUI) waitForSink() tea.Cmd {
	return func() tea.Msg {
		return sinkMsg{ev: <-m.sink.ch}
	}
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		storyWidth := int(float64(m.width)*0.72) - 4
		statsWidth := m.width - storyWidth - 6

		m.storyViewport.Width = storyWidth - 2
		m.storyViewport.Height = m.height - 7
		m.statsViewport.Width = statsWidth - 2
		m.statsViewport.Height = m.height - 4
		m.textarea.SetWidth(storyWidth - 4)

		m.ready = true
		m.refreshStory()
		m.refreshStats()

	case tea.MouseMsg:
		m.storyViewport, vpCmd = m.storyViewport.Update(msg)
		return m, vpCmd

	case sinkMsg:
		m.appendSinkEvent(msg.ev)
		m.refreshStory()
		m.refreshStats()
		return m, m.waitForSink()

	case cmdDoneMsg:
		m.loading = false
		m.status = ""
		if msg.err != nil {
			m.transcript = append(m.transcript, errorStyle.Render(userFacing(msg.err)))
		}
		m.refreshStory()
		m.refreshStats()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyCtrlY:
			if m.lastProse != "" {
				_ = clipboard.WriteAll(m.lastProse)
			}
			return m, nil
		case tea.KeyEnter:
			if m.loading {
				return m, nil
			}
			input := strings.TrimSpace(m.textarea.Value())
			m.textarea.Reset()
			if input == "" {
				return m, nil
			}
			return m.dispatch(input)
		}
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.storyViewport, vpCmd = m.storyViewport.Update(msg)
	return m, tea.Batch(tiCmd, vpCmd)
}

// dispatch turns reader input into a session operation. Bare input is
// treated as a choice when a page is waiting on one.
func (m ConsoleUI) dispatch(input string) (tea.Model, tea.Cmd) {
	cmd, arg := splitCommand(input)

	switch cmd {
	case "/open":
		if arg == "" {
			return m.localError("usage: /open <book_id>")
		}
		return m.runOp(func(ctx context.Context) error {
			_, err := m.shelf.Open(ctx, arg)
			return err
		})
	case "/choose":
		return m.choose(arg)
	case "/ask":
		if arg == "" {
			return m.localError("usage: /ask <question>")
		}
		return m.runOp(func(ctx context.Context) error {
			sess := m.shelf.Active()
			if sess == nil {
				return fmt.Errorf("no open book")
			}
			_, err := sess.Ask(ctx, arg)
			return err
		})
	case "/draw":
		return m.runOp(func(ctx context.Context) error {
			sess := m.shelf.Active()
			if sess == nil {
				return fmt.Errorf("no open book")
			}
			_, err := sess.Draw(ctx)
			return err
		})
	case "/close":
		return m.runOp(func(ctx context.Context) error {
			m.shelf.Close(ctx)
			return nil
		})
	case "/resume":
		sess := m.shelf.Active()
		if sess == nil {
			return m.localError("no book to resume")
		}
		sess.Resume()
		return m, nil
	case "/summary":
		sess := m.shelf.Active()
		if sess == nil {
			return m.localError("no open book")
		}
		s := sess.Summary()
		m.transcript = append(m.transcript, fmt.Sprintf(
			"%s\nseed %s · %d pages · path: %s",
			pageTitleStyle.Render(s.Title), s.Seed, s.PageCount, pathString(s.Path)))
		m.refreshStory()
		return m, nil
	case "/help":
		m.transcript = append(m.transcript, helpText())
		m.refreshStory()
		return m, nil
	case "/quit":
		return m, tea.Quit
	default:
		if strings.HasPrefix(cmd, "/") {
			return m.localError("unknown command, try /help")
		}
		// Bare input resolves against the current choices.
		return m.choose(input)
	}
}

func (m ConsoleUI) choose(token string) (tea.Model, tea.Cmd) {
	if token == "" {
		return m.localError("usage: /choose <number or choice id>")
	}
	return m.runOp(func(ctx context.Context) error {
		sess := m.shelf.Active()
		if sess == nil {
			return fmt.Errorf("no open book")
		}
		return sess.Choose(ctx, token)
	})
}

// runOp executes a session operation off the UI goroutine. Input is
// disabled until the cmdDoneMsg lands.
func (m ConsoleUI) runOp(op func(ctx context.Context) error) (tea.Model, tea.Cmd) {
	m.loading = true
	m.status = "the quill is moving..."
	m.refreshStory()
	return m, func() tea.Msg {
		return cmdDoneMsg{err: op(context.Background())}
	}
}

func (m ConsoleUI) localError(text string) (tea.Model, tea.Cmd) {
	m.transcript = append(m.transcript, errorStyle.Render(text))
	m.refreshStory()
	return m, nil
}

func (m *ConsoleUI) appendSinkEvent(ev sinkEvent) {
	switch ev.kind {
	case sinkPage:
		m.lastProse = ev.page.Prose
		m.transcript = append(m.transcript, m.renderPage(ev.page))
	case sinkText:
		m.transcript = append(m.transcript, proseStyle.Render(wordwrap.String(ev.text, m.proseWidth())))
	case sinkImage:
		m.transcript = append(m.transcript, statusStyle.Render("[illustration] ")+ev.text)
	case sinkStatus:
		switch ev.status {
		case llm.StatusProcessing:
			m.status = "the quill is moving..."
		case llm.StatusError:
			m.status = "the ink ran dry"
		default:
			m.status = ""
		}
	}
}

func (m *ConsoleUI) renderPage(p *book.Page) string {
	width := m.proseWidth()

	var sb strings.Builder
	sb.WriteString(pageTitleStyle.Render(p.Title) + "\n\n")
	sb.WriteString(proseStyle.Render(wordwrap.String(p.Prose, width)) + "\n")

	if p.IsTerminal() {
		sb.WriteString("\n" + titleStyle.Render("~ The End ~"))
		return sb.String()
	}

	sb.WriteString("\n")
	for i, c := range p.Choices {
		sb.WriteString(choiceStyle.Render(fmt.Sprintf("  %d. %s", i+1, c.Label)) + "\n")
	}
	return sb.String()
}

func (m *ConsoleUI) proseWidth() int {
	w := m.storyViewport.Width - 6
	if w < 20 {
		w = 72
	}
	return w
}

func (m *ConsoleUI) refreshStory() {
	if !m.ready {
		return
	}
	sep := "\n\n" + separatorStyle.Render(strings.Repeat("─", m.proseWidth())) + "\n\n"
	content := strings.Join(m.transcript, sep)
	if m.loading || m.status != "" {
		content += "\n\n" + statusStyle.Render(m.status)
	}
	m.storyViewport.SetContent(content)
	m.storyViewport.GotoBottom()
}

func (m *ConsoleUI) refreshStats() {
	if !m.ready {
		return
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("THE READER") + "\n\n")
	sb.WriteString(fmt.Sprintf("Truth:     %.2f\n", m.player.Truth()))
	sb.WriteString(fmt.Sprintf("Coherence: %.2f\n", m.player.Coherence()))
	sb.WriteString(fmt.Sprintf("Shadow:    %.2f\n", m.player.Shadow()))
	sb.WriteString(fmt.Sprintf("Insight:   %d\n", m.player.Insight()))
	sb.WriteString(fmt.Sprintf("HP:        %d\n\n", m.player.HP()))

	if items := m.player.Items(); len(items) > 0 {
		sb.WriteString("Satchel:\n")
		for _, it := range items {
			sb.WriteString("• " + it + "\n")
		}
		sb.WriteString("\n")
	}

	if sess := m.shelf.Active(); sess != nil {
		s := sess.Summary()
		sb.WriteString(pageTitleStyle.Render(s.Title) + "\n")
		sb.WriteString(fmt.Sprintf("%d pages read\n", s.PageCount))
		sb.WriteString(fmt.Sprintf("state: %s\n\n", sess.State()))
	}

	sb.WriteString(fmt.Sprintf("Tokens: %d\n\n", m.client.TokensUsed()))
	sb.WriteString("Commands:\n")
	sb.WriteString("• /open /ask /draw\n")
	sb.WriteString("• /close /resume\n")
	sb.WriteString("• /summary /help\n")
	sb.WriteString("• Ctrl+Y: copy prose\n")
	sb.WriteString("• Ctrl+C: quit\n")

	m.statsViewport.SetContent(sb.String())
}

func (m ConsoleUI) View() string {
	if !m.ready {
		return "Binding the book..."
	}

	story := storyPanelStyle.Render(m.storyViewport.View() + "\n\n" + m.textarea.View())
	stats := statsPanelStyle.Render(m.statsViewport.View())

	return lipgloss.JoinHorizontal(lipgloss.Top, story, stats)
}

func splitCommand(input string) (string, string) {
	parts := strings.SplitN(input, " ", 2)
	cmd := strings.ToLower(parts[0])
	arg := ""
	if len(parts) > 1 {
		arg = strings.TrimSpace(parts[1])
	}
	return cmd, arg
}

func pathString(path []string) string {
	if len(path) == 0 {
		return "(none)"
	}
	return strings.Join(path, " -> ")
}

// userFacing keeps transient scheduler states readable in-world.
func userFacing(err error) string {
	switch {
	case errors.Is(err, llm.ErrRateLimited):
		return "The ink needs a moment to dry. Try again shortly."
	case errors.Is(err, llm.ErrAuth):
		return "The binding does not recognize you. Check your key."
	case errors.Is(err, book.ErrChoiceNotFound):
		return "No such choice on this page."
	case errors.Is(err, book.ErrBusy):
		return "The quill is still moving."
	case errors.Is(err, book.ErrEnded):
		return "This story has ended. Open another book."
	default:
		return err.Error()
	}
}

func helpText() string {
	return strings.TrimSpace(`
/open <book_id>      open or resume a book
/choose <n or id>    take a choice (bare input works too)
/ask <question>      ask the narrator about the current page
/draw                illustrate the current page
/close               put the book down (resumable)
/resume              pick the book back up
/summary             title, seed, path, page count
/quit                leave`)
}
