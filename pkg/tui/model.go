package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wave-portal/pkg/app"
	"github.com/wave-portal/pkg/submit"
	"github.com/wave-portal/pkg/wallet"
	"github.com/wave-portal/pkg/wave"
)

// Controller is the application surface the program drives. *app.App
// implements it.
type Controller interface {
	State() app.State
	Changes() (<-chan struct{}, func())
	Connect(ctx context.Context, approver wallet.Approver) error
	Disconnect() error
	Refresh(ctx context.Context) error
	Send(ctx context.Context, text string) (*submit.Result, error)
}

type mode int

const (
	modeBrowse mode = iota
	modeCompose
	modeConfirm
	modePassphrase
)

type (
	changedMsg struct{}
	promptMsg  prompt
	doneMsg    struct{ err error }
)

type Model struct {
	ctx      context.Context
	ctrl     Controller
	approver *Approver
	changes  <-chan struct{}
	stop     func()

	state   app.State
	mode    mode
	prompt  *prompt
	input   textinput.Model
	secret  textinput.Model
	spinner spinner.Model

	width, height int
}

func New(ctx context.Context, ctrl Controller, approver *Approver) Model {
	in := textinput.New()
	in.Placeholder = "Say hi..."
	in.CharLimit = 280
	in.Width = 48

	secret := textinput.New()
	secret.Placeholder = "passphrase"
	secret.EchoMode = textinput.EchoPassword
	secret.EchoCharacter = '•'

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	changes, stop := ctrl.Changes()
	return Model{
		ctx:      ctx,
		ctrl:     ctrl,
		approver: approver,
		changes:  changes,
		stop:     stop,
		state:    ctrl.State(),
		input:    in,
		secret:   secret,
		spinner:  sp,
	}
}

// Release drops the model's change subscription.
func (m Model) Release() {
	if m.stop != nil {
		m.stop()
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.waitForChange(), m.waitForPrompt(), m.spinner.Tick)
}

func (m Model) waitForChange() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.changes:
			return changedMsg{}
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m Model) waitForPrompt() tea.Cmd {
	if m.approver == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case p := <-m.approver.prompts:
			return promptMsg(p)
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case changedMsg:
		m.state = m.ctrl.State()
		return m, m.waitForChange()

	case doneMsg:
		m.state = m.ctrl.State()
		return m, nil

	case promptMsg:
		p := prompt(msg)
		m.prompt = &p
		m.mode = modeConfirm
		m.input.Blur()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		switch m.mode {
		case modeConfirm:
			return m.updateConfirm(msg)
		case modePassphrase:
			return m.updatePassphrase(msg)
		case modeCompose:
			return m.updateCompose(msg)
		default:
			return m.updateBrowse(msg)
		}
	}
	return m, nil
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "c":
		return m, m.run(func(ctx context.Context) error { return m.ctrl.Connect(ctx, m.approver) })
	case "d":
		return m, m.run(func(context.Context) error { return m.ctrl.Disconnect() })
	case "r":
		return m, m.run(m.ctrl.Refresh)
	case "w", "enter":
		m.mode = modeCompose
		return m, m.input.Focus()
	}
	return m, nil
}

func (m Model) updateCompose(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = modeBrowse
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		if m.state.Pending {
			return m, nil
		}
		text := m.input.Value()
		if strings.TrimSpace(text) != "" {
			m.input.Reset()
		}
		m.mode = modeBrowse
		m.input.Blur()
		return m, m.run(func(ctx context.Context) error {
			_, err := m.ctrl.Send(ctx, text)
			return err
		})
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "enter":
		if m.prompt.req.NeedsPassphrase && m.approver.Passphrase == "" {
			m.mode = modePassphrase
			m.secret.Reset()
			return m, m.secret.Focus()
		}
		return m.answer(promptReply{ok: true, passphrase: m.approver.Passphrase})
	case "n", "esc":
		return m.answer(promptReply{})
	}
	return m, nil
}

func (m Model) updatePassphrase(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		pass := m.secret.Value()
		m.secret.Reset()
		m.secret.Blur()
		return m.answer(promptReply{ok: true, passphrase: pass})
	case tea.KeyEsc:
		m.secret.Reset()
		m.secret.Blur()
		return m.answer(promptReply{})
	}
	var cmd tea.Cmd
	m.secret, cmd = m.secret.Update(msg)
	return m, cmd
}

func (m Model) answer(r promptReply) (tea.Model, tea.Cmd) {
	if m.prompt != nil {
		m.prompt.reply <- r
	}
	m.prompt = nil
	m.mode = modeBrowse
	return m, m.waitForPrompt()
}

// run performs a blocking controller call off the update loop.
func (m Model) run(fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return doneMsg{err: fn(ctx)}
	}
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("👋 Wave Portal"))
	if m.state.Feed.Ready {
		b.WriteString(liveStyle.Render(" ● live"))
	}
	b.WriteString("\n")

	switch {
	case m.state.Connected:
		b.WriteString(accountStyle.Render("  connected as " + m.state.Account.Hex()))
	case m.state.HasProvider:
		b.WriteString(accountStyle.Render("  wallet found, press c to connect"))
	default:
		b.WriteString(accountStyle.Render("  no wallet"))
	}
	b.WriteString("\n\n")

	if m.state.Notice != "" {
		style := errorStyle
		if m.state.NoticeKind == "info" {
			style = infoStyle
		}
		b.WriteString(style.Render(m.state.Notice) + "\n\n")
	}

	switch m.mode {
	case modeConfirm:
		req := m.prompt.req
		b.WriteString(promptStyle.Render(fmt.Sprintf("%s with %s (%s)?  [y/n]", req.Reason, wave.Abbrev(req.Account), req.Provider)) + "\n\n")
	case modePassphrase:
		b.WriteString(promptStyle.Render("Unlock "+wave.Abbrev(m.prompt.req.Account)+"\n"+m.secret.View()) + "\n\n")
	case modeCompose:
		b.WriteString(m.input.View() + "\n\n")
	}

	if m.state.Pending {
		b.WriteString(m.spinner.View() + " Mining...\n\n")
	}

	b.WriteString(m.renderFeed())
	b.WriteString("\n" + helpStyle.Render(m.help()))
	return b.String()
}

func (m Model) renderFeed() string {
	f := m.state.Feed
	if !f.Ready && len(f.Records) == 0 {
		return timeStyle.Render("  loading waves...") + "\n"
	}

	header := fmt.Sprintf("  %d waves", f.Total)
	lines := []string{lipgloss.NewStyle().Bold(true).Render(header)}

	limit := len(f.Records)
	if m.height > 0 {
		// leave room for the header and help lines
		if room := (m.height - 12) / 2; room < limit {
			limit = room
		}
		if limit < 1 {
			limit = 1
		}
	}
	for _, r := range f.Records[:min(limit, len(f.Records))] {
		lines = append(lines,
			waveStyle.Render(addrStyle.Render(wave.Abbrev(r.Address))+" "+timeStyle.Render(r.Timestamp.Local().Format("Jan 2 15:04:05"))),
			waveStyle.Render("  "+r.Message),
		)
	}
	return strings.Join(lines, "\n") + "\n"
}

func (m Model) help() string {
	switch m.mode {
	case modeCompose:
		return "enter send • esc back"
	case modeConfirm:
		return "y approve • n reject"
	case modePassphrase:
		return "enter unlock • esc reject"
	}
	return "w write • c connect • d disconnect • r refresh • q quit"
}

// Run starts the program and blocks until the user quits or ctx is done.
func Run(ctx context.Context, ctrl Controller, approver *Approver) error {
	m := New(ctx, ctrl, approver)
	defer m.Release()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
