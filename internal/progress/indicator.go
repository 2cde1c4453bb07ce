// Package progress renders an animated status line while the run waits
// on something it cannot speed up.
package progress

import (
	"io"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/shodjinn/internal/theme"
)

// stopMsg asks the program to clear its line and exit.
type stopMsg struct{}

// model is the Bubble Tea model for one indicator run.
type model struct {
	spinner  spinner.Model
	message  string
	stopping bool
}

func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stopMsg:
		m.stopping = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) View() string {
	if m.stopping {
		return ""
	}
	return "[" + m.spinner.View() + "] " + m.message
}

// Indicator runs a spinner program on its own goroutine. The only thing
// shared with the caller is the stop message sent by Stop. An Indicator
// can be started again after it was stopped.
type Indicator struct {
	out io.Writer

	mu      sync.Mutex
	program *tea.Program
	done    chan struct{}
}

// New creates an indicator that draws on out.
func New(out io.Writer) *Indicator {
	return &Indicator{out: out}
}

// Start begins animating message. It does nothing if the indicator is
// already running.
func (i *Indicator) Start(message string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.program != nil {
		return
	}

	sp := spinner.New(
		spinner.WithSpinner(spinner.MiniDot),
		spinner.WithStyle(theme.SpinnerStyle),
	)

	// Input is disabled and signals are left to the caller, so Ctrl+C
	// cancels the run instead of only the spinner.
	p := tea.NewProgram(
		model{spinner: sp, message: message},
		tea.WithInput(nil),
		tea.WithOutput(i.out),
		tea.WithoutSignalHandler(),
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = p.Run()
	}()

	i.program = p
	i.done = done
}

// Stop clears the status line and returns once the program has exited.
// Calling Stop on a stopped indicator does nothing.
func (i *Indicator) Stop() {
	i.mu.Lock()
	p, done := i.program, i.done
	i.program, i.done = nil, nil
	i.mu.Unlock()

	if p == nil {
		return
	}

	p.Send(stopMsg{})
	<-done
}

// Running reports whether a program is currently drawing.
func (i *Indicator) Running() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.program != nil
}
