package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bnema/powertrack-cli/internal/application"
	"github.com/bnema/powertrack-cli/internal/domain"
)

type batchProgressMsg application.BatchProgress

type syncDoneMsg struct {
	report application.UpdateReport
	err    error
}

// syncProgressModel shows which batch of a rules sync is in flight.
type syncProgressModel struct {
	spinner spinner.Model
	stage   application.BatchProgress
	sync    tea.Cmd
	result  syncDoneMsg
	done    bool
}

func newSyncProgressModel(sync tea.Cmd) syncProgressModel {
	return syncProgressModel{
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
		),
		sync: sync,
	}
}

func (m syncProgressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.sync)
}

func (m syncProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case batchProgressMsg:
		m.stage = application.BatchProgress(msg)
		return m, nil
	case syncDoneMsg:
		m.done = true
		m.result = msg
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m syncProgressModel) View() string {
	if m.done {
		return ""
	}
	return m.spinner.View() + " " + syncStage(m.stage)
}

func syncStage(p application.BatchProgress) string {
	switch p.Op {
	case application.OpAdd:
		return fmt.Sprintf("Adding batch %d/%d (%d rules)...", p.Batch, p.Batches, p.Rules)
	case application.OpRemove:
		return fmt.Sprintf("Removing batch %d/%d (%d rules)...", p.Batch, p.Batches, p.Rules)
	default:
		return "Comparing live rules..."
	}
}

// syncWithProgress runs Update on a reconciler built with a progress hook and
// renders each batch on output until the sync finishes.
func syncWithProgress(
	ctx context.Context,
	output io.Writer,
	build func(progress func(application.BatchProgress)) *application.Reconciler,
	desired domain.RuleSet,
	batchSize int,
) (application.UpdateReport, error) {
	var program *tea.Program
	reconciler := build(func(p application.BatchProgress) {
		program.Send(batchProgressMsg(p))
	})

	sync := func() tea.Msg {
		report, err := reconciler.Update(ctx, desired, batchSize)
		return syncDoneMsg{report: report, err: err}
	}

	program = tea.NewProgram(
		newSyncProgressModel(sync),
		tea.WithInput(nil),
		tea.WithOutput(output),
		tea.WithContext(ctx),
	)

	final, err := program.Run()
	if err != nil {
		return application.UpdateReport{}, err
	}

	model, ok := final.(syncProgressModel)
	if !ok {
		return application.UpdateReport{}, fmt.Errorf("unexpected final sync model type %T", final)
	}
	return model.result.report, model.result.err
}
