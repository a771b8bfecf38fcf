package ask

import (
	"context"
	"fmt"

	"jawabbot/pkg/answer"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Result is what one question produced in the requested mode.
type Result struct {
	Question string
	Payloads []answer.Payload
	Inline   []answer.InlineResult
}

// AskFunc runs one question through the answer pipeline.
type AskFunc func(ctx context.Context, query string) (Result, error)

// Info is shown in the preview header.
type Info struct {
	Mode   string
	Corpus string
}

// RunInteractive opens the preview and answers questions until the user quits.
func RunInteractive(ctx context.Context, askFn AskFunc, info Info) error {
	model := newModel(ctx, askFn, modeInteractive, "", info)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := program.Run(); err != nil {
		return err
	}

	fmt.Println(renderGoodbyeBanner())
	return nil
}

// RunOneShot answers a single question, renders it and exits.
func RunOneShot(ctx context.Context, askFn AskFunc, query string, info Info) error {
	model := newModel(ctx, askFn, modeOneShot, query, info)
	program := tea.NewProgram(model)
	_, err := program.Run()
	return err
}

func renderGoodbyeBanner() string {
	style := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("231")).
		Background(lipgloss.Color("25")).
		Padding(1, 2)

	return style.Render("📚 Sampai jumpa!")
}
