package thingpedia

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
)

// ApprovalPrompter decides whether a submission is approved right away.
type ApprovalPrompter interface {
	ConfirmApproval(kind string) (bool, error)
}

// TerminalPrompter asks on the terminal.
type TerminalPrompter struct{}

// NewTerminalPrompter creates a new TerminalPrompter.
func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{}
}

// IsInteractive checks if we're running in an interactive terminal.
func (p *TerminalPrompter) IsInteractive() bool {
	fileInfo, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// ConfirmApproval implements ApprovalPrompter. Outside a terminal it
// answers no.
func (p *TerminalPrompter) ConfirmApproval(kind string) (bool, error) {
	if !p.IsInteractive() {
		return false, nil
	}

	const (
		OptionApprove = "Approve this version now"
		OptionReview  = "Leave it for review"
	)

	var selection string
	err := huh.NewSelect[string]().
		Title("Approve Submission?").
		Description(fmt.Sprintf("The new version of %s becomes visible to every user once approved.", kind)).
		Options(
			huh.NewOption(OptionApprove, OptionApprove),
			huh.NewOption(OptionReview, OptionReview),
		).
		Value(&selection).
		Run()
	if err != nil {
		return false, err
	}
	return selection == OptionApprove, nil
}
