package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// Prompter asks yes/no questions before destructive reference table changes.
type Prompter struct {
	writer io.Writer
	reader *NonBlockingReader
}

// NewPrompter creates a prompter. Nil reader and writer use stdin and stdout.
func NewPrompter(reader io.Reader, writer io.Writer) *Prompter {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}
	return &Prompter{
		writer: writer,
		reader: NewNonBlockingReader(reader),
	}
}

// Confirm asks question and reports the answer. An empty answer or end of
// input yields defaultYes.
func (p *Prompter) Confirm(ctx context.Context, question string, defaultYes bool) (bool, error) {
	hint := "[y/N]"
	if defaultYes {
		hint = "[Y/n]"
	}

	for {
		if _, err := fmt.Fprint(p.writer, FormatPrompt(question+" "+hint)); err != nil {
			return false, fmt.Errorf("failed to write prompt: %w", err)
		}

		answer, err := p.reader.ReadLine(ctx)
		if err != nil {
			if err == io.EOF {
				return defaultYes, nil
			}
			return false, err
		}

		switch strings.ToLower(answer) {
		case "":
			return defaultYes, nil
		case "y", "yes", "s", "si", "sí":
			return true, nil
		case "n", "no":
			return false, nil
		}

		if _, err := fmt.Fprintln(p.writer, FormatWarning("Please answer y or n")); err != nil {
			return false, fmt.Errorf("failed to write prompt: %w", err)
		}
	}
}
