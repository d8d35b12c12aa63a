package repl

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// DefaultPrompt is printed before every line.
const DefaultPrompt = "chaingate> "

// Sender delivers one command line and returns the reply.
type Sender interface {
	Send(line string) (string, error)
}

// REPL reads commands from input, sends them and prints the replies.
type REPL struct {
	input   io.Reader
	output  io.Writer
	prompt  string
	sender  Sender
	history *History
}

// New creates a REPL. history may be nil.
func New(in io.Reader, out io.Writer, sender Sender, history *History) *REPL {
	if history == nil {
		history = NewHistory("")
	}
	return &REPL{
		input:   in,
		output:  out,
		prompt:  DefaultPrompt,
		sender:  sender,
		history: history,
	}
}

// SetPrompt replaces DefaultPrompt.
func (r *REPL) SetPrompt(prompt string) {
	r.prompt = prompt
}

// Run loops until EOF, "exit" or "quit", or a failed send. A send error
// ends the loop since the server closes the connection on failure.
func (r *REPL) Run() error {
	reader := bufio.NewReader(r.input)
	for {
		fmt.Fprint(r.output, r.prompt)

		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return err
		}
		eof := err == io.EOF

		line = strings.TrimSpace(line)
		switch {
		case line == "":
			if eof {
				fmt.Fprintln(r.output)
				return nil
			}
			continue
		case line == "exit" || line == "quit":
			return nil
		case line == "history":
			for i, e := range r.history.Entries() {
				fmt.Fprintf(r.output, "%4d  %s\n", i+1, e)
			}
			continue
		}

		r.history.Add(line)
		reply, sendErr := r.sender.Send(line)
		if sendErr != nil {
			return fmt.Errorf("send %q: %w", line, sendErr)
		}
		fmt.Fprintln(r.output, reply)
		if eof {
			return nil
		}
	}
}
