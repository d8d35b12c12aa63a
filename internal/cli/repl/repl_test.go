package repl

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

type fakeSender struct {
	sent []string
	fail string
}

func (f *fakeSender) Send(line string) (string, error) {
	if line == f.fail {
		return "", errors.New("connection closed")
	}
	f.sent = append(f.sent, line)
	return "reply:" + line, nil
}

func TestREPL_Exit(t *testing.T) {
	for name, input := range map[string]string{
		"exit": "exit\n",
		"quit": "quit\n",
		"EOF":  "",
	} {
		t.Run(name, func(t *testing.T) {
			s := &fakeSender{}
			if err := New(strings.NewReader(input), &bytes.Buffer{}, s, nil).Run(); err != nil {
				t.Errorf("Run() error = %v", err)
			}
			if len(s.sent) != 0 {
				t.Errorf("sent = %v", s.sent)
			}
		})
	}
}

func TestREPL_SendsLines(t *testing.T) {
	s := &fakeSender{}
	out := &bytes.Buffer{}
	h := NewHistory("")

	err := New(strings.NewReader("ping\n\n  echo a b  \nexit\n"), out, s, h).Run()
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if strings.Join(s.sent, "|") != "ping|echo a b" {
		t.Errorf("sent = %v", s.sent)
	}
	if !strings.Contains(out.String(), "reply:ping\n") || !strings.Contains(out.String(), "reply:echo a b\n") {
		t.Errorf("output = %q", out.String())
	}
	if got := h.Entries(); len(got) != 2 {
		t.Errorf("history = %v", got)
	}
}

func TestREPL_LastLineWithoutNewline(t *testing.T) {
	s := &fakeSender{}
	if err := New(strings.NewReader("ping"), &bytes.Buffer{}, s, nil).Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(s.sent) != 1 {
		t.Errorf("sent = %v", s.sent)
	}
}

func TestREPL_HistoryCommand(t *testing.T) {
	out := &bytes.Buffer{}
	err := New(strings.NewReader("ping\nhistory\nexit\n"), out, &fakeSender{}, nil).Run()
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(out.String(), "   1  ping\n") {
		t.Errorf("output = %q", out.String())
	}
}

func TestREPL_SendError(t *testing.T) {
	s := &fakeSender{fail: "boom"}
	err := New(strings.NewReader("ping\nboom\nping\n"), &bytes.Buffer{}, s, nil).Run()
	if err == nil || !strings.Contains(err.Error(), "connection closed") {
		t.Fatalf("Run() error = %v", err)
	}
	if len(s.sent) != 1 {
		t.Errorf("sent = %v", s.sent)
	}
}

func TestREPL_SetPrompt(t *testing.T) {
	out := &bytes.Buffer{}
	r := New(strings.NewReader("ping\nexit\n"), out, &fakeSender{}, nil)
	r.SetPrompt("> ")
	if err := r.Run(); err != nil {
		t.Fatal(err)
	}
	if got := out.String(); got != "> reply:ping\n> " {
		t.Errorf("output = %q", got)
	}
}
