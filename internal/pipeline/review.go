package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Action は確認工程での選択なのだ。
type Action int

const (
	ActionContinue Action = iota
	ActionRetry
	ActionRewrite
	ActionAbort
)

// Decision は確認工程での判断なのだ。Selection と Instruction は ActionRewrite のときだけ使うのだ。
type Decision struct {
	Action      Action
	Selection   string
	Instruction string
}

// Reviewer は物語本文を確認して次の操作を決めるのだ。
type Reviewer interface {
	Review(ctx context.Context, narrative string) (Decision, error)
}

// ConsoleReviewer は端末で本文を表示し、標準入力から操作を受け付けるのだ。
type ConsoleReviewer struct {
	in  *bufio.Reader
	out io.Writer
}

// NewConsoleReviewer は ConsoleReviewer を作成するのだ。
func NewConsoleReviewer(in io.Reader, out io.Writer) *ConsoleReviewer {
	return &ConsoleReviewer{in: bufio.NewReader(in), out: out}
}

// Review は本文を表示して操作を1つ読み取るのだ。入力が尽きたら続行とみなすのだ。
func (c *ConsoleReviewer) Review(ctx context.Context, narrative string) (Decision, error) {
	fmt.Fprintf(c.out, "\n%s\n\n%s\n%s\n", strings.Repeat("=", 40), narrative, strings.Repeat("=", 40))

	for {
		if err := ctx.Err(); err != nil {
			return Decision{}, err
		}
		fmt.Fprint(c.out, "[c]ontinue / [r]etry / re[w]rite / [q]uit > ")
		line, eof, err := c.readLine()
		if err != nil {
			return Decision{}, err
		}
		switch strings.ToLower(line) {
		case "", "c", "continue":
			return Decision{Action: ActionContinue}, nil
		case "r", "retry":
			return Decision{Action: ActionRetry}, nil
		case "q", "quit":
			return Decision{Action: ActionAbort}, nil
		case "w", "rewrite":
			fmt.Fprint(c.out, "書き換える箇所 > ")
			sel, _, err := c.readLine()
			if err != nil {
				return Decision{}, err
			}
			fmt.Fprint(c.out, "指示 > ")
			inst, _, err := c.readLine()
			if err != nil {
				return Decision{}, err
			}
			return Decision{Action: ActionRewrite, Selection: sel, Instruction: inst}, nil
		}
		if eof {
			return Decision{Action: ActionContinue}, nil
		}
		fmt.Fprintf(c.out, "不明な操作なのだ: %q\n", line)
	}
}

func (c *ConsoleReviewer) readLine() (string, bool, error) {
	line, err := c.in.ReadString('\n')
	if err == io.EOF {
		return strings.TrimSpace(line), true, nil
	}
	if err != nil {
		return "", false, err
	}
	return strings.TrimSpace(line), false, nil
}
