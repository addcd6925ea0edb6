package confirm

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

// CLI is a terminal-backed UI implementation used by cmd/txsign-host. It is not part of the
//   signing core; real firmware drives its own display instead.
type CLI struct {
	in  *bufio.Reader
	out *os.File
}

func NewCLI() *CLI {
	return &CLI{in: bufio.NewReader(os.Stdin), out: os.Stdout}
}

func (c *CLI) ConfirmFee(ctx context.Context, fee, total uint64) bool {
	return c.ask(fmt.Sprintf("Confirm Fee: %d (total %d)", fee, total))
}

func (c *CLI) ConfirmTransaction(ctx context.Context, total, fee uint64) bool {
	return c.ask(fmt.Sprintf("Confirm Transaction: total %d, fee %d", total, fee))
}

func (c *CLI) ShowMessage(ctx context.Context, text string) {
	fmt.Fprintln(c.out, text)
}

func (c *CLI) GoHome(ctx context.Context) {
	fmt.Fprintln(c.out, "--- home ---")
}

func (c *CLI) ask(prompt string) bool {
	fmt.Fprintf(c.out, "%s [y/N]: ", prompt)
	line, _ := c.in.ReadString('\n')
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "y")
}
