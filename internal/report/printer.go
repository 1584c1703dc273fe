package report

import (
	"fmt"
	"io"
	"os"

	"github.com/disiqueira/gotree"
	"github.com/pterm/pterm"
)

func init() {
	pterm.DisableColor()
}

// NewPrinter takes a variadic slice of PrinterOptions
// and returns a configured Printer instance.
func NewPrinter(opts ...PrinterOption) *Printer {
	var cfg PrinterConfig

	cfg.Option(opts...)
	cfg.Default()

	return &Printer{
		cfg: cfg,
	}
}

type Printer struct {
	cfg PrinterConfig
}

func (p *Printer) PrintfOut(s string, args ...any) error {
	if _, err := fmt.Fprintf(p.cfg.Out, s, args...); err != nil {
		return fmt.Errorf("printing to out stream: %w", err)
	}

	return nil
}

// PrintTable renders rows below a header line.
func (p *Printer) PrintTable(headers []string, rows [][]string) error {
	data := make([][]string, 0, len(rows)+1)
	if len(headers) > 0 {
		data = append(data, headers)
	}
	data = append(data, rows...)

	table := pterm.DefaultTable.WithData(data).WithSeparator("  ")
	if len(headers) > 0 {
		table = table.WithHasHeader()
	}

	output, err := table.Srender()
	if err != nil {
		return fmt.Errorf("rendering table: %w", err)
	}

	return p.PrintfOut("%s\n", output)
}

func (p *Printer) PrintTree(tree gotree.Tree) error {
	return p.PrintfOut("%s", tree.Print())
}

type PrinterConfig struct {
	Out io.Writer
}

func (c *PrinterConfig) Option(opts ...PrinterOption) {
	for _, opt := range opts {
		opt.ConfigurePrinter(c)
	}
}

func (c *PrinterConfig) Default() {
	if c.Out == nil {
		c.Out = os.Stdout
	}
}

type PrinterOption interface {
	ConfigurePrinter(*PrinterConfig)
}
