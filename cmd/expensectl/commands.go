package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"

	"expensetracker/internal/core"
)

type ledger interface {
	List(ctx context.Context) ([]core.Expense, error)
	Add(ctx context.Context, description, amount, date string) (core.Expense, []string, error)
	Delete(ctx context.Context, id string) (int, error)
}

// opener returns the ledger and a function releasing it.
type opener func(ctx context.Context) (ledger, func(), error)

func commands(open opener, stdout, stderr io.Writer) []subcommands.Command {
	return []subcommands.Command{
		&listCmd{open: open, stdout: stdout, stderr: stderr},
		&addCmd{open: open, stdout: stdout, stderr: stderr},
		&deleteCmd{open: open, stdout: stdout, stderr: stderr},
	}
}

type listCmd struct {
	open           opener
	stdout, stderr io.Writer

	asJSON bool
}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "list every stored expense with the total" }
func (*listCmd) Usage() string {
	return `expensectl list [-json]

  Prints the stored expenses in insertion order followed by the total.
`
}

func (c *listCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.asJSON, "json", false, "Print the list as a JSON array, in the data file format.")
}

func (c *listCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	l, release, err := c.open(ctx)
	if err != nil {
		fmt.Fprintln(c.stderr, err)
		return subcommands.ExitFailure
	}
	defer release()

	expenses, err := l.List(ctx)
	if err != nil {
		fmt.Fprintln(c.stderr, err)
		return subcommands.ExitFailure
	}

	if c.asJSON {
		enc := json.NewEncoder(c.stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(expenses); err != nil {
			fmt.Fprintln(c.stderr, err)
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	}

	tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "ID\tDATE\tAMOUNT\tDESCRIPTION\t")
	for _, e := range expenses {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t\n", e.ID, e.Date, core.FormatAmount(e.Amount), e.Description)
	}
	summary := core.Summarize(expenses)
	fmt.Fprintf(tw, "\t\t%s\tTOTAL (%d)\t\n", core.FormatAmount(summary.Total), summary.Count)
	if err := tw.Flush(); err != nil {
		fmt.Fprintln(c.stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type addCmd struct {
	open           opener
	stdout, stderr io.Writer

	description string
	amount      string
	date        string
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "add an expense" }
func (*addCmd) Usage() string {
	return `expensectl add -desc <description> -amount <amount> [-date YYYY-MM-DD]

  Validates and stores a new expense with the next id. The date defaults
  to today.
`
}

func (c *addCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.description, "desc", "", "Description of the expense.")
	f.StringVar(&c.amount, "amount", "", "Positive amount, e.g. 3.50.")
	f.StringVar(&c.date, "date", time.Now().Format(core.DateLayout), "Date of the expense (YYYY-MM-DD).")
}

func (c *addCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	l, release, err := c.open(ctx)
	if err != nil {
		fmt.Fprintln(c.stderr, err)
		return subcommands.ExitFailure
	}
	defer release()

	exp, msgs, err := l.Add(ctx, c.description, c.amount, c.date)
	if err != nil {
		fmt.Fprintln(c.stderr, err)
		return subcommands.ExitFailure
	}
	if len(msgs) > 0 {
		for _, m := range msgs {
			fmt.Fprintln(c.stderr, m)
		}
		return subcommands.ExitUsageError
	}

	fmt.Fprintf(c.stdout, "Added expense %d: %s %s %s\n", exp.ID, exp.Date, core.FormatAmount(exp.Amount), exp.Description)
	return subcommands.ExitSuccess
}

type deleteCmd struct {
	open           opener
	stdout, stderr io.Writer
}

func (*deleteCmd) Name() string     { return "delete" }
func (*deleteCmd) Synopsis() string { return "delete expenses by id" }
func (*deleteCmd) Usage() string {
	return `expensectl delete <id> [<id>...]

  Removes every expense with a matching id. Ids must be positive integers;
  unknown ids are ignored.
`
}

func (*deleteCmd) SetFlags(*flag.FlagSet) {}

func (c *deleteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintln(c.stderr, "delete: at least one id is required")
		return subcommands.ExitUsageError
	}
	ids := make([]string, 0, f.NArg())
	for _, arg := range f.Args() {
		id, err := core.ParseID(arg)
		if err != nil {
			fmt.Fprintf(c.stderr, "delete: %q: %v\n", arg, err)
			return subcommands.ExitUsageError
		}
		ids = append(ids, strconv.FormatInt(id, 10))
	}

	l, release, err := c.open(ctx)
	if err != nil {
		fmt.Fprintln(c.stderr, err)
		return subcommands.ExitFailure
	}
	defer release()

	total := 0
	for _, id := range ids {
		n, err := l.Delete(ctx, id)
		if err != nil {
			fmt.Fprintln(c.stderr, err)
			return subcommands.ExitFailure
		}
		total += n
	}
	fmt.Fprintf(c.stdout, "Deleted %d expense(s)\n", total)
	return subcommands.ExitSuccess
}
