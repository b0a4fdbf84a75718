package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"propertyregistry/internal/ledger"
	"propertyregistry/internal/types"
)

const (
	colorRed   = "\033[31m"
	colorGreen = "\033[32m"
	colorReset = "\033[0m"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes one CLI invocation and returns the process exit code.
func run(ctx context.Context, args []string, stdin *os.File, stdout, stderr io.Writer) int {
	a := newApp(stdin, stderr)
	root := a.rootCmd(stdout)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if cerr := a.teardown(ctx); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitCode(err)
	}
	return 0
}

// exitCode maps an error kind to a distinct process status so scripts can branch on it.
func exitCode(err error) int {
	switch ledger.KindOf(err) {
	case ledger.KindNone:
		return 0
	case ledger.InvalidInput:
		return 2
	case ledger.Unauthorized:
		return 3
	case ledger.NotFound:
		return 4
	case ledger.NotForSale:
		return 5
	case ledger.InsufficientPayment:
		return 6
	default:
		return 1
	}
}

// ---------------- Rendering ----------------

// colorize wraps s in an ANSI color when w is a terminal.
func colorize(w io.Writer, color, s string) string {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return color + s + colorReset
	}
	return s
}

// status describes whether a record can be bought.
func status(w io.Writer, p types.Property) string {
	switch {
	case p.Retired:
		return colorize(w, colorRed, "Retired (split)")
	case p.IsSellable:
		return colorize(w, colorGreen, fmt.Sprintf("For sale at %d", p.SalePrice))
	case p.SalePrice > 0:
		return fmt.Sprintf("Not for sale (asking price %d staged)", p.SalePrice)
	default:
		return "Not for sale"
	}
}

// renderProperty prints the property information in a readable layout.
func renderProperty(w io.Writer, p types.Property) {
	fmt.Fprintln(w, strings.Repeat("-", 80))
	fmt.Fprintf(w, "Property          : #%d\n", p.ID)
	fmt.Fprintf(w, "Owner             : %s\n", p.OwnerName)
	fmt.Fprintf(w, "Gov UID           : %s\n", p.GovUID)
	fmt.Fprintf(w, "Owner Account     : %s\n", p.OwnerAccount)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Address           : %s\n", p.AddressLine1)
	if p.AddressLine2 != "" {
		fmt.Fprintf(w, "                    %s\n", p.AddressLine2)
	}
	fmt.Fprintf(w, "                    %s, %s %s\n", p.City, p.State, p.PinCode)
	fmt.Fprintf(w, "                    %s\n", p.Country)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Cost              : %d\n", p.Cost)
	fmt.Fprintf(w, "Status            : %s\n", status(w, p))
	if p.Parent != nil {
		fmt.Fprintf(w, "Split From        : #%d\n", *p.Parent)
	}
	fmt.Fprintln(w, strings.Repeat("-", 80))
}

// formatLine renders a record as a single list row.
func formatLine(w io.Writer, p types.Property) string {
	return fmt.Sprintf("#%-5d %-24.24s %-28.28s %12d  %s",
		p.ID, p.OwnerName, p.AddressLine1+", "+p.City, p.Cost, status(w, p))
}

// renderHistory prints journal entries oldest first.
func renderHistory(w io.Writer, entries []types.JournalEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No history recorded")
		return
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%4d  %s  %-16s %s  %s\n", e.Seq, e.At.Format("2006-01-02 15:04:05"), e.Op, e.Actor, e.Detail)
	}
}
