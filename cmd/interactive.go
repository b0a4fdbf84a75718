package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"propertyregistry/internal/types"
)

func (a *app) browseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse properties with the arrow keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			props, err := a.svc.List(cmd.Context(), 0, 0)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(props) == 0 {
				fmt.Fprintln(out, "No properties")
				return nil
			}
			lines := make([]string, len(props))
			for i, p := range props {
				lines[i] = formatLine(out, p)
			}
			interactiveSelect(a.stdin, out, lines, func(i int) {
				a.renderDetails(cmd.Context(), out, props[i])
			})
			return nil
		},
	}
}

// renderDetails re-reads a record so the details reflect the ledger, not the list snapshot.
func (a *app) renderDetails(ctx context.Context, w io.Writer, p types.Property) {
	fresh, err := a.svc.Get(ctx, p.ID)
	if err != nil {
		fmt.Fprintf(w, "Failed to load property #%d: %v\n", p.ID, err)
		return
	}
	renderProperty(w, fresh)
	entries, err := a.svc.History(ctx, p.ID)
	if err != nil {
		fmt.Fprintf(w, "Failed to load history: %v\n", err)
		return
	}
	renderHistory(w, entries)
}

// console reads and writes the mode word of one terminal handle.
type console struct {
	flag uint32
	get  func() (uint32, error)
	set  func(mode uint32) error
}

// switchModes sets each console's flag and returns a func that restores, in reverse order,
// only the modes it actually changed. Handles whose mode cannot be read are skipped.
func switchModes(consoles []console) (restore func()) {
	var undo []func()
	for _, c := range consoles {
		mode, err := c.get()
		if err != nil || mode&c.flag != 0 {
			continue
		}
		if err := c.set(mode | c.flag); err != nil {
			continue
		}
		undo = append(undo, func() { _ = c.set(mode) })
	}
	return func() {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
	}
}

// interactiveSelect lets user move through the provided lines with arrow keys and press Enter
// to call show for the selected index.
func interactiveSelect(in *os.File, out io.Writer, lines []string, show func(i int)) {
	if len(lines) == 0 {
		return
	}

	restore := enableVT(in, out)
	defer restore()

	fd := int(in.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		fmt.Fprintln(out, "(interactive selection not supported on this terminal)")
		for _, l := range lines {
			fmt.Fprintln(out, l)
		}
		return
	}
	defer func() { _ = term.Restore(fd, oldState) }()

	reader := bufio.NewReader(in)

	selected := 0

	redraw := func() {
		// Clear screen (ANSI reset to top + clear screen)
		fmt.Fprint(out, "\033[H\033[2J")
		for i, l := range lines {
			prefix := "  "
			if i == selected {
				prefix = "> "
			}
			// raw mode needs an explicit carriage return
			fmt.Fprint(out, prefix+l+"\r\n")
		}
		fmt.Fprint(out, "(↑/↓ to navigate, Enter to view details, Esc to quit)\r\n")
	}

	// details leaves raw mode, shows the selection and re-enters raw mode.
	details := func() bool {
		_ = term.Restore(fd, oldState)
		fmt.Fprintln(out)
		show(selected)

		// Wait for user acknowledgement before returning to list
		fmt.Fprint(out, "\n(press Enter to return)")
		_, _ = bufio.NewReader(in).ReadBytes('\n')

		oldState, err = term.MakeRaw(fd)
		if err != nil {
			return false
		}
		reader = bufio.NewReader(in)
		redraw()
		return true
	}

	up := func() {
		if selected > 0 {
			selected--
			redraw()
		}
	}
	down := func() {
		if selected < len(lines)-1 {
			selected++
			redraw()
		}
	}

	redraw()

	for {
		b1, err := reader.ReadByte()
		if err != nil {
			return
		}
		// Handle Windows console arrow sequences (0 or 224, then code)
		if b1 == 0 || b1 == 224 {
			b2, _ := reader.ReadByte()
			switch b2 {
			case 72:
				up()
			case 80:
				down()
			case 13:
				if !details() {
					return
				}
			}
			continue
		}

		switch b1 {
		case 27: // ESC or ANSI sequence
			if reader.Buffered() == 0 {
				fmt.Fprint(out, "\r\n")
				return
			}
			b2, _ := reader.ReadByte()
			if b2 != '[' || reader.Buffered() == 0 {
				continue
			}
			b3, _ := reader.ReadByte()
			switch b3 {
			case 'A':
				up()
			case 'B':
				down()
			}
		case 'k':
			up()
		case 'j':
			down()
		case '\r', '\n':
			if !details() {
				return
			}
		case 3, 'q': // Ctrl-C
			fmt.Fprint(out, "\r\n")
			return
		}
	}
}
