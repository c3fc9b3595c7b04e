package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/javajack/xlcalc"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"
)

const (
	historyFile = ".xlcalc_history"
	prompt      = "xlcalc> "
)

const replHelp = `Commands:
  sheet NAME ROWS COLS   add a sheet
  set ADDR TEXT          set a cell, e.g. set Sheet1!A1 =B1*2
  get ADDR               print a cell value
  deps ADDR              print the cells a formula reads and the cells reading it
  addrow SHEET N         insert an empty row before row N (1-based)
  delrow SHEET N         delete row N (1-based)
  describe               print the dependency graph
  lint                   print formula problems
  :quit                  exit
`

func newReplCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "repl [FILE]",
		Short: "Edit a workbook interactively",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wb := xlcalc.NewWorkbook(flags.options(cmd.ErrOrStderr())...)
			if len(args) == 1 {
				var err error
				if wb, err = openWorkbook(cmd, flags, args[0]); err != nil {
					return err
				}
			}
			return runRepl(&session{wb: wb, out: cmd.OutOrStdout()})
		},
	}
}

func runRepl(s *session) error {
	fmt.Fprintln(s.out, "xlcalc "+version+" REPL. Type help for commands, :quit to exit.")

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	for {
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			fmt.Fprintln(s.out)
			return nil
		}
		if err != nil {
			return err
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		ln.AppendHistory(line)
		quit, err := s.exec(line)
		if err != nil {
			fmt.Fprintln(s.out, "error:", err)
		}
		if quit {
			return nil
		}
	}
}

// session executes REPL commands against one workbook.
type session struct {
	wb  *xlcalc.Workbook
	out io.Writer
}

func (s *session) exec(line string) (quit bool, err error) {
	cmd, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	cmd = strings.ToLower(cmd)
	rest = strings.TrimSpace(rest)
	args := strings.Fields(rest)

	switch cmd {
	case ":quit", ":q", "quit", "exit":
		return true, nil
	case "help", ":help":
		fmt.Fprint(s.out, replHelp)
	case "sheet":
		if len(args) != 3 {
			return false, errors.New("usage: sheet NAME ROWS COLS")
		}
		rows, err1 := strconv.Atoi(args[1])
		cols, err2 := strconv.Atoi(args[2])
		if err := errors.Join(err1, err2); err != nil {
			return false, err
		}
		return false, s.wb.AddSheet(args[0], rows, cols)
	case "set":
		addr, text, _ := strings.Cut(rest, " ")
		if addr == "" {
			return false, errors.New("usage: set ADDR TEXT")
		}
		if err := s.wb.Set(addr, strings.TrimSpace(text)); err != nil {
			return false, err
		}
		return false, s.print(addr)
	case "get":
		if len(args) != 1 {
			return false, errors.New("usage: get ADDR")
		}
		return false, s.print(args[0])
	case "deps":
		if len(args) != 1 {
			return false, errors.New("usage: deps ADDR")
		}
		reads, err := s.wb.Dependencies(args[0])
		if err != nil {
			return false, err
		}
		readBy, err := s.wb.Dependents(args[0])
		if err != nil {
			return false, err
		}
		fmt.Fprintf(s.out, "reads: %s\nread by: %s\n", joinRefs(reads), joinRefs(readBy))
	case "addrow", "delrow":
		if len(args) != 2 {
			return false, fmt.Errorf("usage: %s SHEET N", cmd)
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return false, err
		}
		if cmd == "addrow" {
			return false, s.wb.AddRow(args[0], n-1)
		}
		return false, s.wb.RemoveRow(args[0], n-1)
	case "describe":
		fmt.Fprint(s.out, s.wb.Describe())
	case "lint":
		for _, issue := range s.wb.Validate() {
			fmt.Fprintln(s.out, issue)
		}
	default:
		return false, fmt.Errorf("unknown command %q, type help", cmd)
	}
	return false, nil
}

func (s *session) print(addr string) error {
	c, err := s.wb.CellAt(addr)
	if err != nil {
		return err
	}
	ref := c.Ref()
	text, err := s.wb.GetDisplayText(ref.Sheet, ref.Row, ref.Col)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%s = %s\n", ref, text)
	return nil
}

func joinRefs(refs []xlcalc.CellRef) string {
	if len(refs) == 0 {
		return "-"
	}
	parts := make([]string, len(refs))
	for i, r := range refs {
		parts[i] = r.String()
	}
	return strings.Join(parts, ", ")
}
