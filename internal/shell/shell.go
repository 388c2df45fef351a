// Package shell is an interactive command loop over the configured
// containers. State persists between commands, so cache hits, checked ids
// and the undo stack behave as they would inside a long-running client.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/peterh/liner"

	"github.com/h0rv/colsync/internal/app"
	"github.com/h0rv/colsync/internal/collection"
	"github.com/h0rv/colsync/internal/domain"
	"github.com/h0rv/colsync/internal/mutation"
	"github.com/h0rv/colsync/internal/query"
	"github.com/h0rv/colsync/internal/slug"
	"github.com/h0rv/colsync/internal/store"
)

type command struct {
	usage string
	help  string
	run   func(s *Shell, ctx context.Context, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"use":    {"use <store>", "switch the current store", (*Shell).cmdUse},
		"stores": {"stores", "list the configured stores", (*Shell).cmdStores},
		"fetch":  {"fetch [default|force|checked]", "fetch the list for the current query", (*Shell).cmdFetch},
		"filter": {"filter <k=v>...", "update filters (no-op when nothing changes)", (*Shell).cmdFilter},
		"groups": {"groups reset", "restore default groups", (*Shell).cmdGroups},
		"get":    {"get <id> [force]", "fetch one item and select it", (*Shell).cmdGet},
		"check":  {"check <id>", "mark an id for the next checked fetch", (*Shell).cmdCheck},
		"show":   {"show [id]", "print the view or one item", (*Shell).cmdShow},
		"state":  {"state", "print status, query and side-channel fields", (*Shell).cmdState},
		"move":   {"move <status> <id>...", "move items to a status bucket", (*Shell).cmdMove},
		"bulk":   {"bulk <status>", "move every item matching the query", (*Shell).cmdBulk},
		"undo":   {"undo", "revert the most recent move", (*Shell).cmdUndo},
		"clean":  {"clean [field]...", "reset state fields (all when none given)", (*Shell).cmdClean},
		"export": {"export", "download the report for the current query", (*Shell).cmdExport},
		"sync":   {"sync [k=v]...", "start the sync job and wait for it", (*Shell).cmdSync},
	}
}

// Shell executes commands against an App.
type Shell struct {
	app     *app.App
	out     io.Writer
	current string
}

// New creates a shell writing to out. The first configured store is
// current.
func New(a *app.App, out io.Writer) *Shell {
	s := &Shell{app: a, out: out}
	if names := a.Registry.Names(); len(names) > 0 {
		s.current = names[0]
	}
	return s
}

// Current returns the name of the current store.
func (s *Shell) Current() string { return s.current }

// Execute runs one command line. It reports whether the shell should exit.
func (s *Shell) Execute(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	name, args := strings.ToLower(fields[0]), fields[1:]

	switch name {
	case "exit", "quit", "q":
		return true, nil
	case "help", "?":
		s.printHelp()
		return false, nil
	}

	return false, s.Call(ctx, name, args...)
}

// Call runs the named command with pre-split arguments.
func (s *Shell) Call(ctx context.Context, name string, args ...string) error {
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("unknown command: %s (type 'help' for commands)", name)
	}
	return cmd.run(s, ctx, args)
}

// Run reads commands from the terminal until EOF or quit.
func (s *Shell) Run(ctx context.Context) error {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(s.complete)

	if f, err := os.Open(historyFile()); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	defer saveHistory(line)

	fmt.Fprintf(s.out, "colsync shell (stores: %s)\n", strings.Join(s.app.Registry.Names(), ", "))
	fmt.Fprintln(s.out, "Type 'help' for available commands.")

	for {
		input, err := line.Prompt(s.current + "> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(s.out)
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		quit, err := s.Execute(ctx, input)
		if err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

func (s *Shell) complete(line string) []string {
	fields := strings.Fields(line)
	var out []string
	if len(fields) <= 1 && !strings.HasSuffix(line, " ") {
		for name := range commands {
			if strings.HasPrefix(name, line) {
				out = append(out, name)
			}
		}
		sort.Strings(out)
		return out
	}
	if fields[0] == "use" {
		prefix := ""
		if len(fields) > 1 {
			prefix = fields[1]
		}
		for _, name := range s.app.Registry.Names() {
			if strings.HasPrefix(name, prefix) {
				out = append(out, "use "+name)
			}
		}
	}
	return out
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".colsync_history")
}

func saveHistory(line *liner.State) {
	path := historyFile()
	if path == "" {
		return
	}
	f, err := os.Create(path)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = line.WriteHistory(f)
}

func (s *Shell) printHelp() {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	for _, name := range names {
		fmt.Fprintf(w, "  %s\t%s\n", commands[name].usage, commands[name].help)
	}
	fmt.Fprintf(w, "  %s\t%s\n", "help", "show this help")
	fmt.Fprintf(w, "  %s\t%s\n", "quit", "exit the shell")
	_ = w.Flush()
}

func (s *Shell) container() (*collection.Container, error) {
	if s.current == "" {
		return nil, errors.New("no store selected")
	}
	return s.app.Container(s.current)
}

func (s *Shell) cmdUse(_ context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: use <store>")
	}
	if _, err := s.app.Container(args[0]); err != nil {
		return err
	}
	s.current = args[0]
	return nil
}

func (s *Shell) cmdStores(_ context.Context, _ []string) error {
	for _, name := range s.app.Registry.Names() {
		marker := " "
		if name == s.current {
			marker = "*"
		}
		fmt.Fprintf(s.out, "%s %s\n", marker, name)
	}
	return nil
}

func (s *Shell) cmdFetch(ctx context.Context, args []string) error {
	c, err := s.container()
	if err != nil {
		return err
	}
	mode, err := domain.ParseMode(strings.Join(args, " "))
	if err != nil {
		return err
	}
	outcome, err := c.Fetch(ctx, mode)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%s: %d items\n", outcome, len(c.Snapshot().View))
	return nil
}

func (s *Shell) cmdFilter(_ context.Context, args []string) error {
	c, err := s.container()
	if err != nil {
		return err
	}
	update, err := query.ParseAssignments(args)
	if err != nil {
		return err
	}
	if !c.Filter(update) {
		fmt.Fprintln(s.out, "filters unchanged")
		return nil
	}
	fmt.Fprintf(s.out, "query: %s\n", c.Snapshot().Query)
	return nil
}

func (s *Shell) cmdGroups(_ context.Context, args []string) error {
	c, err := s.container()
	if err != nil {
		return err
	}
	if len(args) != 1 || args[0] != "reset" {
		return errors.New("usage: groups reset")
	}
	c.ResetGroups()
	fmt.Fprintf(s.out, "query: %s\n", c.Snapshot().Query)
	return nil
}

func (s *Shell) cmdGet(ctx context.Context, args []string) error {
	c, err := s.container()
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return errors.New("usage: get <id> [force]")
	}
	req := collection.Request{ID: args[0], Force: len(args) > 1 && args[1] == "force"}
	item, err := c.FetchOne(ctx, req)
	if err != nil {
		return err
	}
	if item == nil {
		fmt.Fprintln(s.out, "not found")
		return nil
	}
	s.printItem(item)
	return nil
}

func (s *Shell) cmdCheck(_ context.Context, args []string) error {
	c, err := s.container()
	if err != nil {
		return err
	}
	if len(args) != 1 {
		return errors.New("usage: check <id>")
	}
	if !c.Check(args[0]) {
		fmt.Fprintln(s.out, "already checked")
	}
	return nil
}

func (s *Shell) cmdShow(_ context.Context, args []string) error {
	c, err := s.container()
	if err != nil {
		return err
	}
	snap := c.Snapshot()
	if len(args) > 0 {
		item, ok := snap.Data[args[0]]
		if !ok {
			return fmt.Errorf("%s %q is not loaded", c.ObjectName(), args[0])
		}
		s.printItem(item)
		return nil
	}

	w := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	for _, item := range snap.View {
		id, _ := c.ID(item)
		fmt.Fprintf(w, "%s\t%s\n", id, s.app.Title(s.current, item))
	}
	_ = w.Flush()
	fmt.Fprintf(s.out, "%d items, status %s\n", len(snap.View), snap.Status)
	return nil
}

func (s *Shell) cmdState(_ context.Context, _ []string) error {
	c, err := s.container()
	if err != nil {
		return err
	}
	snap := c.Snapshot()
	fmt.Fprintf(s.out, "status:  %s\n", snap.Status)
	fmt.Fprintf(s.out, "query:   %s\n", snap.Query)
	fmt.Fprintf(s.out, "groups:  %s\n", slug.Of(snap.Groups))
	fmt.Fprintf(s.out, "checked: %s\n", strings.Join(snap.Checked, ","))
	fmt.Fprintf(s.out, "undos:   %d\n", len(snap.Undos))
	if snap.Err != nil {
		fmt.Fprintf(s.out, "error:   %v\n", snap.Err)
	}
	keys := make([]string, 0, len(snap.Extra))
	for k := range snap.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(s.out, "%s: %v\n", k, snap.Extra[k])
	}
	return nil
}

func (s *Shell) mover() (*mutation.Engine, error) {
	if s.current == "" {
		return nil, errors.New("no store selected")
	}
	return s.app.Mover(s.current)
}

func (s *Shell) cmdMove(ctx context.Context, args []string) error {
	m, err := s.mover()
	if err != nil {
		return err
	}
	if len(args) < 2 {
		return errors.New("usage: move <status> <id>...")
	}
	target, err := m.Targets(args[1:], query.ParseValue(args[0]))
	if err != nil {
		return err
	}
	res, err := m.Move(ctx, target)
	s.printMove(res)
	return err
}

func (s *Shell) cmdBulk(ctx context.Context, args []string) error {
	m, err := s.mover()
	if err != nil {
		return err
	}
	if len(args) != 1 {
		return errors.New("usage: bulk <status>")
	}
	res, err := m.Move(ctx, mutation.Bulk{Status: query.ParseValue(args[0])})
	s.printMove(res)
	return err
}

func (s *Shell) cmdUndo(ctx context.Context, _ []string) error {
	m, err := s.mover()
	if err != nil {
		return err
	}
	res, err := m.Undo(ctx)
	s.printMove(res)
	return err
}

func (s *Shell) printMove(res mutation.Result) {
	if len(res.Moved) == 0 {
		return
	}
	fmt.Fprintf(s.out, "moved %d\n", len(res.Moved))
	for _, b := range res.Summary {
		fmt.Fprintf(s.out, "  %s: %d\n", slug.String(b.Status), b.Count)
	}
}

func (s *Shell) cmdClean(_ context.Context, args []string) error {
	c, err := s.container()
	if err != nil {
		return err
	}
	valid := map[string]bool{
		store.FieldStatus: true, store.FieldData: true, store.FieldView: true,
		store.FieldSelected: true, store.FieldIndexes: true, store.FieldChecked: true,
		store.FieldExtra: true, store.FieldUndos: true,
	}
	for _, f := range args {
		if !valid[f] {
			return fmt.Errorf("unknown field %q", f)
		}
	}
	c.Clean(args...)
	return nil
}

func (s *Shell) cmdExport(ctx context.Context, _ []string) error {
	if s.current == "" {
		return errors.New("no store selected")
	}
	e, err := s.app.Exporter(s.current)
	if err != nil {
		return err
	}
	location, err := e.Export(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "written to %s\n", location)
	return nil
}

func (s *Shell) cmdSync(ctx context.Context, args []string) error {
	p, err := s.app.Poller()
	if err != nil {
		return err
	}
	payload, err := query.ParseAssignments(args)
	if err != nil {
		return err
	}
	job, err := p.Start(ctx, payload)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "sync %s %s after %d polls\n", job.ID, job.Status, job.Attempts)
	return nil
}

func (s *Shell) printItem(item domain.Item) {
	keys := make([]string, 0, len(item))
	for k := range item {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	w := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	for _, k := range keys {
		fmt.Fprintf(w, "%s\t%s\n", k, slug.String(item[k]))
	}
	_ = w.Flush()
}
