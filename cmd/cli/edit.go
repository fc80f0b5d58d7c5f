package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/and161185/smartnotes/internal/client"
	"github.com/and161185/smartnotes/internal/model"
	"github.com/and161185/smartnotes/internal/notesync"
	"github.com/and161185/smartnotes/internal/service"
)

const shellHelp = `commands:
  ls [query]            list notes (* marks the open one)
  open <id>             open a note; unsaved edits are saved first
  new [title]           create a note and open it
  title|subject|content <text>
                        replace a field of the open note
  append <text>         add a line to the open note's content
  show                  print the open note's buffer
  save                  save now instead of waiting for autosave
  rm [id]               delete a note (the open one by default)
  ai <op> [append]      run the assistant on the open note; ops: %s
  explain <text>        explain a passage
  status                save status of the open note
  logout                save, sign out and leave
  quit                  save and leave
`

var errQuit = errors.New("quit")

func (a *app) editCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit [id]",
		Short: "Interactive editor with autosave and live updates",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.session(); err != nil {
				return err
			}
			sh := newShell(a)
			defer sh.close()
			if err := sh.start(cmd.Context()); err != nil {
				return err
			}
			if len(args) == 1 {
				if err := sh.exec(cmd.Context(), "open "+args[0]); err != nil {
					return err
				}
			}
			return sh.run(cmd.Context())
		},
	}
}

// shell drives a notesync session from line commands. The session follows the identity:
// signing out flushes and closes it.
type shell struct {
	a     *app
	mgr   *notesync.Manager
	unsub func()
}

func newShell(a *app) *shell {
	sh := &shell{a: a}
	sh.mgr = notesync.NewManager(a.client,
		notesync.WithDebounce(a.debounce),
		notesync.WithLogger(a.log),
		notesync.WithErrorHandler(func(err error) {
			fmt.Fprintf(a.out, "autosave failed: %v\n", err)
		}),
	)
	return sh
}

func (sh *shell) start(ctx context.Context) error {
	var openErr error
	sh.unsub = sh.a.identity.OnSessionChange(func(s *model.Session) {
		if err := sh.mgr.HandleSessionChange(ctx, s); err != nil {
			sh.a.log.Warn("session change", zap.Error(err))
			openErr = err
		}
	})
	if openErr != nil {
		return openErr
	}
	if sh.mgr.Session() == nil {
		return errNotLoggedIn
	}
	return nil
}

func (sh *shell) close() {
	if sh.unsub != nil {
		sh.unsub()
	}
	if err := sh.mgr.Close(context.Background()); err != nil {
		fmt.Fprintf(sh.a.out, "unsaved changes lost: %v\n", err)
	}
}

func (sh *shell) run(ctx context.Context) error {
	fmt.Fprintf(sh.a.out, "type help for commands\n")
	sc := bufio.NewScanner(sh.a.in)
	sc.Buffer(make([]byte, 64<<10), 1<<20)
	for {
		fmt.Fprint(sh.a.out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(sh.a.out)
			return sc.Err()
		}
		err := sh.exec(ctx, sc.Text())
		switch {
		case errors.Is(err, errQuit):
			return nil
		case err != nil:
			fmt.Fprintf(sh.a.out, "error: %v\n", err)
		}
	}
}

func (sh *shell) exec(ctx context.Context, line string) error {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)
	if cmd == "" {
		return nil
	}
	s := sh.mgr.Session()
	if s == nil {
		return errNotLoggedIn
	}

	switch cmd {
	case "help", "?":
		fmt.Fprintf(sh.a.out, shellHelp, strings.Join(client.Ops(), ", "))
	case "ls":
		id, _, _ := s.Current()
		printNotes(sh.a.out, model.Filter(s.Snapshot(), arg), id)
	case "open":
		id, err := matchID(s.Snapshot(), arg)
		if err != nil {
			return err
		}
		if err := s.Select(ctx, id); err != nil {
			return err
		}
		sh.show(s)
	case "new":
		n, err := s.Create(ctx, model.NoteFields{Title: arg})
		if err != nil {
			return err
		}
		fmt.Fprintf(sh.a.out, "opened %s\n", shortID(n.ID))
	case "title", "subject", "content":
		if err := sh.requireOpen(s); err != nil {
			return err
		}
		s.Edit(model.Field(cmd), arg)
	case "append":
		_, f, ok := s.Current()
		if !ok {
			return errors.New("no note open")
		}
		content := arg
		if f.Content != "" {
			content = f.Content + "\n" + arg
		}
		s.Edit(model.FieldContent, content)
	case "show":
		if err := sh.requireOpen(s); err != nil {
			return err
		}
		sh.show(s)
	case "save":
		if err := s.Flush(ctx); err != nil {
			return err
		}
		fmt.Fprintln(sh.a.out, s.Status())
	case "rm":
		id, _, ok := s.Current()
		if arg != "" {
			var err error
			if id, err = matchID(s.Snapshot(), arg); err != nil {
				return err
			}
		} else if !ok {
			return errors.New("no note open")
		}
		return s.Delete(ctx, id)
	case "ai":
		op, mode, _ := strings.Cut(arg, " ")
		return sh.assist(ctx, s, op, "", strings.TrimSpace(mode) == "append")
	case "explain":
		return sh.assist(ctx, s, client.OpExplain, arg, false)
	case "status":
		if st := s.Status(); st != "" {
			fmt.Fprintln(sh.a.out, st)
		} else {
			fmt.Fprintln(sh.a.out, "no note open")
		}
	case "logout":
		// listeners shut the session down with the old credentials still valid
		if err := sh.a.identity.Logout(); err != nil {
			return err
		}
		return errQuit
	case "quit", "exit":
		return errQuit
	default:
		return fmt.Errorf("unknown command %q (try help)", cmd)
	}
	return nil
}

func (sh *shell) requireOpen(s *notesync.Session) error {
	if _, _, ok := s.Current(); !ok {
		return errors.New("no note open")
	}
	return nil
}

func (sh *shell) show(s *notesync.Session) {
	id, f, _ := s.Current()
	fmt.Fprintf(sh.a.out, "[%s] %s (%s)\n%s\n", shortID(id), f.Title, f.Subject, f.Content)
}

// assist runs op on the open note, or on text when given. With appendResult the answer is added
// to the buffer and saved by the usual autosave.
func (sh *shell) assist(ctx context.Context, s *notesync.Session, op, text string, appendResult bool) error {
	id, f, ok := s.Current()
	if text == "" {
		if !ok {
			return errors.New("no note open")
		}
		text = f.Content
	}
	fmt.Fprintln(sh.a.out, "thinking…")
	out, err := sh.a.client.Assist(ctx, op, text, f.Subject)
	if err != nil {
		return err
	}
	fmt.Fprintln(sh.a.out, out)
	if appendResult && ok && !appendAnswer(s, id, out) {
		fmt.Fprintln(sh.a.out, "note closed while waiting; answer not appended")
	}
	return nil
}

// appendAnswer adds answer to the current buffer of noteID. The buffer is read after the
// assistant returns so edits made meanwhile are kept. False when another note is open.
func appendAnswer(s *notesync.Session, noteID, answer string) bool {
	id, cur, ok := s.Current()
	if !ok || id != noteID {
		return false
	}
	s.Edit(model.FieldContent, service.AppendResult(cur.Content, answer))
	return true
}
