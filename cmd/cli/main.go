// Command smartnotes is a terminal client for the SmartNotes service.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/and161185/smartnotes/internal/client"
	"github.com/and161185/smartnotes/internal/model"
	"github.com/and161185/smartnotes/internal/notesync"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var errNotLoggedIn = errors.New("not logged in (run: smartnotes login)")

// app carries what every command needs once flags are parsed.
type app struct {
	server   string
	debounce time.Duration
	verbose  bool

	in  io.Reader
	out io.Writer

	log      *zap.Logger
	client   *client.Client
	identity *client.Identity
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	a := &app{in: in, out: out}

	root := &cobra.Command{
		Use:           "smartnotes",
		Short:         "Study notes with autosave and an AI assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
	}
	root.SetIn(in)
	root.SetOut(out)

	def := os.Getenv("SMARTNOTES_URL")
	if def == "" {
		def = "http://localhost:5000"
	}
	root.PersistentFlags().StringVar(&a.server, "server", def, "server base URL")
	root.PersistentFlags().DurationVar(&a.debounce, "debounce", notesync.DefaultDebounce, "autosave delay in the editor")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log to stderr")

	root.AddCommand(
		a.versionCmd(),
		a.registerCmd(),
		a.loginCmd(),
		a.logoutCmd(),
		a.lsCmd(),
		a.newCmd(),
		a.showCmd(),
		a.rmCmd(),
		a.aiCmd(),
		a.editCmd(),
	)
	return root
}

func (a *app) init() error {
	a.log = zap.NewNop()
	if a.verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		a.log = l
	}
	a.client = client.New(a.server, client.WithLogger(a.log))
	a.identity = client.NewIdentity(a.client, fileSessions{}, a.log)
	if _, err := a.identity.Restore(); err != nil {
		a.log.Warn("restore session", zap.Error(err))
	}
	return nil
}

// session returns the signed-in session or errNotLoggedIn.
func (a *app) session() (*model.Session, error) {
	s := a.identity.Current()
	if s == nil {
		return nil, errNotLoggedIn
	}
	return s, nil
}

func (a *app) printJSON(v any) {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
