package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/and161185/smartnotes/internal/client"
	"github.com/and161185/smartnotes/internal/model"
	"github.com/and161185/smartnotes/internal/service"
)

const requestTimeout = 90 * time.Second

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the client version",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			fmt.Fprintf(a.out, "smartnotes %s (%s)\n", version, buildDate)
		},
	}
}

func credentialsFlags(cmd *cobra.Command, email, password *string) {
	cmd.Flags().StringVarP(email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(password, "password", "p", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
}

func (a *app) registerCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			id, err := a.client.Register(ctx, email, password)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, id)
			return nil
		},
	}
	credentialsFlags(cmd, &email, &password)
	return cmd
}

func (a *app) loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			s, err := a.identity.Login(ctx, email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "ok (%s until %s)\n", s.Email, s.ExpiresAt.Local().Format(time.RFC3339))
			return nil
		},
	}
	credentialsFlags(cmd, &email, &password)
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if err := a.identity.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "ok")
			return nil
		},
	}
}

func (a *app) lsCmd() *cobra.Command {
	var query string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List notes, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := a.session(); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			notes, err := a.client.List(ctx, query)
			if err != nil {
				return err
			}
			if asJSON {
				a.printJSON(notes)
				return nil
			}
			printNotes(a.out, notes, "")
			return nil
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "case-insensitive search over title, content and subject")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}

func printNotes(w io.Writer, notes []model.Note, openID string) {
	if len(notes) == 0 {
		fmt.Fprintln(w, "no notes")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, n := range notes {
		mark := " "
		if n.ID == openID {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s %s\t%s\t%s\t%s\n", mark, shortID(n.ID), n.UpdatedAt.Local().Format("2006-01-02 15:04"), n.Subject, n.Title)
	}
	_ = tw.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (a *app) newCmd() *cobra.Command {
	var f model.NoteFields
	var file string
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create a note",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.session()
			if err != nil {
				return err
			}
			if file != "" {
				b, err := readAll(a.in, file)
				if err != nil {
					return err
				}
				f.Content = string(b)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			n, err := a.client.Create(ctx, s.UserID, f.WithDefaults())
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, n.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&f.Title, "title", "", "note title")
	cmd.Flags().StringVar(&f.Subject, "subject", "", "note subject")
	cmd.Flags().StringVar(&f.Content, "content", "", "note content")
	cmd.Flags().StringVar(&file, "file", "", "read content from file ('-'=stdin)")
	return cmd
}

func (a *app) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print one note as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.session(); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			id, err := a.resolveID(ctx, args[0])
			if err != nil {
				return err
			}
			n, err := a.client.Get(ctx, id)
			if err != nil {
				return err
			}
			a.printJSON(n)
			return nil
		},
	}
}

func (a *app) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.session()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			id, err := a.resolveID(ctx, args[0])
			if err != nil {
				return err
			}
			if err := a.client.Delete(ctx, s.UserID, id); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "ok")
			return nil
		},
	}
}

func (a *app) aiCmd() *cobra.Command {
	var text string
	var appendResult bool
	cmd := &cobra.Command{
		Use:   "ai <" + strings.Join(client.Ops(), "|") + "> <id>",
		Short: "Run the study assistant on a note",
		Long: "Runs one assistant operation on a note's content. explain works on --text, " +
			"the passage to explain. --append adds the result to the end of the note.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.session()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			id, err := a.resolveID(ctx, args[1])
			if err != nil {
				return err
			}
			n, err := a.client.Get(ctx, id)
			if err != nil {
				return err
			}
			input := n.Content
			if args[0] == client.OpExplain {
				input = text
			}
			out, err := a.client.Assist(ctx, args[0], input, n.Subject)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, out)
			if !appendResult {
				return nil
			}
			f := n.Fields()
			f.Content = service.AppendResult(f.Content, out)
			_, err = a.client.Update(ctx, s.UserID, n.ID, f)
			return err
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "passage to explain")
	cmd.Flags().BoolVar(&appendResult, "append", false, "append the result to the note")
	return cmd
}

// resolveID expands a unique id prefix, as printed by ls, to the full note id.
func (a *app) resolveID(ctx context.Context, prefix string) (string, error) {
	notes, err := a.client.List(ctx, "")
	if err != nil {
		return "", err
	}
	return matchID(notes, prefix)
}

func matchID(notes []model.Note, prefix string) (string, error) {
	var found string
	for _, n := range notes {
		if n.ID == prefix {
			return n.ID, nil
		}
		if strings.HasPrefix(n.ID, prefix) {
			if found != "" {
				return "", fmt.Errorf("ambiguous id %q", prefix)
			}
			found = n.ID
		}
	}
	if found == "" {
		return "", fmt.Errorf("no note %q", prefix)
	}
	return found, nil
}

func readAll(stdin io.Reader, p string) ([]byte, error) {
	if p == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(p)
}
