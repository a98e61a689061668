package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"
)

const helpText = `Available commands:
  register                 create an account
  login                    open a session
  logout                   close the session
  list                     show your tracks in playback order
  upload <path>            add an audio file
  rename <id> <name...>    change a track's name
  delete <id>              remove a track
  reorder <id>...          set the playback order
  fetch <handle> <dest>    download a track's file
  help, exit`

// Shell runs client commands, one per line or one per invocation.
type Shell struct {
	Client   *Client
	Prompter *Prompter
	Out      io.Writer
	// Timeout bounds each command; zero means no limit.
	Timeout time.Duration
}

// ErrExit is returned by Exec for the exit command.
var ErrExit = errors.New("exit")

// Run reads commands until exit or end of input. Command errors are printed
// and do not stop the loop.
func (s *Shell) Run(ctx context.Context) error {
	for {
		line, err := s.Prompter.Line(s.promptLabel())
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(s.Out)
			return nil
		}
		if err != nil {
			return err
		}
		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		err = s.Exec(ctx, args)
		if errors.Is(err, ErrExit) {
			fmt.Fprintln(s.Out, "Bye")
			return nil
		}
		if err != nil {
			fmt.Fprintln(s.Out, "error:", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (s *Shell) promptLabel() string {
	if u := s.Client.Username(); u != "" {
		return "soundpad(" + u + ")> "
	}
	return "soundpad> "
}

// Exec runs a single command.
func (s *Shell) Exec(ctx context.Context, args []string) error {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	switch args[0] {
	case "help":
		fmt.Fprintln(s.Out, helpText)
		return nil
	case "exit", "quit":
		return ErrExit
	case "register":
		user, pass, err := s.credentials()
		if err != nil {
			return err
		}
		if _, err := s.Client.Register(ctx, user, pass); err != nil {
			return err
		}
		fmt.Fprintf(s.Out, "✅ Registered %s. Use login to start a session.\n", user)
		return nil
	case "login":
		user, pass, err := s.credentials()
		if err != nil {
			return err
		}
		if err := s.Client.Login(ctx, user, pass); err != nil {
			return err
		}
		fmt.Fprintf(s.Out, "Logged in as %s\n", s.Client.Username())
		return nil
	case "logout":
		if err := s.Client.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(s.Out, "Logged out")
		return nil
	case "list":
		board, err := s.Client.List(ctx)
		if err != nil {
			return err
		}
		s.printBoard(board)
		return nil
	case "upload":
		if len(args) != 2 {
			return usage("upload <path>")
		}
		track, err := s.Client.Upload(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(s.Out, "Uploaded #%d %s (%s)\n", track.ID, track.Name, track.Handle)
		return nil
	case "rename":
		if len(args) < 3 {
			return usage("rename <id> <name...>")
		}
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		if err := s.Client.Rename(ctx, id, strings.Join(args[2:], " ")); err != nil {
			return err
		}
		fmt.Fprintln(s.Out, "Track renamed")
		return nil
	case "delete":
		if len(args) != 2 {
			return usage("delete <id>")
		}
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		if err := s.Client.Delete(ctx, id); err != nil {
			return err
		}
		fmt.Fprintln(s.Out, "Track deleted")
		return nil
	case "reorder":
		if len(args) < 2 {
			return usage("reorder <id>...")
		}
		order := make([]int64, 0, len(args)-1)
		for _, a := range args[1:] {
			id, err := parseID(a)
			if err != nil {
				return err
			}
			order = append(order, id)
		}
		if err := s.Client.Reorder(ctx, order); err != nil {
			return err
		}
		fmt.Fprintln(s.Out, "Order saved")
		return nil
	case "fetch":
		if len(args) != 3 {
			return usage("fetch <handle> <dest>")
		}
		return s.fetch(ctx, args[1], args[2])
	default:
		return fmt.Errorf("unknown command %q, type 'help' for a list of commands", args[0])
	}
}

func (s *Shell) credentials() (string, string, error) {
	user, err := s.Prompter.Line("Username: ")
	if err != nil {
		return "", "", err
	}
	pass, err := s.Prompter.Password("Password: ")
	if err != nil {
		return "", "", err
	}
	return user, pass, nil
}

func (s *Shell) printBoard(board *Board) {
	if len(board.Tracks) == 0 {
		fmt.Fprintf(s.Out, "%s has no tracks yet\n", board.User)
		return
	}
	tw := tabwriter.NewWriter(s.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tHANDLE")
	for _, t := range board.Tracks {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", t.ID, t.Name, t.Handle)
	}
	_ = tw.Flush()
}

// fetch downloads into dest, removing the file again when the download fails.
func (s *Shell) fetch(ctx context.Context, handle, dest string) error {
	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	n, err := s.Client.Fetch(ctx, handle, f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dest)
		return err
	}
	fmt.Fprintf(s.Out, "Saved %d bytes to %s\n", n, dest)
	return nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid track id %q", s)
	}
	return id, nil
}

func usage(u string) error {
	return fmt.Errorf("usage: %s", u)
}
