package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	privchat "github.com/privchat/privchat-go"
)

var watchVerbose bool

func init() {
	watchCmd.Flags().BoolVarP(&watchVerbose, "verbose", "v", false, "Log session internals")
	rootCmd.AddCommand(watchCmd)
}

const watchHelp = `Plain input is sent to the selected dialog. Commands:
  /dialogs          list known dialogs
  /select <id>      select a dialog by id or title
  /users            fetch the user directory
  /filter <text>    filter dialogs by title
  /upload <file>    send a file to the selected dialog
  /quit             exit`

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Open an interactive chat session",
	Long:  "Connect to the chat backend and keep a live session on the terminal.\n\n" + watchHelp,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := requireAuth()

		logger := newLogger(watchVerbose)
		defer logger.Sync()

		api := privchat.NewClient(cfg.Server.URL, privchat.WithToken(cfg.Auth.Token))
		sock := privchat.NewSocket(cfg.Server.URL, &privchat.SocketConfig{
			Token:         cfg.Auth.Token,
			AutoReconnect: true,
			Logger:        logger.Named("socket"),
		})
		sess := privchat.NewSession(api, sock, logger.Named("session"))
		sess.OnChange(printUpdates())

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() { errCh <- sess.Run(ctx) }()
		defer sock.Close()

		dialCtx, dialCancel := context.WithTimeout(ctx, 15*time.Second)
		err := sock.Connect(dialCtx)
		dialCancel()
		if err != nil {
			stop()
			<-errCh
			return fmt.Errorf("failed to connect: %w", err)
		}

		fmt.Println("Type a message, or /help for commands.")
		go readInput(stop, sess)

		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		fmt.Println("Session closed.")
		return nil
	},
}

// readInput feeds terminal input into the session until /quit or EOF.
func readInput(stop func(), sess *privchat.Session) {
	defer stop()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			sess.Dispatch(privchat.SendIntent{Body: line})
			continue
		}

		cmd, rest, _ := strings.Cut(line, " ")
		rest = strings.TrimSpace(rest)
		switch cmd {
		case "/quit", "/q":
			return
		case "/help":
			fmt.Println(watchHelp)
		case "/dialogs":
			printDialogs(sess.State())
		case "/users":
			sess.Dispatch(privchat.NewChatPopupToggled{Visible: true})
			sess.Dispatch(privchat.DirectoryLoadRequested{})
		case "/filter":
			sess.Dispatch(privchat.DialogsFiltered{Query: rest})
		case "/select":
			if rest == "" {
				fmt.Println("usage: /select <id>")
				continue
			}
			dlg, ok := findDialog(sess.State(), rest)
			if !ok {
				fmt.Printf("No dialog or user %q. Try /users first.\n", rest)
				continue
			}
			sess.Dispatch(privchat.DialogSelected{Dialog: dlg})
			fmt.Printf("Selected %s\n", dlg.Title)
		case "/upload":
			if rest == "" {
				fmt.Println("usage: /upload <file>")
				continue
			}
			info, err := os.Stat(rest)
			if err != nil {
				fmt.Printf("Cannot read %s: %v\n", rest, err)
				continue
			}
			sess.Dispatch(privchat.FileUploadIntent{Files: []privchat.FileHandle{{
				Name: filepath.Base(rest),
				Size: info.Size(),
				Path: rest,
			}}})
		default:
			fmt.Printf("Unknown command %s\n", cmd)
		}
	}
}

// printUpdates renders session changes on the terminal: connection
// transitions, newly arrived messages, and directory results.
func printUpdates() func(privchat.State) {
	var lastConn privchat.ConnState
	var lastQuery string
	var wasLoading bool
	var seen int

	return func(st privchat.State) {
		if st.Conn != lastConn {
			lastConn = st.Conn
			fmt.Printf("* connection %s\n", st.Conn)
		}

		if wasLoading && !st.Dialogs.Loading() {
			printCandidates(st)
		}
		wasLoading = st.Dialogs.Loading()

		if q := st.Dialogs.Query(); q != lastQuery {
			lastQuery = q
			printFiltered(st)
		}

		msgs := st.Messages.All()
		if seen > len(msgs) {
			seen = len(msgs)
		}
		for _, m := range msgs[seen:] {
			if m.Out || m.Read {
				continue
			}
			name := m.SenderName
			if name == "" {
				name = m.Sender
			}
			fmt.Printf("[%s] %s: %s\n", m.SentAt.Local().Format("15:04"), name, renderBody(m))
		}
		seen = len(msgs)
	}
}

func renderBody(m privchat.Message) string {
	if m.File != nil {
		return fmt.Sprintf("(file) %s, %d bytes", m.File.Name, m.File.Size)
	}
	return m.Text
}

func printDialogs(st privchat.State) {
	dialogs := st.Dialogs.Filtered()
	if len(dialogs) == 0 {
		fmt.Println("No dialogs yet. Use /users to start one.")
		return
	}
	for _, d := range dialogs {
		marker := " "
		if d.ID == st.SelectedID {
			marker = ">"
		}
		unread := ""
		if d.UnreadCount > 0 {
			unread = fmt.Sprintf(" (%d unread)", d.UnreadCount)
		}
		fmt.Printf("%s %s [%s]%s\n", marker, d.Title, d.ID, unread)
	}
}

func printFiltered(st privchat.State) {
	if st.Dialogs.Query() == "" {
		fmt.Println("Filter cleared.")
		return
	}
	fmt.Printf("Dialogs matching %q:\n", st.Dialogs.Query())
	printDialogs(st)
}

func printCandidates(st privchat.State) {
	candidates := st.Dialogs.Candidates()
	if len(candidates) == 0 {
		fmt.Println("No users found.")
		return
	}
	fmt.Println("Users:")
	for _, c := range candidates {
		fmt.Printf("  %s [%s]\n", c.Title, c.ID)
	}
}

// findDialog resolves user input to a dialog: exact id match in the
// confirmed list first, then id or title match among candidates.
func findDialog(st privchat.State, arg string) (privchat.Dialog, bool) {
	if d, ok := st.Dialogs.Get(arg); ok {
		return d, true
	}
	for _, d := range append(st.Dialogs.Dialogs(), st.Dialogs.Candidates()...) {
		if d.ID == arg || strings.EqualFold(d.Title, arg) {
			return d, true
		}
	}
	return privchat.Dialog{}, false
}
