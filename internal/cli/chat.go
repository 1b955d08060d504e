package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/boshilin123/chatbot-circuit-diagram/internal/domain"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/usecase"
)

const localClientIP = "127.0.0.1"

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Search the catalog through an interactive dialogue",
	Long: `Start an interactive session. Type a request to search, then answer with
an option number to narrow the results.

Commands:
  <number>  choose an option from the last answer
  back      undo the last narrowing step
  next      show the next page
  new       start a new session
  quit      leave`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

var (
	promptColor = color.New(color.FgCyan, color.Bold)
	botColor    = color.New(color.FgGreen)
	optionColor = color.New(color.FgYellow)
	errColor    = color.New(color.FgRed)
)

func runChat(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd.Context(), GetConfig(), GetRootDir(), GetLogger(), nil)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Loaded %d documents. Type 'quit' to leave.\n\n", a.indexed.Documents)

	d := &dialogue{chat: a.chat, out: out, session: uuid.NewString()}
	return d.loop(cmd, cmd.InOrStdin())
}

// dialogue remembers the last options shown so numeric input can be mapped
// back to an option value.
type dialogue struct {
	chat    *usecase.ChatUseCase
	out     io.Writer
	session string
	options []domain.Option
}

func (d *dialogue) loop(cmd *cobra.Command, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		promptColor.Fprint(d.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(d.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var (
			resp domain.ChatResponse
			err  error
		)
		switch strings.ToLower(line) {
		case "quit", "exit":
			return nil
		case "new":
			d.session = uuid.NewString()
			d.options = nil
			botColor.Fprintln(d.out, "Started a new session.")
			continue
		case "back":
			resp, err = d.selectValue(cmd, usecase.BackValue)
		case "next":
			resp, err = d.selectValue(cmd, usecase.NextPageValue)
		default:
			if n, convErr := strconv.Atoi(line); convErr == nil && d.options != nil {
				value, ok := d.optionValue(n)
				if !ok {
					errColor.Fprintf(d.out, "No option %d.\n", n)
					continue
				}
				resp, err = d.selectValue(cmd, value)
			} else {
				resp, err = d.chat.Chat(cmd.Context(), usecase.ChatRequest{
					SessionID: d.session,
					Message:   line,
					ClientIP:  localClientIP,
				})
			}
		}

		if err != nil {
			d.printError(err)
			continue
		}
		d.print(resp)
	}
}

func (d *dialogue) selectValue(cmd *cobra.Command, value string) (domain.ChatResponse, error) {
	return d.chat.Select(cmd.Context(), usecase.SelectRequest{
		SessionID:   d.session,
		OptionValue: value,
		ClientIP:    localClientIP,
	})
}

func (d *dialogue) optionValue(id int) (string, bool) {
	for _, o := range d.options {
		if o.ID == id {
			return o.Value, true
		}
	}
	return "", false
}

func (d *dialogue) print(resp domain.ChatResponse) {
	botColor.Fprintln(d.out, resp.Content)
	switch resp.Kind {
	case domain.KindOptions:
		d.options = resp.Options
		for _, o := range resp.Options {
			optionColor.Fprintf(d.out, "  %d. %s\n", o.ID, o.DisplayText)
		}
	case domain.KindResult:
		d.options = nil
		if resp.Document != nil {
			fmt.Fprintf(d.out, "  %s\n", resp.Document.HierarchyPath)
		}
	}
	fmt.Fprintln(d.out)
}

func (d *dialogue) printError(err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		d.session = uuid.NewString()
		d.options = nil
		errColor.Fprintln(d.out, "Session expired, please start a new search.")
	case domain.IsThrottled(err):
		errColor.Fprintln(d.out, "Too many requests, please wait a moment.")
	case domain.IsInputError(err):
		errColor.Fprintln(d.out, err.Error())
	default:
		errColor.Fprintf(d.out, "Error: %v\n", err)
	}
}
