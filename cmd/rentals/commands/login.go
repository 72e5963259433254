package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fivetwenty-io/rentals-client/internal/constants"
	"github.com/fivetwenty-io/rentals-client/pkg/rentals"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// prompter reads answers from the command's input, hiding secrets when the
// input is a terminal.
type prompter struct {
	cmd    *cobra.Command
	reader *bufio.Reader
}

func newPrompter(cmd *cobra.Command) *prompter {
	return &prompter{cmd: cmd, reader: bufio.NewReader(cmd.InOrStdin())}
}

func (p *prompter) ask(label string) (string, error) {
	_, _ = fmt.Fprint(p.cmd.ErrOrStderr(), label+": ")

	line, err := p.reader.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", fmt.Errorf("reading %s: %w", strings.ToLower(label), err)
	}

	return strings.TrimSpace(line), nil
}

func (p *prompter) secret(label string) (string, error) {
	file, ok := p.cmd.InOrStdin().(*os.File)
	if !ok || !term.IsTerminal(int(file.Fd())) {
		return p.ask(label)
	}

	_, _ = fmt.Fprint(p.cmd.ErrOrStderr(), label+": ")

	bytePassword, err := term.ReadPassword(int(file.Fd()))

	_, _ = fmt.Fprintln(p.cmd.ErrOrStderr())

	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	return string(bytePassword), nil
}

// askIfEmpty prompts for value when the flag was not given.
func (p *prompter) askIfEmpty(value *string, label string, hidden bool) error {
	if *value != "" {
		return nil
	}

	var err error

	if hidden {
		*value, err = p.secret(label)
	} else {
		*value, err = p.ask(label)
	}

	return err
}

func renderSession(cmd *cobra.Command, session *rentals.Session, verb string) error {
	return render(cmd, session.User, func(w io.Writer, user rentals.User) error {
		_, _ = fmt.Fprintf(w, "%s as %s (%s)\n", verb, valueOrNA(user.Name), user.Email)

		return nil
	})
}

// NewLoginCommand creates the login command.
func NewLoginCommand() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the marketplace",
		Long:  "Authenticate with email and password. The session is stored locally and refreshed automatically.",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrompter(cmd)

			err := p.askIfEmpty(&email, "Email", false)
			if err != nil {
				return err
			}

			err = p.askIfEmpty(&password, "Password", true)
			if err != nil {
				return err
			}

			if password == "" {
				return constants.ErrEmptyPassword
			}

			return withSession(cmd.Context(), func(client rentals.Client) error {
				session, err := client.Auth().Login(cmd.Context(), &rentals.LoginRequest{Email: email, Password: password})
				if err != nil {
					return fmt.Errorf("login failed: %w", err)
				}

				return renderSession(cmd, session, "Signed in")
			})
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password (prompted when omitted)")

	return cmd
}

// NewRegisterCommand creates the register command.
func NewRegisterCommand() *cobra.Command {
	var request rentals.RegisterRequest

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Long:  "Create a marketplace account and sign in with it",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrompter(cmd)

			for _, field := range []struct {
				value  *string
				label  string
				hidden bool
			}{
				{&request.Name, "Name", false},
				{&request.Email, "Email", false},
				{&request.Password, "Password", true},
			} {
				err := p.askIfEmpty(field.value, field.label, field.hidden)
				if err != nil {
					return err
				}
			}

			if request.Password == "" {
				return constants.ErrEmptyPassword
			}

			return withSession(cmd.Context(), func(client rentals.Client) error {
				session, err := client.Auth().Register(cmd.Context(), &request)
				if err != nil {
					return fmt.Errorf("registration failed: %w", err)
				}

				return renderSession(cmd, session, "Registered and signed in")
			})
		},
	}

	cmd.Flags().StringVar(&request.Name, "name", "", "display name")
	cmd.Flags().StringVarP(&request.Email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&request.Password, "password", "p", "", "account password (prompted when omitted)")
	cmd.Flags().StringVar(&request.Phone, "phone", "", "phone number")

	return cmd
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out",
		Long:  "End the session on the server and remove the stored credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(client rentals.Client) error {
				if !client.Auth().IsAuthenticated() {
					printMessage(cmd, "Not logged in")

					return nil
				}

				err := client.Auth().Logout(cmd.Context())
				if err != nil {
					return fmt.Errorf("logout failed: %w", err)
				}

				printMessage(cmd, "Logged out")

				return nil
			})
		},
	}
}
