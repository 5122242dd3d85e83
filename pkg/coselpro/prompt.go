package coselpro

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// PasswordReader reads a password without echoing it.
type PasswordReader func() (string, error)

// Prompt asks a user for Credentials, writing prompts to Out and reading
// answers from In.
type Prompt struct {
	In  io.Reader
	Out io.Writer

	// DefaultURI and DefaultLogin are offered in the prompts and used when the
	// answer is empty.
	DefaultURI   string
	DefaultLogin string

	// ReadPassword reads the password. When nil the password is read as a
	// plain line from In.
	ReadPassword PasswordReader
}

// NewConsolePrompt returns a Prompt on stdin and stderr. The password is read
// without echo when stdin is a terminal.
func NewConsolePrompt() Prompt {
	p := Prompt{In: os.Stdin, Out: os.Stderr}
	if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
		p.ReadPassword = func() (string, error) {
			pw, err := term.ReadPassword(fd)
			fmt.Fprintln(os.Stderr)
			return string(pw), err
		}
	}
	return p
}

// CredentialsFromConsole prompts on the terminal for the gateway URI, login and
// password. defaultURI is offered for the first prompt.
func CredentialsFromConsole(defaultURI string) (Credentials, error) {
	p := NewConsolePrompt()
	p.DefaultURI = defaultURI
	return p.Credentials()
}

// PromptCredentials asks for URI, login and password on in and out. When
// readPassword is nil the password is read as a plain line from in.
func PromptCredentials(in io.Reader, out io.Writer, defaultURI string, readPassword PasswordReader) (Credentials, error) {
	return Prompt{In: in, Out: out, DefaultURI: defaultURI, ReadPassword: readPassword}.Credentials()
}

// Credentials asks for URI, login and password in that order.
//
// A failed read fails with ErrURIEntry, ErrLoginEntry or ErrPasswordEntry
// depending on the prompt, carrying the I/O error.
func (p Prompt) Credentials() (Credentials, error) {
	r := bufio.NewReader(p.In)

	fmt.Fprintln(p.Out, "Issue CoSelPro connection credentials:")

	uri, err := p.ask(r, "uri", p.DefaultURI)
	if err != nil {
		return Credentials{}, &CredentialsError{Kind: ErrURIEntry, Err: err}
	}

	login, err := p.ask(r, "login", p.DefaultLogin)
	if err != nil {
		return Credentials{}, &CredentialsError{Kind: ErrLoginEntry, Err: err}
	}
	if login == "" {
		return Credentials{}, &CredentialsError{Kind: ErrLoginEntry, Err: errors.New("empty login")}
	}

	fmt.Fprint(p.Out, "password: ")
	var password string
	if p.ReadPassword != nil {
		password, err = p.ReadPassword()
	} else {
		password, err = readLine(r)
	}
	if err != nil {
		return Credentials{}, &CredentialsError{Kind: ErrPasswordEntry, Err: err}
	}

	return NewCredentials(uri, login, strings.TrimSpace(password))
}

func (p Prompt) ask(r *bufio.Reader, label, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(p.Out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(p.Out, "%s: ", label)
	}

	answer, err := readLine(r)
	if err != nil {
		return "", err
	}
	if answer == "" {
		return def, nil
	}
	return answer, nil
}

// readLine returns the next line without its terminator. A final line without
// a newline is accepted; EOF before any input is an error.
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
