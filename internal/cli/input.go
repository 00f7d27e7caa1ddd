package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Test seams for the terminal.
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
)

// ReadToken reads an API token from in. When in is a terminal the token is
// read without echo after printing a prompt to w; otherwise the first line
// is used.
func ReadToken(in io.Reader, w io.Writer) (string, error) {
	var line string
	if f, ok := in.(*os.File); ok && isTerminal(int(f.Fd())) {
		if _, err := fmt.Fprint(w, "Enter API token: "); err != nil {
			return "", err
		}
		b, err := readPassword(int(f.Fd()))
		fmt.Fprintln(w)
		if err != nil {
			return "", err
		}
		line = string(b)
	} else {
		var err error
		line, err = bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
	}

	token := strings.TrimSpace(line)
	if token == "" {
		return "", errors.New("empty token")
	}
	return token, nil
}
