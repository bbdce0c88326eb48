package secrets

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// PromptPassword asks for a password on out and reads it from in. On a
// terminal the input is not echoed, piped input is read up to the first
// newline.
func PromptPassword(in *os.File, out io.Writer) (string, error) {
	fmt.Fprint(out, "password: ")
	if fd := int(in.Fd()); term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("could not read password: %w", err)
		}
		return checkPassword(string(b))
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("could not read password: %w", err)
	}
	return checkPassword(strings.TrimRight(line, "\r\n"))
}

func checkPassword(pw string) (string, error) {
	if pw == "" {
		return "", errors.New("password is empty")
	}
	return pw, nil
}
