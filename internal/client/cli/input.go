package cli

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/dmitrijs2005/redactvault/internal/cryptox"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

var ErrPasswordMismatch = errors.New("passwords do not match")

// GetPassword prints prompt to w and reads a password from the terminal
// without echo. The caller should wipe the result when done.
func GetPassword(w io.Writer, prompt string) ([]byte, error) {
	if _, err := fmt.Fprint(w, prompt); err != nil {
		return nil, err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	return pw, nil
}

// GetNewPassword asks twice and fails if the entries differ.
func GetNewPassword(w io.Writer) ([]byte, error) {
	pw, err := GetPassword(w, "Enter document password: ")
	if err != nil {
		return nil, err
	}
	confirm, err := GetPassword(w, "Repeat password: ")
	if err != nil {
		cryptox.Wipe(pw)
		return nil, err
	}
	defer cryptox.Wipe(confirm)

	if !bytes.Equal(pw, confirm) {
		cryptox.Wipe(pw)
		return nil, ErrPasswordMismatch
	}
	return pw, nil
}

// ReadPasswordLine reads the first line of r, without its line ending.
func ReadPasswordLine(r io.Reader) ([]byte, error) {
	line, err := bufio.NewReader(r).ReadBytes('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	line = bytes.TrimRight(line, "\r\n")
	if len(line) == 0 {
		return nil, errors.New("empty password on standard input")
	}
	return line, nil
}
