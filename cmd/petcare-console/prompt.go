package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// promptIn is read for answers; tests swap it.
var promptIn io.Reader = os.Stdin

// readSecret prints label and reads a line without echo when stdin is a
// terminal.
func readSecret(out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	if f, ok := promptIn.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return readLine()
}

// readText prints label and reads one echoed line.
func readText(out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	return readLine()
}

var stdinReader *bufio.Reader

func readLine() (string, error) {
	if stdinReader == nil {
		stdinReader = bufio.NewReader(promptIn)
	}
	line, err := stdinReader.ReadString('\n')
	if err != nil && !(err == io.EOF && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
