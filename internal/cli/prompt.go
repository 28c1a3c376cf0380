package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// promptForValue prompts the user on stderr and reads one line from in
func promptForValue(in io.Reader, name string) (string, error) {
	fmt.Fprintf(os.Stderr, "Enter value for '%s': ", name)
	reader := bufio.NewReader(in)
	value, err := reader.ReadString('\n')
	if err != nil && !(err == io.EOF && value != "") {
		return "", err
	}
	return strings.TrimSpace(value), nil
}

// isInteractive checks if stdin is a terminal (not piped)
func isInteractive() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// isPiped checks if stdout is redirected
func isPiped(f *os.File) bool {
	stat, err := f.Stat()
	if err != nil {
		return true
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}
