package passwd

import (
	"fmt"
	"os"
	"os/signal"

	"golang.org/x/term"
)

// entirely based on MIT code from Joe Linoff
// https://gist.github.com/jlinoff/e8e26b4ffa38d379c7f1891fd174a6d0
// edited for style

// GetPassword prompts on stdout and reads a password from the terminal on
// stdin without echoing it.  The terminal is restored if the user hits ^C.
func GetPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("stdin is not a terminal")
	}
	state, err := term.GetState(fd)
	if err != nil {
		return "", err
	}

	c := make(chan os.Signal, 1)
	cancel := make(chan struct{})
	signal.Notify(c, os.Interrupt)
	go func() {
		select {
		case <-c:
			_ = term.Restore(fd, state)
			os.Exit(1)
		case <-cancel:
		}
	}()

	fmt.Println(prompt)
	p, err := term.ReadPassword(fd)
	fmt.Println("")

	signal.Stop(c)
	close(cancel)

	if err != nil {
		return "", err
	}
	return string(p), nil
}
