package main

import (
	"fmt"
	"os"
	"strings"
)

// uiMode is the --ui flag value. It implements pflag.Value so bad values
// are rejected while flags are parsed.
type uiMode string

const (
	uiModeAuto uiMode = "auto"
	uiModeOn   uiMode = "on"
	uiModeOff  uiMode = "off"
)

func (m *uiMode) String() string {
	if *m == "" {
		return string(uiModeAuto)
	}
	return string(*m)
}

func (m *uiMode) Set(value string) error {
	parsed, err := readUIMode(value)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func (*uiMode) Type() string { return "auto|on|off" }

func readUIMode(value string) (uiMode, error) {
	switch mode := uiMode(strings.TrimSpace(strings.ToLower(value))); mode {
	case "":
		return uiModeAuto, nil
	case uiModeAuto, uiModeOn, uiModeOff:
		return mode, nil
	}
	return "", fmt.Errorf("invalid ui mode %q (expected auto|on|off)", value)
}

// useTUI decides whether to draw the progress view. Auto needs stdout and
// stderr on a terminal, since the view is drawn on stderr.
func (m uiMode) useTUI() bool {
	switch m {
	case uiModeOn:
		return true
	case uiModeOff:
		return false
	}
	return isTerminal(os.Stdout) && isTerminal(os.Stderr)
}
