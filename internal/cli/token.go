// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// promptToken reads a credential without echoing it to the terminal. Falls
// back to plain stdin when not attached to a terminal (pipes, tests).
func promptToken(prompt string) (string, error) {
	fmt.Print(prompt)
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		var token string
		if _, err := fmt.Fscanln(os.Stdin, &token); err != nil {
			return "", err
		}
		return strings.TrimSpace(token), nil
	}

	raw, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}
