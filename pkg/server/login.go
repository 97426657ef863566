package server

import "strings"

// ParseConnect parses a login-screen command into (command, user, password).
// Handles: "connect name password", "create name password", "connect guest".
func ParseConnect(msg string) (command, user, password string) {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return "", "", ""
	}

	parts := strings.SplitN(msg, " ", 2)
	command = strings.ToLower(parts[0])
	if len(parts) < 2 {
		return command, "", ""
	}

	rest := strings.TrimSpace(parts[1])
	if rest == "" {
		return command, "", ""
	}

	// Quoted names, for the clients that send them.
	if rest[0] == '"' {
		end := strings.Index(rest[1:], "\"")
		if end >= 0 {
			user = rest[1 : end+1]
			password = strings.TrimSpace(rest[end+2:])
			return
		}
	}

	parts = strings.SplitN(rest, " ", 2)
	user = parts[0]
	if len(parts) > 1 {
		password = strings.TrimSpace(parts[1])
	}
	return
}
