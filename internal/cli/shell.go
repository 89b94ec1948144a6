package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the shell needs to operate.
// The real App type satisfies this interface; tests can provide a stub.
type execIface interface {
	isLoggedIn() bool
	status() string
	Signup(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	Profile(ctx context.Context) error
	Upload(ctx context.Context, paths []string) error
	List(ctx context.Context) error
	RemoveAsset(ctx context.Context, arg string) error
	AssetURL(ctx context.Context, arg string) error
}

// RunShell starts the interactive loop. It reads a line, parses the first
// token as the command, and dispatches to a. Unknown commands are reported
// back to the user. The loop exits on EOF or "exit"/"quit".
//
// The reader must be the same buffered reader the command handlers prompt
// on, otherwise buffered input is lost between loop and handlers.
//
// Command handlers print their own errors; the loop ignores returned errors
// to stay resilient and focused on I/O.
func RunShell(ctx context.Context, a execIface, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("sv> %s > ", a.status()))
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: whoami, profile, upload <file...>, (l)ist, rm <n>, url <n>, logout, exit")
			} else {
				printlnFn("Available commands: signup, login, exit")
			}

		case "signup":
			_ = a.Signup(ctx)

		case "login":
			_ = a.Login(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "whoami":
			_ = a.WhoAmI(ctx)

		case "profile":
			_ = a.Profile(ctx)

		case "upload":
			_ = a.Upload(ctx, args)

		case "l", "list":
			_ = a.List(ctx)

		case "rm":
			if len(args) != 1 {
				printlnFn("Usage: rm <n>")
				continue
			}
			_ = a.RemoveAsset(ctx, args[0])

		case "url":
			if len(args) != 1 {
				printlnFn("Usage: url <n>")
				continue
			}
			_ = a.AssetURL(ctx, args[0])

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
