package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	pendingKind() string
	Login(ctx context.Context) error
	Add(ctx context.Context, names []string) error
	Import(ctx context.Context, path string) error
	Remove(ctx context.Context, name string) error
	List(ctx context.Context) error
	Free(ctx context.Context) error
	Stats(ctx context.Context) error
	History(ctx context.Context, name string, limit string) error
	Status(ctx context.Context) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Check(ctx context.Context, name string) error
	Authorize(ctx context.Context) error
	Reset(ctx context.Context) error
	Settings(ctx context.Context) error
	Set(ctx context.Context, key, value string) error
	Export(ctx context.Context, path string) error
	Clear(ctx context.Context) error
	Submit(ctx context.Context, text string) error
	Password(ctx context.Context) error
}

const helpText = `Available commands:
  add <name>...          add handles to the watch list
  import <file>          add handles from a text file (spaces, commas or newlines)
  remove <name>          remove a handle
  list                   list watched handles with their status
  free                   list handles currently free
  clear                  remove every handle
  stats                  counts per status
  history <name> [n]     last status changes of a handle
  check <name>           check one handle now
  status                 monitoring and authorization state
  start | stop           control the monitoring loop
  auth                   start directory authorization
  reset                  drop the directory session and authorize again
  input <text>           answer a pending credential prompt
  password               answer a pending 2FA prompt without echo
  settings               show tunables
  set <key> <value>      change a tunable
  export [file]          export handles as CSV
  login                  log in again
  exit | quit            leave the program`

// runREPL reads commands line by line and dispatches them to a.
//
// A line whose first word is not a command is sent as the answer to a pending
// credential prompt when one is outstanding. The loop exits on scanner EOF or
// "exit"/"quit". Command errors are reported by the handlers themselves.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("hw%s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help", "?":
			printlnFn(helpText)

		case "login":
			_ = a.Login(ctx)

		case "add":
			if len(args) == 0 {
				printlnFn("Usage: add <name>...")
				continue
			}
			_ = a.Add(ctx, args)

		case "import":
			if len(args) != 1 {
				printlnFn("Usage: import <file>")
				continue
			}
			_ = a.Import(ctx, args[0])

		case "remove", "rm":
			if len(args) != 1 {
				printlnFn("Usage: remove <name>")
				continue
			}
			_ = a.Remove(ctx, args[0])

		case "l", "list":
			_ = a.List(ctx)

		case "free":
			_ = a.Free(ctx)

		case "clear":
			_ = a.Clear(ctx)

		case "stats":
			_ = a.Stats(ctx)

		case "history":
			switch len(args) {
			case 1:
				_ = a.History(ctx, args[0], "")
			case 2:
				_ = a.History(ctx, args[0], args[1])
			default:
				printlnFn("Usage: history <name> [limit]")
			}

		case "check":
			if len(args) != 1 {
				printlnFn("Usage: check <name>")
				continue
			}
			_ = a.Check(ctx, args[0])

		case "status":
			_ = a.Status(ctx)

		case "start":
			_ = a.Start(ctx)

		case "stop":
			_ = a.Stop(ctx)

		case "auth":
			_ = a.Authorize(ctx)

		case "reset":
			_ = a.Reset(ctx)

		case "input":
			if len(args) == 0 {
				printlnFn("Usage: input <text>")
				continue
			}
			_ = a.Submit(ctx, strings.Join(args, " "))

		case "password":
			_ = a.Password(ctx)

		case "settings":
			_ = a.Settings(ctx)

		case "set":
			if len(args) != 2 {
				printlnFn("Usage: set <key> <value>")
				continue
			}
			_ = a.Set(ctx, args[0], args[1])

		case "export":
			path := ""
			if len(args) > 0 {
				path = args[0]
			}
			_ = a.Export(ctx, path)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			if a.pendingKind() != "" {
				_ = a.Submit(ctx, line)
				continue
			}
			printlnFn("Unknown command:", cmd)
		}
	}
}
