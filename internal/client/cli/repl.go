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
	isLoggedIn() bool
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Open(ctx context.Context, args []string) error
	List(ctx context.Context, args []string) error
	Add(ctx context.Context, args []string) error
	Set(ctx context.Context, args []string) error
	Remove(ctx context.Context, args []string) error
	Reload(ctx context.Context, args []string) error
	Scope(ctx context.Context, args []string) error
	Profiles(ctx context.Context, args []string) error
	Notes(ctx context.Context) error
	Attach(ctx context.Context, args []string) error
}

const helpText = `Available commands:
  open <domain>                       load a domain ("all" for every domain)
  list [domain]                       show entries
  add <domain> <title...> [k=v ...]   create an entry
  set <domain> <id> k=v ...           update title, description or metadata
  rm <domain> <id...>                 delete entries
  reload <domain>                     refetch a domain from the server
  scope [name]                        show or switch the active scope
  profiles [add <id> [name] | use <id>]
  notes                               edit free-text notes
  attach <domain> <id> <file>         upload a file to an entry
  login | logout | exit`

// runREPL reads commands from scanner and dispatches them to a until EOF or
// "exit". Handler errors are printed and the loop goes on.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("ld %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			printlnFn(helpText)
			if !a.isLoggedIn() {
				printlnFn("Not signed in: changes are rolled back until you login.")
			}
		case "login":
			err = a.Login(ctx)
		case "logout":
			err = a.Logout(ctx)
		case "open":
			err = a.Open(ctx, args)
		case "l", "list":
			err = a.List(ctx, args)
		case "add":
			err = a.Add(ctx, args)
		case "set":
			err = a.Set(ctx, args)
		case "rm", "delete":
			err = a.Remove(ctx, args)
		case "reload":
			err = a.Reload(ctx, args)
		case "scope":
			err = a.Scope(ctx, args)
		case "profiles":
			err = a.Profiles(ctx, args)
		case "notes":
			err = a.Notes(ctx)
		case "attach":
			err = a.Attach(ctx, args)
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("error:", err)
		}
	}
}
