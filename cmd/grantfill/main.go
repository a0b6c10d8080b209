// Command grantfill runs the form filling engines against local files and
// live pages without the MCP server: list PDF fields, fill a PDF, fill a web
// form, or dump the text chunks of a source document.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
)

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

var commands = []command{
	{"fields", "List the AcroForm fields of a PDF", runFields},
	{"fill-pdf", "Fill a PDF form from a questions file", runFillPDF},
	{"fill-web", "Fill a web form from a questions file", runFillWeb},
	{"read", "Print the text chunks of a PDF, DOCX or HTML document", runRead},
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{stdout: os.Stdout, stderr: os.Stderr}
	if err := a.dispatch(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app carries the output streams shared by every command
type app struct {
	stdout io.Writer
	stderr io.Writer
}

func (a *app) dispatch(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		a.printUsage()
		return nil
	}
	for _, c := range commands {
		if c.name == args[0] {
			return c.run(ctx, a, args[1:])
		}
	}
	a.printUsage()
	return fmt.Errorf("unknown command %q", args[0])
}

func (a *app) printUsage() {
	fmt.Fprintln(a.stdout, "grantfill - fill grant application forms from the command line")
	fmt.Fprintln(a.stdout)
	fmt.Fprintln(a.stdout, "USAGE:")
	fmt.Fprintln(a.stdout, "  grantfill <command> [OPTIONS] <target>")
	fmt.Fprintln(a.stdout)
	fmt.Fprintln(a.stdout, "COMMANDS:")
	for _, c := range commands {
		fmt.Fprintf(a.stdout, "  %-10s %s\n", c.name, c.summary)
	}
	fmt.Fprintln(a.stdout)
	fmt.Fprintln(a.stdout, "EXAMPLES:")
	fmt.Fprintln(a.stdout, "  grantfill fields application.pdf")
	fmt.Fprintln(a.stdout, "  grantfill fill-pdf --questions answers.json --out filled.pdf application.pdf")
	fmt.Fprintln(a.stdout, "  grantfill fill-web --questions answers.json --surface browser --headless=false https://portal.example.org/apply")
	fmt.Fprintln(a.stdout, "  grantfill fill-web --questions answers.json --surface static --dump filled.html file:///tmp/form.html")
	fmt.Fprintln(a.stdout)
	fmt.Fprintln(a.stdout, "Run 'grantfill <command> --help' for the options of a command.")
}
