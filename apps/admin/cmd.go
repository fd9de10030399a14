package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/roster/core"
	"github.com/trezcool/roster/core/roster"
)

var (
	nowFunc = time.Now // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf   *core.Config
	svc    *roster.Service
	mailer core.EmailService
	out    io.Writer
}

type command struct {
	usage string
	run   func(cli *commandLine, ctx context.Context, args []string) error
}

// commands returns the subcommands by name.
func commands() map[string]command {
	return map[string]command{
		"add-student":    {"-name NAME -age AGE -email EMAIL -id ID", (*commandLine).addStudent},
		"add-instructor": {"-name NAME -age AGE -email EMAIL -id ID", (*commandLine).addInstructor},
		"add-course":     {"-id ID -name NAME", (*commandLine).addCourse},
		"update":         {"-kind KIND -id ID [-name NAME] [-age AGE] [-email EMAIL]", (*commandLine).update},
		"register":       {"-student ID -course ID", (*commandLine).register},
		"unregister":     {"-student ID -course ID", (*commandLine).unregister},
		"assign":         {"-instructor ID -course ID", (*commandLine).assign},
		"unassign":       {"-course ID", (*commandLine).unassign},
		"delete":         {"-kind KIND -id ID", (*commandLine).delete},
		"list":           {"[-kind KIND]", (*commandLine).list},
		"search":         {"-q QUERY", (*commandLine).search},
		"export":         {"[-format csv|json|yaml] [-out FILE] [-email ADDRESSES]", (*commandLine).export},
		"import":         {"-file FILE [-format json|yaml]", (*commandLine).importDocument},
		"backup":         {"[-to DIR|s3://BUCKET/PREFIX]", (*commandLine).backup},
	}
}

func (cli *commandLine) printUsage() {
	cmds := commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(cli.out, "Usage: admin [-config FILE] COMMAND [OPTIONS]")
	fmt.Fprintln(cli.out, "Commands:")
	for _, name := range names {
		fmt.Fprintf(cli.out, "  %-15s %s\n", name, cmds[name].usage)
	}
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	cmd, ok := commands()[args[1]]
	if !ok {
		cli.printUsage()
		return errHelp
	}
	return cmd.run(cli, ctx, args[2:])
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	fs.Usage = func() {
		fmt.Fprintf(cli.out, "Usage: admin %s %s\n", name, commands()[name].usage)
		fs.PrintDefaults()
	}
	return fs
}

// parse parses args and prints the usage when a required flag is blank.
func parse(fs *flag.FlagSet, args []string, required ...*string) error {
	if err := fs.Parse(args); err != nil {
		return errHelp
	}
	for _, r := range required {
		if strings.TrimSpace(*r) == "" {
			fs.Usage()
			return errHelp
		}
	}
	return nil
}

// hintError is a lookup miss with a "did you mean" suggestion.
type hintError struct {
	err  error
	hint string
}

func (e *hintError) Error() string { return fmt.Sprintf("%v (did you mean %q?)", e.err, e.hint) }
func (e *hintError) Unwrap() error { return e.err }

// ref is an id given on the command line.
type ref struct {
	kind roster.Kind
	id   string
}

var notFoundErrs = map[roster.Kind]error{
	roster.KindStudent:    roster.ErrStudentNotFound,
	roster.KindInstructor: roster.ErrInstructorNotFound,
	roster.KindCourse:     roster.ErrCourseNotFound,
}

// lookupErr attaches the closest existing id to a lookup miss on one of refs.
func (cli *commandLine) lookupErr(ctx context.Context, err error, refs ...ref) error {
	for _, r := range refs {
		if !errors.Is(err, notFoundErrs[r.kind]) {
			continue
		}
		if id, ok := cli.svc.ClosestID(ctx, r.kind, r.id); ok {
			return &hintError{err: err, hint: id}
		}
		break
	}
	return err
}
