package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/roster/apps/bootstrap"
	"github.com/trezcool/roster/core"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (yaml, toml or json)")
	flag.Parse()

	conf, err := core.LoadConfig(*configPath)
	errAndDie(err)

	ctx := context.Background()
	// logs and console e-mails go to stderr; stdout is for command output
	app, err := bootstrap.New(ctx, conf, os.Stderr)
	errAndDie(err)

	// start CLI
	cli := commandLine{
		conf:   conf,
		svc:    app.Roster,
		mailer: app.Mailer,
		out:    os.Stdout,
	}
	err = cli.run(ctx, append([]string{os.Args[0]}, flag.Args()...))
	if cerr := app.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "error: %s\n", describe(err))
		}
		os.Exit(1)
	}
}

// describe renders validation errors as "field: message" lines.
func describe(err error) string {
	var fields map[string]string

	var vErrs validator.ValidationErrors
	var vErr *core.ValidationError
	switch {
	case errors.As(err, &vErrs):
		fields = core.TranslateErrors(vErrs)
	case errors.As(err, &vErr) && len(vErr.Fields) > 0:
		fields = make(map[string]string, len(vErr.Fields))
		for _, f := range vErr.Fields {
			fields[f.Field] = f.Error
		}
	default:
		return err.Error()
	}

	lines := make([]string, 0, len(fields))
	for field, msg := range fields {
		lines = append(lines, "  "+field+": "+msg)
	}
	sort.Strings(lines)
	return "invalid input\n" + strings.Join(lines, "\n")
}

func errAndDie(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}
