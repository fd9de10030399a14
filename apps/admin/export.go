package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/roster/core"
	"github.com/trezcool/roster/core/roster"
	"github.com/trezcool/roster/storage/backup"
)

const defaultBackupDir = "backups"

func (cli *commandLine) export(ctx context.Context, args []string) error {
	fs := cli.newFlagSet("export")
	formatName := fs.String("format", "csv", "csv, json or yaml")
	outPath := fs.String("out", "-", `output file, "-" for stdout`)
	emailTo := fs.String("email", "", "comma separated recipients; the export is sent as an attachment")
	if err := parse(fs, args); err != nil {
		return err
	}
	format, err := roster.ParseFormat(*formatName)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err = cli.svc.Export(ctx, format, &buf); err != nil {
		return err
	}

	if *emailTo != "" {
		return cli.mailExport(ctx, *emailTo, format, buf.Bytes())
	}
	if *outPath == "-" || *outPath == "" {
		_, err = cli.out.Write(buf.Bytes())
		return err
	}
	if err = os.WriteFile(*outPath, buf.Bytes(), 0o644); err != nil {
		return errors.Wrap(err, "writing export")
	}
	fmt.Fprintf(cli.out, "export written to %s\n", *outPath)
	return nil
}

func (cli *commandLine) mailExport(ctx context.Context, to string, format roster.Format, data []byte) error {
	recipients, err := core.ParseAddresses(to)
	if err != nil {
		return err
	}
	counts, err := cli.svc.Counts(ctx)
	if err != nil {
		return err
	}

	msg := &core.EmailMessage{
		To:      recipients,
		Subject: cli.conf.AppName + " roster export",
		TextContent: fmt.Sprintf(
			"Attached is the roster export (%d students, %d instructors, %d courses).",
			counts.Students, counts.Instructors, counts.Courses,
		),
	}
	if err = msg.Attach(bytes.NewReader(data), format.Filename(), format.ContentType()); err != nil {
		return err
	}
	if err = cli.mailer.Send(ctx, msg); err != nil {
		return errors.Wrap(err, "sending export")
	}
	fmt.Fprintf(cli.out, "export sent to %s\n", to)
	return nil
}

func (cli *commandLine) importDocument(ctx context.Context, args []string) error {
	fs := cli.newFlagSet("import")
	path := fs.String("file", "", "json or yaml roster document")
	formatName := fs.String("format", "", "json or yaml; guessed from the file extension when blank")
	if err := parse(fs, args, path); err != nil {
		return err
	}

	name := *formatName
	if name == "" {
		name = strings.TrimPrefix(filepath.Ext(*path), ".")
	}
	format, err := roster.ParseFormat(name)
	if err != nil {
		return err
	}
	if format == roster.FormatCSV {
		return roster.ErrNotImportable
	}

	f, err := os.Open(*path)
	if err != nil {
		return errors.Wrap(err, "opening document")
	}
	defer f.Close()

	if err = cli.svc.Import(ctx, format, f); err != nil {
		return err
	}
	counts, err := cli.svc.Counts(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "imported %d students, %d instructors, %d courses\n", counts.Students, counts.Instructors, counts.Courses)
	return nil
}

func (cli *commandLine) backup(ctx context.Context, args []string) error {
	fs := cli.newFlagSet("backup")
	target := fs.String("to", defaultBackupDir, "directory or s3://bucket/prefix")
	if err := parse(fs, args, target); err != nil {
		return err
	}
	dst, err := backup.Open(ctx, *target, cli.conf.Backup)
	if err != nil {
		return err
	}
	loc, err := backup.Run(ctx, cli.svc, dst, nowFunc())
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "backup written to %s\n", loc)
	return nil
}
