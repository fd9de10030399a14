package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/trezcool/roster/core/roster"
)

func (cli *commandLine) update(ctx context.Context, args []string) error {
	fs := cli.newFlagSet("update")
	kindName := fs.String("kind", "", "student, instructor or course")
	id := fs.String("id", "", "id of the record to update")
	name := fs.String("name", "", "new name")
	age := fs.String("age", "", "new age (people only)")
	email := fs.String("email", "", "new email (people only)")
	if err := parse(fs, args, kindName, id); err != nil {
		return err
	}
	kind, err := roster.ParseKind(*kindName)
	if err != nil {
		return err
	}

	up := roster.UpdatePerson{Name: *name, Age: roster.Age(*age), Email: *email}
	switch kind {
	case roster.KindStudent:
		_, err = cli.svc.UpdateStudent(ctx, *id, up)
	case roster.KindInstructor:
		_, err = cli.svc.UpdateInstructor(ctx, *id, up)
	case roster.KindCourse:
		_, err = cli.svc.UpdateCourse(ctx, *id, roster.UpdateCourse{Name: *name})
	}
	if err != nil {
		return cli.lookupErr(ctx, err, ref{kind, *id})
	}
	fmt.Fprintf(cli.out, "%s %s updated\n", kind, *id)
	return nil
}

func (cli *commandLine) delete(ctx context.Context, args []string) error {
	fs := cli.newFlagSet("delete")
	kindName := fs.String("kind", "", "student, instructor or course")
	id := fs.String("id", "", "id of the record to delete")
	if err := parse(fs, args, kindName, id); err != nil {
		return err
	}
	kind, err := roster.ParseKind(*kindName)
	if err != nil {
		return err
	}
	if err = cli.svc.Delete(ctx, kind, *id); err != nil {
		return cli.lookupErr(ctx, err, ref{kind, *id})
	}
	fmt.Fprintf(cli.out, "%s %s deleted\n", kind, *id)
	return nil
}

func (cli *commandLine) list(ctx context.Context, args []string) error {
	fs := cli.newFlagSet("list")
	kindName := fs.String("kind", "", "only list this kind")
	if err := parse(fs, args); err != nil {
		return err
	}
	kinds := roster.Kinds
	if *kindName != "" {
		kind, err := roster.ParseKind(*kindName)
		if err != nil {
			return err
		}
		kinds = []roster.Kind{kind}
	}

	// Search with an empty query lists everything.
	res, err := cli.svc.Search(ctx, "")
	if err != nil {
		return err
	}
	cli.printResult(res, kinds)
	return nil
}

func (cli *commandLine) search(ctx context.Context, args []string) error {
	fs := cli.newFlagSet("search")
	query := fs.String("q", "", "case-insensitive text matched against names and ids")
	if err := parse(fs, args, query); err != nil {
		return err
	}
	res, err := cli.svc.Search(ctx, *query)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%d match(es) for %q\n", res.Len(), *query)
	cli.printResult(res, roster.Kinds)
	return nil
}

func (cli *commandLine) printResult(res roster.SearchResult, kinds []roster.Kind) {
	tw := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
	for _, kind := range kinds {
		switch kind {
		case roster.KindStudent:
			if len(res.Students) == 0 {
				continue
			}
			fmt.Fprintln(tw, "STUDENT ID\tNAME\tAGE\tEMAIL\tCOURSES")
			for _, st := range res.Students {
				printPerson(tw, st.ID, st.Person, st.Courses)
			}
		case roster.KindInstructor:
			if len(res.Instructors) == 0 {
				continue
			}
			fmt.Fprintln(tw, "INSTRUCTOR ID\tNAME\tAGE\tEMAIL\tCOURSES")
			for _, ins := range res.Instructors {
				printPerson(tw, ins.ID, ins.Person, ins.Courses)
			}
		case roster.KindCourse:
			if len(res.Courses) == 0 {
				continue
			}
			fmt.Fprintln(tw, "COURSE ID\tNAME\tINSTRUCTOR\tSTUDENTS")
			for _, c := range res.Courses {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.ID, c.Name, orDash(c.Instructor), orDash(strings.Join(c.Students, ",")))
			}
		}
		fmt.Fprintln(tw)
	}
	_ = tw.Flush()
}

func printPerson(w io.Writer, id string, p roster.Person, courses []string) {
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", id, p.Name, strconv.Itoa(p.Age), p.Email, orDash(strings.Join(courses, ",")))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
