package main

import (
	"context"
	"fmt"

	"github.com/trezcool/roster/core/roster"
)

func (cli *commandLine) personFlags(name string, args []string) (roster.NewPerson, error) {
	fs := cli.newFlagSet(name)
	pName := fs.String("name", "", "full name")
	pAge := fs.String("age", "", "age in years")
	pEmail := fs.String("email", "", "email address")
	pID := fs.String("id", "", "unique id")
	if err := parse(fs, args); err != nil {
		return roster.NewPerson{}, err
	}
	return roster.NewPerson{Name: *pName, Age: roster.Age(*pAge), Email: *pEmail, ID: *pID}, nil
}

func (cli *commandLine) addStudent(ctx context.Context, args []string) error {
	np, err := cli.personFlags("add-student", args)
	if err != nil {
		return err
	}
	st, err := cli.svc.AddStudent(ctx, np)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "student %s (%s) added\n", st.ID, st.Name)
	return nil
}

func (cli *commandLine) addInstructor(ctx context.Context, args []string) error {
	np, err := cli.personFlags("add-instructor", args)
	if err != nil {
		return err
	}
	ins, err := cli.svc.AddInstructor(ctx, np)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "instructor %s (%s) added\n", ins.ID, ins.Name)
	return nil
}

func (cli *commandLine) addCourse(ctx context.Context, args []string) error {
	fs := cli.newFlagSet("add-course")
	id := fs.String("id", "", "unique course id")
	name := fs.String("name", "", "course name")
	if err := parse(fs, args); err != nil {
		return err
	}
	c, err := cli.svc.AddCourse(ctx, roster.NewCourse{ID: *id, Name: *name})
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "course %s (%s) added\n", c.ID, c.Name)
	return nil
}
