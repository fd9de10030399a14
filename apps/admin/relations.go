package main

import (
	"context"
	"fmt"

	"github.com/trezcool/roster/core/roster"
)

func (cli *commandLine) register(ctx context.Context, args []string) error {
	fs := cli.newFlagSet("register")
	studentID := fs.String("student", "", "student id")
	courseID := fs.String("course", "", "course id")
	if err := parse(fs, args, studentID, courseID); err != nil {
		return err
	}
	if err := cli.svc.RegisterStudentForCourse(ctx, *studentID, *courseID); err != nil {
		return cli.lookupErr(ctx, err, ref{roster.KindStudent, *studentID}, ref{roster.KindCourse, *courseID})
	}
	fmt.Fprintf(cli.out, "student %s registered for %s\n", *studentID, *courseID)
	return nil
}

func (cli *commandLine) unregister(ctx context.Context, args []string) error {
	fs := cli.newFlagSet("unregister")
	studentID := fs.String("student", "", "student id")
	courseID := fs.String("course", "", "course id")
	if err := parse(fs, args, studentID, courseID); err != nil {
		return err
	}
	if err := cli.svc.UnregisterStudentFromCourse(ctx, *studentID, *courseID); err != nil {
		return cli.lookupErr(ctx, err, ref{roster.KindStudent, *studentID}, ref{roster.KindCourse, *courseID})
	}
	fmt.Fprintf(cli.out, "student %s unregistered from %s\n", *studentID, *courseID)
	return nil
}

func (cli *commandLine) assign(ctx context.Context, args []string) error {
	fs := cli.newFlagSet("assign")
	instructorID := fs.String("instructor", "", "instructor id")
	courseID := fs.String("course", "", "course id")
	if err := parse(fs, args, instructorID, courseID); err != nil {
		return err
	}
	if err := cli.svc.AssignInstructorToCourse(ctx, *instructorID, *courseID); err != nil {
		return cli.lookupErr(ctx, err, ref{roster.KindInstructor, *instructorID}, ref{roster.KindCourse, *courseID})
	}
	fmt.Fprintf(cli.out, "instructor %s assigned to %s\n", *instructorID, *courseID)
	return nil
}

func (cli *commandLine) unassign(ctx context.Context, args []string) error {
	fs := cli.newFlagSet("unassign")
	courseID := fs.String("course", "", "course id")
	if err := parse(fs, args, courseID); err != nil {
		return err
	}
	if err := cli.svc.UnassignInstructor(ctx, *courseID); err != nil {
		return cli.lookupErr(ctx, err, ref{roster.KindCourse, *courseID})
	}
	fmt.Fprintf(cli.out, "course %s has no instructor\n", *courseID)
	return nil
}
