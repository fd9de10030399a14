package testutil

import (
	"context"
	"testing"

	"github.com/trezcool/roster/core/roster"
	inmemdb "github.com/trezcool/roster/storage/database/inmem"
)

// NewService returns a Roster Store backed by a fresh in-memory repository.
func NewService(t *testing.T, opts ...roster.Option) (*roster.Service, roster.Repository) {
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("NewService() failed: %v", err)
	}
	repo := inmemdb.NewRosterRepository(db)
	return roster.NewService(repo, opts...), repo
}

func CreateStudent(t *testing.T, svc *roster.Service, name string, age int, email, id string) roster.Student {
	st, err := svc.AddStudent(context.Background(), roster.NewPerson{Name: name, Age: roster.AgeOf(age), Email: email, ID: id})
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return st
}

func CreateInstructor(t *testing.T, svc *roster.Service, name string, age int, email, id string) roster.Instructor {
	ins, err := svc.AddInstructor(context.Background(), roster.NewPerson{Name: name, Age: roster.AgeOf(age), Email: email, ID: id})
	if err != nil {
		t.Fatalf("CreateInstructor() failed: %v", err)
	}
	return ins
}

func CreateCourse(t *testing.T, svc *roster.Service, id, name string) roster.Course {
	c, err := svc.AddCourse(context.Background(), roster.NewCourse{ID: id, Name: name})
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return c
}

// Register enrolls the student and fails the test on error.
func Register(t *testing.T, svc *roster.Service, studentID, courseID string) {
	if err := svc.RegisterStudentForCourse(context.Background(), studentID, courseID); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
}

// Assign sets the course instructor and fails the test on error.
func Assign(t *testing.T, svc *roster.Service, instructorID, courseID string) {
	if err := svc.AssignInstructorToCourse(context.Background(), instructorID, courseID); err != nil {
		t.Fatalf("Assign() failed: %v", err)
	}
}

// MemPersister keeps the last saved document in memory.
type MemPersister struct {
	Doc   *roster.Document
	Saves int
	Err   error
}

func (p *MemPersister) SaveDocument(_ context.Context, doc roster.Document) error {
	if p.Err != nil {
		return p.Err
	}
	p.Doc = &doc
	p.Saves++
	return nil
}

func (p *MemPersister) LoadDocument(context.Context) (roster.Document, error) {
	if p.Doc == nil {
		return roster.Document{}, roster.ErrNoDocument
	}
	return *p.Doc, nil
}
