package roster

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/roster/core"
)

type (
	// PersonRecord is a student or an instructor in a Document.
	PersonRecord struct {
		Name  string `json:"name" yaml:"name"`
		Age   int    `json:"age" yaml:"age"`
		Email string `json:"email" yaml:"email"`
		ID    string `json:"id" yaml:"id"`
	}

	// CourseRecord is a course in a Document. Instructor and Students hold ids;
	// names are accepted on load for documents that linked records by name.
	CourseRecord struct {
		ID         string   `json:"id" yaml:"id"`
		Name       string   `json:"name" yaml:"name"`
		Instructor *string  `json:"instructor" yaml:"instructor"`
		Students   []string `json:"students" yaml:"students"`
	}

	// Document is the serialized form of the whole roster.
	Document struct {
		Students    []PersonRecord `json:"students" yaml:"students"`
		Instructors []PersonRecord `json:"instructors" yaml:"instructors"`
		Courses     []CourseRecord `json:"courses" yaml:"courses"`
	}
)

// Document snapshots the roster.
func (svc *Service) Document(ctx context.Context) (Document, error) {
	students, err := svc.repo.QueryStudents(ctx)
	if err != nil {
		return Document{}, err
	}
	instructors, err := svc.repo.QueryInstructors(ctx)
	if err != nil {
		return Document{}, err
	}
	courses, err := svc.repo.QueryCourses(ctx)
	if err != nil {
		return Document{}, err
	}

	doc := Document{
		Students:    make([]PersonRecord, 0, len(students)),
		Instructors: make([]PersonRecord, 0, len(instructors)),
		Courses:     make([]CourseRecord, 0, len(courses)),
	}
	for _, st := range students {
		doc.Students = append(doc.Students, PersonRecord{Name: st.Name, Age: st.Age, Email: st.Email, ID: st.ID})
	}
	for _, ins := range instructors {
		doc.Instructors = append(doc.Instructors, PersonRecord{Name: ins.Name, Age: ins.Age, Email: ins.Email, ID: ins.ID})
	}
	for _, c := range courses {
		rec := CourseRecord{ID: c.ID, Name: c.Name, Students: append([]string{}, c.Students...)}
		if c.Instructor != "" {
			insID := c.Instructor
			rec.Instructor = &insID
		}
		doc.Courses = append(doc.Courses, rec)
	}
	return doc, nil
}

// refIndex resolves a document reference: by id first, then by exact name.
type refIndex struct {
	ids   map[string]bool
	names map[string]string // name -> id; first record wins
}

func newRefIndex(n int) refIndex {
	return refIndex{ids: make(map[string]bool, n), names: make(map[string]string, n)}
}

func (idx refIndex) add(id, name string) {
	idx.ids[id] = true
	if _, ok := idx.names[name]; !ok {
		idx.names[name] = id
	}
}

func (idx refIndex) resolve(ref string) (string, bool) {
	if idx.ids[ref] {
		return ref, true
	}
	id, ok := idx.names[ref]
	return id, ok
}

func personFromRecord(rec PersonRecord) (Person, string, error) {
	np := NewPerson{Name: rec.Name, Age: AgeOf(rec.Age), Email: rec.Email, ID: rec.ID}
	person, err := np.Validate()
	return person, np.ID, err
}

// Restore validates the whole document, then replaces the roster with it.
// Nothing changes when the document is invalid. Relations that point to
// unknown records are dropped and logged.
func (svc *Service) Restore(ctx context.Context, doc Document) error {
	defer svc.lockWrites()()

	students := make([]Student, 0, len(doc.Students))
	studentIdx := newRefIndex(len(doc.Students))
	for i, rec := range doc.Students {
		person, id, err := personFromRecord(rec)
		if err != nil {
			return errors.Wrapf(err, "students[%d]", i)
		}
		if studentIdx.ids[id] {
			return errors.Wrapf(existsErr(ErrStudentExists), "students[%d] %s", i, id)
		}
		studentIdx.add(id, person.Name)
		students = append(students, Student{Person: person, ID: id})
	}

	instructors := make([]Instructor, 0, len(doc.Instructors))
	instructorIdx := newRefIndex(len(doc.Instructors))
	for i, rec := range doc.Instructors {
		person, id, err := personFromRecord(rec)
		if err != nil {
			return errors.Wrapf(err, "instructors[%d]", i)
		}
		if instructorIdx.ids[id] {
			return errors.Wrapf(existsErr(ErrInstructorExists), "instructors[%d] %s", i, id)
		}
		instructorIdx.add(id, person.Name)
		instructors = append(instructors, Instructor{Person: person, ID: id})
	}

	courses := make([]Course, 0, len(doc.Courses))
	courseIDs := make(map[string]bool, len(doc.Courses))
	for i, rec := range doc.Courses {
		nc := NewCourse{ID: rec.ID, Name: rec.Name}
		if err := nc.Validate(); err != nil {
			return errors.Wrapf(err, "courses[%d]", i)
		}
		if courseIDs[nc.ID] {
			return errors.Wrapf(existsErr(ErrCourseExists), "courses[%d] %s", i, nc.ID)
		}
		courseIDs[nc.ID] = true

		c := Course{ID: nc.ID, Name: nc.Name, Students: []string{}}
		if rec.Instructor != nil && core.CleanString(*rec.Instructor) != "" {
			ref := core.CleanString(*rec.Instructor)
			if id, ok := instructorIdx.resolve(ref); ok {
				c.Instructor = id
			} else {
				svc.logger.Warn("dropping unknown instructor reference", "course", c.ID, "instructor", ref)
			}
		}
		seen := make(map[string]bool, len(rec.Students))
		for _, ref := range rec.Students {
			ref = core.CleanString(ref)
			id, ok := studentIdx.resolve(ref)
			if !ok {
				svc.logger.Warn("dropping unknown student reference", "course", c.ID, "student", ref)
				continue
			}
			if seen[id] {
				continue
			}
			seen[id] = true
			c.Students = append(c.Students, id)
		}
		courses = append(courses, c)
	}

	if err := svc.repo.Restore(ctx, students, instructors, courses); err != nil {
		return errors.Wrap(err, "restoring roster")
	}
	svc.logger.Info("roster restored",
		"students", len(students), "instructors", len(instructors), "courses", len(courses))
	return svc.afterWrite(ctx)
}

// SaveTo writes the whole roster to p.
func (svc *Service) SaveTo(ctx context.Context, p Persister) error {
	doc, err := svc.Document(ctx)
	if err != nil {
		return err
	}
	if err := p.SaveDocument(ctx, doc); err != nil {
		return errors.Wrap(err, "saving roster")
	}
	return nil
}

// LoadFrom replaces the roster with the document saved in p.
// When p holds no document the roster is left untouched.
func (svc *Service) LoadFrom(ctx context.Context, p Persister) error {
	doc, err := p.LoadDocument(ctx)
	if errors.Is(err, ErrNoDocument) {
		svc.logger.Debug("no saved roster, keeping current state")
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "loading roster")
	}
	return svc.Restore(ctx, doc)
}
