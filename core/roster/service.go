package roster

import (
	"context"
	"strings"
	"sync"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/roster/core"
)

type (
	// Repository stores the three collections and their relations, keyed by business id.
	// Implementations keep insertion order, derive both sides of every relation
	// from a single stored fact, and cascade deletes.
	Repository interface {
		// Create* return Err*Exists when the id is taken.
		CreateStudent(ctx context.Context, st Student) (Student, error)
		CreateInstructor(ctx context.Context, ins Instructor) (Instructor, error)
		CreateCourse(ctx context.Context, c Course) (Course, error)

		QueryStudents(ctx context.Context) ([]Student, error)
		QueryInstructors(ctx context.Context) ([]Instructor, error)
		QueryCourses(ctx context.Context) ([]Course, error)

		// Get* return Err*NotFound on a miss.
		GetStudent(ctx context.Context, id string) (Student, error)
		GetInstructor(ctx context.Context, id string) (Instructor, error)
		GetCourse(ctx context.Context, id string) (Course, error)

		// Update* save the attributes; ids and relations are untouched.
		UpdateStudent(ctx context.Context, st Student) (Student, error)
		UpdateInstructor(ctx context.Context, ins Instructor) (Instructor, error)
		UpdateCourse(ctx context.Context, c Course) (Course, error)

		// Enroll returns ErrAlreadyRegistered for an existing pair, Unenroll ErrNotRegistered for a missing one.
		Enroll(ctx context.Context, studentID, courseID string) error
		Unenroll(ctx context.Context, studentID, courseID string) error
		// SetCourseInstructor replaces the course instructor; an empty instructorID clears it.
		SetCourseInstructor(ctx context.Context, courseID, instructorID string) error

		DeleteStudent(ctx context.Context, id string) error
		DeleteInstructor(ctx context.Context, id string) error
		DeleteCourse(ctx context.Context, id string) error

		// Restore atomically replaces the whole state. Course.Instructor and
		// Course.Students must reference records of the same call.
		Restore(ctx context.Context, students []Student, instructors []Instructor, courses []Course) error
	}

	// Persister stores and restores the whole roster as a Document.
	Persister interface {
		SaveDocument(ctx context.Context, doc Document) error
		// LoadDocument returns ErrNoDocument when nothing was saved yet.
		LoadDocument(ctx context.Context) (Document, error)
	}

	// Service is the Roster Store: validation and relationship rules over a Repository.
	Service struct {
		repo     Repository
		logger   core.Logger
		autoSave Persister

		// held from the repository write to the end of its autosave
		writeMu sync.Mutex
	}

	Option func(*Service)
)

func WithLogger(logger core.Logger) Option {
	return func(svc *Service) { svc.logger = logger }
}

// WithAutoSave saves the document to p after every successful mutation.
func WithAutoSave(p Persister) Option {
	return func(svc *Service) { svc.autoSave = p }
}

func NewService(repo Repository, opts ...Option) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
	).CheckAndPanic()

	svc := &Service{repo: repo, logger: core.NopLogger}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// lockWrites serializes mutations while autosave is on, so that every saved
// document holds all the writes acknowledged before it.
func (svc *Service) lockWrites() (unlock func()) {
	if svc.autoSave == nil {
		return func() {}
	}
	svc.writeMu.Lock()
	return svc.writeMu.Unlock
}

// afterWrite runs once a mutation is stored. An autosave failure is returned
// to the caller but does not undo the mutation.
func (svc *Service) afterWrite(ctx context.Context) error {
	if svc.autoSave == nil {
		return nil
	}
	doc, err := svc.Document(ctx)
	if err != nil {
		return err
	}
	if err := svc.autoSave.SaveDocument(ctx, doc); err != nil {
		svc.logger.Error("autosave failed", "error", err)
		return errors.Wrap(err, "autosaving roster")
	}
	return nil
}

// existsErr maps Err*Exists to a field level validation error.
func existsErr(err error) error {
	for _, target := range []error{ErrStudentExists, ErrInstructorExists, ErrCourseExists} {
		if errors.Is(err, target) {
			return core.NewValidationError(target, core.FieldError{Field: "id", Error: target.Error()})
		}
	}
	return err
}

// Create

// AddStudent validates the form and appends a new Student.
// Nothing is stored when validation fails.
func (svc *Service) AddStudent(ctx context.Context, np NewPerson) (Student, error) {
	defer svc.lockWrites()()
	person, err := np.Validate()
	if err != nil {
		return Student{}, err
	}
	st, err := svc.repo.CreateStudent(ctx, Student{Person: person, ID: np.ID})
	if err != nil {
		return Student{}, existsErr(err)
	}
	svc.logger.Info("student added", "id", st.ID, "name", st.Name)
	return st, svc.afterWrite(ctx)
}

// AddInstructor validates the form and appends a new Instructor.
func (svc *Service) AddInstructor(ctx context.Context, np NewPerson) (Instructor, error) {
	defer svc.lockWrites()()
	person, err := np.Validate()
	if err != nil {
		return Instructor{}, err
	}
	ins, err := svc.repo.CreateInstructor(ctx, Instructor{Person: person, ID: np.ID})
	if err != nil {
		return Instructor{}, existsErr(err)
	}
	svc.logger.Info("instructor added", "id", ins.ID, "name", ins.Name)
	return ins, svc.afterWrite(ctx)
}

// AddCourse validates the form and appends a new Course with no instructor and no students.
func (svc *Service) AddCourse(ctx context.Context, nc NewCourse) (Course, error) {
	defer svc.lockWrites()()
	if err := nc.Validate(); err != nil {
		return Course{}, err
	}
	c, err := svc.repo.CreateCourse(ctx, Course{ID: nc.ID, Name: nc.Name})
	if err != nil {
		return Course{}, existsErr(err)
	}
	svc.logger.Info("course added", "id", c.ID, "name", c.Name)
	return c, svc.afterWrite(ctx)
}

// Read

func (svc *Service) Students(ctx context.Context) ([]Student, error) {
	return svc.repo.QueryStudents(ctx)
}

func (svc *Service) Instructors(ctx context.Context) ([]Instructor, error) {
	return svc.repo.QueryInstructors(ctx)
}

func (svc *Service) Courses(ctx context.Context) ([]Course, error) {
	return svc.repo.QueryCourses(ctx)
}

func (svc *Service) Student(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, core.CleanString(id))
}

func (svc *Service) Instructor(ctx context.Context, id string) (Instructor, error) {
	return svc.repo.GetInstructor(ctx, core.CleanString(id))
}

func (svc *Service) Course(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourse(ctx, core.CleanString(id))
}

func (svc *Service) Counts(ctx context.Context) (Counts, error) {
	var counts Counts
	students, err := svc.repo.QueryStudents(ctx)
	if err != nil {
		return counts, err
	}
	instructors, err := svc.repo.QueryInstructors(ctx)
	if err != nil {
		return counts, err
	}
	courses, err := svc.repo.QueryCourses(ctx)
	if err != nil {
		return counts, err
	}
	counts.Students, counts.Instructors, counts.Courses = len(students), len(instructors), len(courses)
	return counts, nil
}

// Search does a case-insensitive substring match on the name and id of every record.
// An empty query matches everything.
func (svc *Service) Search(ctx context.Context, query string) (SearchResult, error) {
	q := core.CleanString(query, true /* lower */)
	match := func(name, id string) bool {
		return q == "" || containsFold(name, q) || containsFold(id, q)
	}

	res := SearchResult{Students: []Student{}, Instructors: []Instructor{}, Courses: []Course{}}
	students, err := svc.repo.QueryStudents(ctx)
	if err != nil {
		return res, err
	}
	for _, st := range students {
		if match(st.Name, st.ID) {
			res.Students = append(res.Students, st)
		}
	}
	instructors, err := svc.repo.QueryInstructors(ctx)
	if err != nil {
		return res, err
	}
	for _, ins := range instructors {
		if match(ins.Name, ins.ID) {
			res.Instructors = append(res.Instructors, ins)
		}
	}
	courses, err := svc.repo.QueryCourses(ctx)
	if err != nil {
		return res, err
	}
	for _, c := range courses {
		if match(c.Name, c.ID) {
			res.Courses = append(res.Courses, c)
		}
	}
	return res, nil
}

// ClosestID returns the id of kind most similar to id, for "did you mean" hints.
func (svc *Service) ClosestID(ctx context.Context, kind Kind, id string) (string, bool) {
	var (
		ids []string
		err error
	)
	switch kind {
	case KindStudent:
		var students []Student
		students, err = svc.repo.QueryStudents(ctx)
		for _, st := range students {
			ids = append(ids, st.ID)
		}
	case KindInstructor:
		var instructors []Instructor
		instructors, err = svc.repo.QueryInstructors(ctx)
		for _, ins := range instructors {
			ids = append(ids, ins.ID)
		}
	case KindCourse:
		var courses []Course
		courses, err = svc.repo.QueryCourses(ctx)
		for _, c := range courses {
			ids = append(ids, c.ID)
		}
	}
	if err != nil {
		svc.logger.Debug("no id suggestion", "kind", string(kind), "error", err)
		return "", false
	}
	return closest(core.CleanString(id), ids)
}

const minSimilarity = .6

func closest(target string, candidates []string) (string, bool) {
	if target == "" {
		return "", false
	}
	var (
		best      string
		bestRatio float64
	)
	lt := strings.Split(strings.ToLower(target), "")
	for _, c := range candidates {
		ratio := difflib.NewMatcher(lt, strings.Split(strings.ToLower(c), "")).Ratio()
		if ratio > bestRatio {
			best, bestRatio = c, ratio
		}
	}
	return best, bestRatio >= minSimilarity
}

// Update

func (svc *Service) UpdateStudent(ctx context.Context, id string, up UpdatePerson) (Student, error) {
	defer svc.lockWrites()()
	st, err := svc.repo.GetStudent(ctx, core.CleanString(id))
	if err != nil {
		return Student{}, err
	}
	np := up.merge(st.ID, st.Person)
	person, err := np.Validate()
	if err != nil {
		return Student{}, err
	}
	st.Person = person
	if st, err = svc.repo.UpdateStudent(ctx, st); err != nil {
		return Student{}, err
	}
	svc.logger.Info("student updated", "id", st.ID)
	return st, svc.afterWrite(ctx)
}

func (svc *Service) UpdateInstructor(ctx context.Context, id string, up UpdatePerson) (Instructor, error) {
	defer svc.lockWrites()()
	ins, err := svc.repo.GetInstructor(ctx, core.CleanString(id))
	if err != nil {
		return Instructor{}, err
	}
	np := up.merge(ins.ID, ins.Person)
	person, err := np.Validate()
	if err != nil {
		return Instructor{}, err
	}
	ins.Person = person
	if ins, err = svc.repo.UpdateInstructor(ctx, ins); err != nil {
		return Instructor{}, err
	}
	svc.logger.Info("instructor updated", "id", ins.ID)
	return ins, svc.afterWrite(ctx)
}

func (svc *Service) UpdateCourse(ctx context.Context, id string, uc UpdateCourse) (Course, error) {
	defer svc.lockWrites()()
	c, err := svc.repo.GetCourse(ctx, core.CleanString(id))
	if err != nil {
		return Course{}, err
	}
	nc := NewCourse{ID: c.ID, Name: uc.Name}
	if core.CleanString(nc.Name) == "" {
		nc.Name = c.Name
	}
	if err := nc.Validate(); err != nil {
		return Course{}, err
	}
	c.Name = nc.Name
	if c, err = svc.repo.UpdateCourse(ctx, c); err != nil {
		return Course{}, err
	}
	svc.logger.Info("course updated", "id", c.ID)
	return c, svc.afterWrite(ctx)
}

// Relations

// RegisterStudentForCourse adds the student to the course roster, which also
// adds the course to the student's registered list.
// A second registration of the same pair is refused.
func (svc *Service) RegisterStudentForCourse(ctx context.Context, studentID, courseID string) error {
	defer svc.lockWrites()()
	studentID, courseID = core.CleanString(studentID), core.CleanString(courseID)
	if _, err := svc.repo.GetStudent(ctx, studentID); err != nil {
		return err
	}
	if _, err := svc.repo.GetCourse(ctx, courseID); err != nil {
		return err
	}
	if err := svc.repo.Enroll(ctx, studentID, courseID); err != nil {
		if errors.Is(err, ErrAlreadyRegistered) {
			return core.NewValidationError(err, core.FieldError{Field: "course_id", Error: err.Error()})
		}
		return err
	}
	svc.logger.Info("student registered", "student", studentID, "course", courseID)
	return svc.afterWrite(ctx)
}

// UnregisterStudentFromCourse removes the student from the course roster.
func (svc *Service) UnregisterStudentFromCourse(ctx context.Context, studentID, courseID string) error {
	defer svc.lockWrites()()
	studentID, courseID = core.CleanString(studentID), core.CleanString(courseID)
	if _, err := svc.repo.GetStudent(ctx, studentID); err != nil {
		return err
	}
	if _, err := svc.repo.GetCourse(ctx, courseID); err != nil {
		return err
	}
	if err := svc.repo.Unenroll(ctx, studentID, courseID); err != nil {
		if errors.Is(err, ErrNotRegistered) {
			return core.NewValidationError(err, core.FieldError{Field: "course_id", Error: err.Error()})
		}
		return err
	}
	svc.logger.Info("student unregistered", "student", studentID, "course", courseID)
	return svc.afterWrite(ctx)
}

// AssignInstructorToCourse makes the instructor the course's only instructor.
// The course leaves the previous instructor's list; assigning the current
// instructor again changes nothing.
func (svc *Service) AssignInstructorToCourse(ctx context.Context, instructorID, courseID string) error {
	defer svc.lockWrites()()
	instructorID, courseID = core.CleanString(instructorID), core.CleanString(courseID)
	if _, err := svc.repo.GetInstructor(ctx, instructorID); err != nil {
		return err
	}
	c, err := svc.repo.GetCourse(ctx, courseID)
	if err != nil {
		return err
	}
	if c.Instructor == instructorID {
		return nil
	}
	if err := svc.repo.SetCourseInstructor(ctx, courseID, instructorID); err != nil {
		return err
	}
	svc.logger.Info("instructor assigned", "instructor", instructorID, "course", courseID, "previous", c.Instructor)
	return svc.afterWrite(ctx)
}

// UnassignInstructor leaves the course without an instructor.
func (svc *Service) UnassignInstructor(ctx context.Context, courseID string) error {
	defer svc.lockWrites()()
	c, err := svc.repo.GetCourse(ctx, core.CleanString(courseID))
	if err != nil {
		return err
	}
	if c.Instructor == "" {
		return nil
	}
	if err := svc.repo.SetCourseInstructor(ctx, c.ID, ""); err != nil {
		return err
	}
	svc.logger.Info("instructor unassigned", "instructor", c.Instructor, "course", c.ID)
	return svc.afterWrite(ctx)
}

// Delete

// Delete removes the record and every relation that references it.
func (svc *Service) Delete(ctx context.Context, kind Kind, id string) error {
	defer svc.lockWrites()()
	id = core.CleanString(id)
	var err error
	switch kind {
	case KindStudent:
		err = svc.repo.DeleteStudent(ctx, id)
	case KindInstructor:
		err = svc.repo.DeleteInstructor(ctx, id)
	case KindCourse:
		err = svc.repo.DeleteCourse(ctx, id)
	default:
		return ErrUnknownKind
	}
	if err != nil {
		return err
	}
	svc.logger.Info("record deleted", "kind", string(kind), "id", id)
	return svc.afterWrite(ctx)
}
