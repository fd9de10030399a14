package roster_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/roster/core"
	"github.com/trezcool/roster/core/roster"
	"github.com/trezcool/roster/tests"
)

func studentIDs(students []roster.Student) []string {
	ids := make([]string, 0, len(students))
	for _, st := range students {
		ids = append(ids, st.ID)
	}
	return ids
}

func TestService_AddStudent(t *testing.T) {
	ctx := context.Background()
	svc, _ := testutil.NewService(t)
	testutil.CreateStudent(t, svc, "Alice", 20, "alice@x.com", "S1")

	tests := []struct {
		name      string
		form      roster.NewPerson
		wantErr   bool
		wantField string
	}{
		{name: "valid", form: roster.NewPerson{Name: "Bob", Age: "21", Email: "bob@x.com", ID: "S2"}},
		{name: "trimmed", form: roster.NewPerson{Name: "  Carl ", Age: " 0 ", Email: " c@x.io ", ID: " S3 "}},
		{name: "non-numeric age", form: roster.NewPerson{Name: "Dan", Age: "abc", Email: "d@x.com", ID: "S4"}, wantErr: true, wantField: "age"},
		{name: "negative age", form: roster.NewPerson{Name: "Dan", Age: "-5", Email: "d@x.com", ID: "S4"}, wantErr: true, wantField: "age"},
		{name: "fractional age", form: roster.NewPerson{Name: "Dan", Age: "2.5", Email: "d@x.com", ID: "S4"}, wantErr: true, wantField: "age"},
		{name: "email without at", form: roster.NewPerson{Name: "Dan", Age: "20", Email: "dan.x.com", ID: "S4"}, wantErr: true, wantField: "email"},
		{name: "email without dot", form: roster.NewPerson{Name: "Dan", Age: "20", Email: "dan@x", ID: "S4"}, wantErr: true, wantField: "email"},
		{name: "blank name", form: roster.NewPerson{Name: "  ", Age: "20", Email: "d@x.com", ID: "S4"}, wantErr: true, wantField: "name"},
		{name: "blank id", form: roster.NewPerson{Name: "Dan", Age: "20", Email: "d@x.com", ID: ""}, wantErr: true, wantField: "id"},
		{name: "duplicate id", form: roster.NewPerson{Name: "Eve", Age: "30", Email: "e@x.com", ID: "S1"}, wantErr: true, wantField: "id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before, err := svc.Students(ctx)
			require.NoError(t, err)

			st, err := svc.AddStudent(ctx, tt.form)
			after, _ := svc.Students(ctx)
			if tt.wantErr {
				require.Error(t, err)
				assert.Len(t, after, len(before), "failed add must not store anything")
				assert.Contains(t, fieldsOf(err), tt.wantField)
				return
			}
			require.NoError(t, err)
			assert.Len(t, after, len(before)+1)
			got, err := svc.Student(ctx, st.ID)
			require.NoError(t, err)
			assert.Equal(t, st, got)

			var listed int
			for _, s := range after {
				if s.ID == st.ID {
					listed++
				}
			}
			assert.Equal(t, 1, listed)
		})
	}
}

// fieldsOf returns the names of the fields an error complains about.
func fieldsOf(err error) []string {
	var flds []string
	var vErrs validator.ValidationErrors
	if errors.As(err, &vErrs) {
		for fld := range core.TranslateErrors(vErrs) {
			flds = append(flds, fld)
		}
	}
	var vErr *core.ValidationError
	if errors.As(err, &vErr) {
		for _, fld := range vErr.Fields {
			flds = append(flds, fld.Field)
		}
	}
	return flds
}

func TestService_AddInstructorAndCourse(t *testing.T) {
	ctx := context.Background()
	svc, _ := testutil.NewService(t)

	ins := testutil.CreateInstructor(t, svc, "Bob", 40, "bob@x.com", "I1")
	assert.Equal(t, roster.Instructor{Person: roster.Person{Name: "Bob", Age: 40, Email: "bob@x.com"}, ID: "I1", Courses: []string{}}, ins)

	_, err := svc.AddInstructor(ctx, roster.NewPerson{Name: "Bob 2", Age: "41", Email: "b2@x.com", ID: "I1"})
	assert.True(t, core.IsValidationError(err))
	assert.True(t, errors.Is(err, roster.ErrInstructorExists))

	c := testutil.CreateCourse(t, svc, "C1", "Algorithms")
	assert.Equal(t, roster.Course{ID: "C1", Name: "Algorithms", Students: []string{}}, c)

	_, err = svc.AddCourse(ctx, roster.NewCourse{ID: "C1", Name: "Other"})
	assert.True(t, errors.Is(err, roster.ErrCourseExists))
	_, err = svc.AddCourse(ctx, roster.NewCourse{ID: "C2", Name: " "})
	assert.Contains(t, fieldsOf(err), "name")

	// a student may share an id with an instructor
	testutil.CreateStudent(t, svc, "Ida", 19, "ida@x.com", "I1")
}

func TestService_RegisterStudentForCourse(t *testing.T) {
	ctx := context.Background()
	svc, _ := testutil.NewService(t)
	testutil.CreateStudent(t, svc, "Alice", 20, "alice@x.com", "S1")
	testutil.CreateStudent(t, svc, "Zed", 22, "zed@x.com", "S2")
	testutil.CreateCourse(t, svc, "C1", "Algorithms")
	testutil.CreateCourse(t, svc, "C2", "Databases")

	tests := []struct {
		name      string
		studentID string
		courseID  string
		wantErr   error
	}{
		{name: "register", studentID: "S2", courseID: "C1"},
		{name: "register second student", studentID: "S1", courseID: "C1"},
		{name: "register second course", studentID: "S1", courseID: "C2"},
		{name: "twice", studentID: "S1", courseID: "C1", wantErr: roster.ErrAlreadyRegistered},
		{name: "unknown student", studentID: "S9", courseID: "C1", wantErr: roster.ErrStudentNotFound},
		{name: "unknown course", studentID: "S1", courseID: "C9", wantErr: roster.ErrCourseNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.RegisterStudentForCourse(ctx, tt.studentID, tt.courseID)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v, want %v", err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}

	c1, err := svc.Course(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, []string{"S2", "S1"}, c1.Students, "registration order")

	s1, err := svc.Student(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, []string{"C1", "C2"}, s1.Courses)

	// symmetric after unregistering
	require.NoError(t, svc.UnregisterStudentFromCourse(ctx, "S1", "C1"))
	c1, _ = svc.Course(ctx, "C1")
	s1, _ = svc.Student(ctx, "S1")
	assert.Equal(t, []string{"S2"}, c1.Students)
	assert.Equal(t, []string{"C2"}, s1.Courses)

	err = svc.UnregisterStudentFromCourse(ctx, "S1", "C1")
	assert.True(t, errors.Is(err, roster.ErrNotRegistered))
	assert.True(t, core.IsValidationError(err))
}

func TestService_AssignInstructorToCourse(t *testing.T) {
	ctx := context.Background()
	persister := &testutil.MemPersister{}
	svc, _ := testutil.NewService(t, roster.WithAutoSave(persister))
	testutil.CreateInstructor(t, svc, "Bob", 40, "bob@x.com", "I1")
	testutil.CreateInstructor(t, svc, "Kim", 50, "kim@x.com", "I2")
	testutil.CreateCourse(t, svc, "C1", "Algorithms")
	testutil.CreateCourse(t, svc, "C2", "Databases")

	testutil.Assign(t, svc, "I1", "C2")
	testutil.Assign(t, svc, "I1", "C1")
	i1, _ := svc.Instructor(ctx, "I1")
	assert.Equal(t, []string{"C1", "C2"}, i1.Courses, "course order")

	saves := persister.Saves
	t.Run("same instructor is a no-op", func(t *testing.T) {
		require.NoError(t, svc.AssignInstructorToCourse(ctx, "I1", "C1"))
		i1, _ := svc.Instructor(ctx, "I1")
		assert.Equal(t, []string{"C1", "C2"}, i1.Courses)
		assert.Equal(t, saves, persister.Saves)
	})

	t.Run("reassignment moves the course", func(t *testing.T) {
		require.NoError(t, svc.AssignInstructorToCourse(ctx, "I2", "C1"))
		i1, _ := svc.Instructor(ctx, "I1")
		i2, _ := svc.Instructor(ctx, "I2")
		c1, _ := svc.Course(ctx, "C1")
		assert.Equal(t, []string{"C2"}, i1.Courses)
		assert.Equal(t, []string{"C1"}, i2.Courses)
		assert.Equal(t, "I2", c1.Instructor)
	})

	t.Run("unknown records", func(t *testing.T) {
		assert.True(t, errors.Is(svc.AssignInstructorToCourse(ctx, "I9", "C1"), roster.ErrInstructorNotFound))
		assert.True(t, errors.Is(svc.AssignInstructorToCourse(ctx, "I1", "C9"), roster.ErrCourseNotFound))
	})

	t.Run("unassign", func(t *testing.T) {
		require.NoError(t, svc.UnassignInstructor(ctx, "C1"))
		c1, _ := svc.Course(ctx, "C1")
		i2, _ := svc.Instructor(ctx, "I2")
		assert.Empty(t, c1.Instructor)
		assert.Empty(t, i2.Courses)
	})
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) *roster.Service {
		svc, _ := testutil.NewService(t)
		testutil.CreateStudent(t, svc, "Alice", 20, "alice@x.com", "S1")
		testutil.CreateStudent(t, svc, "Zed", 22, "zed@x.com", "S2")
		testutil.CreateInstructor(t, svc, "Bob", 40, "bob@x.com", "I1")
		testutil.CreateCourse(t, svc, "C1", "Algorithms")
		testutil.CreateCourse(t, svc, "C2", "Databases")
		testutil.Register(t, svc, "S1", "C1")
		testutil.Register(t, svc, "S2", "C1")
		testutil.Register(t, svc, "S1", "C2")
		testutil.Assign(t, svc, "I1", "C1")
		return svc
	}

	t.Run("course leaves every student", func(t *testing.T) {
		svc := setup(t)
		require.NoError(t, svc.Delete(ctx, roster.KindCourse, "C1"))
		s1, _ := svc.Student(ctx, "S1")
		s2, _ := svc.Student(ctx, "S2")
		i1, _ := svc.Instructor(ctx, "I1")
		assert.Equal(t, []string{"C2"}, s1.Courses)
		assert.Empty(t, s2.Courses)
		assert.Empty(t, i1.Courses)
		_, err := svc.Course(ctx, "C1")
		assert.True(t, errors.Is(err, roster.ErrCourseNotFound))
	})

	t.Run("student leaves every course", func(t *testing.T) {
		svc := setup(t)
		require.NoError(t, svc.Delete(ctx, roster.KindStudent, "S1"))
		c1, _ := svc.Course(ctx, "C1")
		c2, _ := svc.Course(ctx, "C2")
		assert.Equal(t, []string{"S2"}, c1.Students)
		assert.Empty(t, c2.Students)
	})

	t.Run("instructor is cleared from its courses", func(t *testing.T) {
		svc := setup(t)
		require.NoError(t, svc.Delete(ctx, roster.KindInstructor, "I1"))
		c1, _ := svc.Course(ctx, "C1")
		assert.Empty(t, c1.Instructor)
	})

	t.Run("errors", func(t *testing.T) {
		svc := setup(t)
		tests := []struct {
			kind    roster.Kind
			id      string
			wantErr error
		}{
			{kind: roster.KindStudent, id: "nope", wantErr: roster.ErrStudentNotFound},
			{kind: roster.KindInstructor, id: "nope", wantErr: roster.ErrInstructorNotFound},
			{kind: roster.KindCourse, id: "nope", wantErr: roster.ErrCourseNotFound},
			{kind: roster.Kind("room"), id: "S1", wantErr: roster.ErrUnknownKind},
		}
		for _, tt := range tests {
			err := svc.Delete(ctx, tt.kind, tt.id)
			assert.True(t, errors.Is(err, tt.wantErr), "Delete(%s, %s) = %v", tt.kind, tt.id, err)
		}
		counts, err := svc.Counts(ctx)
		require.NoError(t, err)
		assert.Equal(t, roster.Counts{Students: 2, Instructors: 1, Courses: 2}, counts)
	})
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()
	svc, _ := testutil.NewService(t)
	testutil.CreateStudent(t, svc, "Alice", 20, "alice@x.com", "S1")
	testutil.CreateCourse(t, svc, "C1", "Algorithms")
	testutil.Register(t, svc, "S1", "C1")

	st, err := svc.UpdateStudent(ctx, "S1", roster.UpdatePerson{Age: "21"})
	require.NoError(t, err)
	assert.Equal(t, roster.Person{Name: "Alice", Age: 21, Email: "alice@x.com"}, st.Person)
	assert.Equal(t, []string{"C1"}, st.Courses, "relations survive updates")

	_, err = svc.UpdateStudent(ctx, "S1", roster.UpdatePerson{Email: "nope"})
	assert.Contains(t, fieldsOf(err), "email")
	st, _ = svc.Student(ctx, "S1")
	assert.Equal(t, "alice@x.com", st.Email)

	_, err = svc.UpdateStudent(ctx, "S9", roster.UpdatePerson{Name: "X"})
	assert.True(t, roster.IsNotFound(err))

	c, err := svc.UpdateCourse(ctx, "C1", roster.UpdateCourse{Name: "Advanced Algorithms"})
	require.NoError(t, err)
	assert.Equal(t, "Advanced Algorithms", c.Name)
	assert.Equal(t, []string{"S1"}, c.Students)
}

func TestService_Search(t *testing.T) {
	ctx := context.Background()
	svc, _ := testutil.NewService(t)
	alice := testutil.CreateStudent(t, svc, "Alice", 20, "alice@x.com", "S1")
	testutil.CreateStudent(t, svc, "Zed", 22, "zed@x.com", "S2")
	bob := testutil.CreateInstructor(t, svc, "Bob", 40, "bob@x.com", "I1")
	algo := testutil.CreateCourse(t, svc, "C1", "Algorithms")

	tests := []struct {
		name            string
		query           string
		wantStudents    []string
		wantInstructors int
		wantCourses     int
	}{
		{name: "unique name substring", query: "lic", wantStudents: []string{alice.ID}},
		{name: "case insensitive", query: "  ALICE ", wantStudents: []string{alice.ID}},
		{name: "matches ids", query: "s2", wantStudents: []string{"S2"}},
		{name: "matches courses", query: "rithm", wantStudents: []string{}, wantCourses: 1},
		{name: "matches instructors", query: bob.Name, wantStudents: []string{}, wantInstructors: 1},
		{name: "no match", query: "nobody", wantStudents: []string{}},
		{name: "empty query returns all", query: "", wantStudents: []string{"S1", "S2"}, wantInstructors: 1, wantCourses: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.Search(ctx, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStudents, studentIDs(res.Students))
			assert.Len(t, res.Instructors, tt.wantInstructors)
			assert.Len(t, res.Courses, tt.wantCourses)
		})
	}

	res, _ := svc.Search(ctx, "c1")
	assert.Equal(t, []roster.Course{algo}, res.Courses)
}

func TestService_ClosestID(t *testing.T) {
	ctx := context.Background()
	svc, _ := testutil.NewService(t)
	testutil.CreateCourse(t, svc, "MATH101", "Calculus")
	testutil.CreateCourse(t, svc, "HIST200", "History")

	id, ok := svc.ClosestID(ctx, roster.KindCourse, "math-101")
	assert.True(t, ok)
	assert.Equal(t, "MATH101", id)

	_, ok = svc.ClosestID(ctx, roster.KindCourse, "zzz")
	assert.False(t, ok)
	_, ok = svc.ClosestID(ctx, roster.KindStudent, "MATH101")
	assert.False(t, ok)
}

func TestService_AutoSave(t *testing.T) {
	ctx := context.Background()
	persister := &testutil.MemPersister{}
	svc, _ := testutil.NewService(t, roster.WithAutoSave(persister))

	testutil.CreateStudent(t, svc, "Alice", 20, "alice@x.com", "S1")
	require.NotNil(t, persister.Doc)
	assert.Equal(t, 1, persister.Saves)
	assert.Len(t, persister.Doc.Students, 1)

	// invalid input is not saved
	_, err := svc.AddStudent(ctx, roster.NewPerson{Name: "X", Age: "x", Email: "x@x.com", ID: "S2"})
	require.Error(t, err)
	assert.Equal(t, 1, persister.Saves)

	// a failing save is reported but the mutation stays
	persister.Err = errors.New("disk full")
	_, err = svc.AddStudent(ctx, roster.NewPerson{Name: "Zed", Age: "22", Email: "zed@x.com", ID: "S2"})
	assert.Error(t, err)
	_, err = svc.Student(ctx, "S2")
	assert.NoError(t, err)
}

// gatedPersister holds the first save until release is closed.
type gatedPersister struct {
	started chan struct{}
	release chan struct{}

	mu    sync.Mutex
	saves int
	doc   roster.Document
}

func (p *gatedPersister) SaveDocument(_ context.Context, doc roster.Document) error {
	p.mu.Lock()
	p.saves++
	first := p.saves == 1
	p.mu.Unlock()

	if first {
		close(p.started)
		<-p.release
	}
	p.mu.Lock()
	p.doc = doc
	p.mu.Unlock()
	return nil
}

func (p *gatedPersister) LoadDocument(context.Context) (roster.Document, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc, nil
}

// A mutation that starts while an autosave is in flight waits for it, so the
// last saved document holds every acknowledged write.
func TestService_AutoSaveConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	persister := &gatedPersister{started: make(chan struct{}), release: make(chan struct{})}
	svc, _ := testutil.NewService(t, roster.WithAutoSave(persister))

	errs := make(chan error, 2)
	go func() {
		_, err := svc.AddStudent(ctx, roster.NewPerson{Name: "Alice", Age: "20", Email: "alice@x.com", ID: "S1"})
		errs <- err
	}()
	<-persister.started

	go func() {
		_, err := svc.AddStudent(ctx, roster.NewPerson{Name: "Zed", Age: "22", Email: "zed@x.com", ID: "S2"})
		errs <- err
	}()
	select {
	case err := <-errs:
		t.Fatalf("second write finished during the first autosave: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(persister.release)
	require.NoError(t, <-errs)
	require.NoError(t, <-errs)

	doc, err := persister.LoadDocument(ctx)
	require.NoError(t, err)
	students, err := svc.Students(ctx)
	require.NoError(t, err)
	assert.Len(t, students, 2)
	assert.Len(t, doc.Students, 2)
}

func TestService_UpdateNullAge(t *testing.T) {
	ctx := context.Background()
	svc, _ := testutil.NewService(t)
	testutil.CreateStudent(t, svc, "Alice", 20, "alice@x.com", "S1")

	var up roster.UpdatePerson
	require.NoError(t, json.Unmarshal([]byte(`{"name": "Alice B.", "age": null}`), &up))
	assert.Equal(t, roster.Age(""), up.Age)

	st, err := svc.UpdateStudent(ctx, "S1", up)
	require.NoError(t, err)
	assert.Equal(t, roster.Person{Name: "Alice B.", Age: 20, Email: "alice@x.com"}, st.Person)
}

// brokenCourses fails every course listing.
type brokenCourses struct {
	roster.Repository
}

func (brokenCourses) QueryCourses(context.Context) ([]roster.Course, error) {
	return nil, errors.New("connection reset")
}

func TestService_ClosestIDRepositoryError(t *testing.T) {
	ctx := context.Background()
	svc, repo := testutil.NewService(t)
	testutil.CreateCourse(t, svc, "MATH101", "Calculus")

	broken := roster.NewService(brokenCourses{repo})
	id, ok := broken.ClosestID(ctx, roster.KindCourse, "MATH101")
	assert.False(t, ok)
	assert.Empty(t, id)
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    roster.Kind
		wantErr bool
	}{
		{in: "student", want: roster.KindStudent},
		{in: "Students", want: roster.KindStudent},
		{in: " instructor ", want: roster.KindInstructor},
		{in: "teacher", want: roster.KindInstructor},
		{in: "COURSES", want: roster.KindCourse},
		{in: "room", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := roster.ParseKind(tt.in)
			if tt.wantErr {
				assert.Equal(t, roster.ErrUnknownKind, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
