package roster_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/roster/core"
	"github.com/trezcool/roster/core/roster"
	"github.com/trezcool/roster/tests"
)

func strPtr(s string) *string { return &s }

// The full round trip: Alice registered for C1 survives save and load into a fresh store.
func TestService_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc, _ := testutil.NewService(t)
	testutil.CreateStudent(t, svc, "Alice", 20, "alice@x.com", "S1")
	testutil.CreateStudent(t, svc, "Zed", 22, "zed@x.com", "S2")
	testutil.CreateInstructor(t, svc, "Bob", 40, "bob@x.com", "I1")
	testutil.CreateCourse(t, svc, "C1", "Algorithms")
	testutil.CreateCourse(t, svc, "C2", "Databases")
	testutil.Register(t, svc, "S2", "C1")
	testutil.Register(t, svc, "S1", "C1")
	testutil.Assign(t, svc, "I1", "C1")

	persister := &testutil.MemPersister{}
	require.NoError(t, svc.SaveTo(ctx, persister))
	require.NotNil(t, persister.Doc)
	assert.Equal(t, []roster.CourseRecord{
		{ID: "C1", Name: "Algorithms", Instructor: strPtr("I1"), Students: []string{"S2", "S1"}},
		{ID: "C2", Name: "Databases", Students: []string{}},
	}, persister.Doc.Courses)

	fresh, _ := testutil.NewService(t)
	require.NoError(t, fresh.LoadFrom(ctx, persister))

	for _, list := range []func(*roster.Service) (interface{}, error){
		func(s *roster.Service) (interface{}, error) { return s.Students(ctx) },
		func(s *roster.Service) (interface{}, error) { return s.Instructors(ctx) },
		func(s *roster.Service) (interface{}, error) { return s.Courses(ctx) },
	} {
		want, err := list(svc)
		require.NoError(t, err)
		got, err := list(fresh)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	alice, err := fresh.Student(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, []string{"C1"}, alice.Courses)
	c1, err := fresh.Course(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, "I1", c1.Instructor)
}

func TestService_LoadFrom(t *testing.T) {
	ctx := context.Background()

	t.Run("missing document keeps state", func(t *testing.T) {
		svc, _ := testutil.NewService(t)
		testutil.CreateStudent(t, svc, "Alice", 20, "alice@x.com", "S1")
		require.NoError(t, svc.LoadFrom(ctx, &testutil.MemPersister{}))
		counts, _ := svc.Counts(ctx)
		assert.Equal(t, 1, counts.Students)
	})

	t.Run("load replaces state", func(t *testing.T) {
		svc, _ := testutil.NewService(t)
		testutil.CreateStudent(t, svc, "Old", 70, "old@x.com", "S0")
		doc := roster.Document{
			Students: []roster.PersonRecord{{Name: "Alice", Age: 20, Email: "alice@x.com", ID: "S1"}},
		}
		require.NoError(t, svc.LoadFrom(ctx, &testutil.MemPersister{Doc: &doc}))
		students, _ := svc.Students(ctx)
		assert.Equal(t, []string{"S1"}, studentIDs(students))
	})

	t.Run("references by name still link", func(t *testing.T) {
		svc, _ := testutil.NewService(t)
		doc := roster.Document{
			Students:    []roster.PersonRecord{{Name: "Alice", Age: 20, Email: "alice@x.com", ID: "S1"}},
			Instructors: []roster.PersonRecord{{Name: "Bob", Age: 40, Email: "bob@x.com", ID: "I1"}},
			Courses: []roster.CourseRecord{
				{ID: "C1", Name: "Algorithms", Instructor: strPtr("Bob"), Students: []string{"Alice", "S1", "Ghost"}},
			},
		}
		require.NoError(t, svc.Restore(ctx, doc))
		c1, err := svc.Course(ctx, "C1")
		require.NoError(t, err)
		assert.Equal(t, "I1", c1.Instructor)
		assert.Equal(t, []string{"S1"}, c1.Students, "duplicates and unknown references are dropped")
	})

	t.Run("invalid document changes nothing", func(t *testing.T) {
		svc, _ := testutil.NewService(t)
		testutil.CreateStudent(t, svc, "Old", 70, "old@x.com", "S0")

		docs := map[string]roster.Document{
			"bad email": {Students: []roster.PersonRecord{{Name: "A", Age: 1, Email: "nope", ID: "S1"}}},
			"negative age": {Instructors: []roster.PersonRecord{{Name: "B", Age: -1, Email: "b@x.com", ID: "I1"}}},
			"duplicate student id": {Students: []roster.PersonRecord{
				{Name: "A", Age: 1, Email: "a@x.com", ID: "S1"},
				{Name: "B", Age: 2, Email: "b@x.com", ID: "S1"},
			}},
			"duplicate course id": {Courses: []roster.CourseRecord{{ID: "C1", Name: "A"}, {ID: "C1", Name: "B"}}},
			"blank course name":   {Courses: []roster.CourseRecord{{ID: "C1", Name: ""}}},
		}
		for name, doc := range docs {
			t.Run(name, func(t *testing.T) {
				err := svc.Restore(ctx, doc)
				require.Error(t, err)
				students, _ := svc.Students(ctx)
				assert.Equal(t, []string{"S0"}, studentIDs(students))
			})
		}

		err := svc.Restore(ctx, docs["duplicate student id"])
		assert.True(t, core.IsValidationError(err))
		assert.True(t, errors.Is(err, roster.ErrStudentExists))
	})

	t.Run("persister failure", func(t *testing.T) {
		svc, _ := testutil.NewService(t)
		err := svc.LoadFrom(ctx, failingPersister{})
		assert.EqualError(t, err, "loading roster: boom")
	})
}

type failingPersister struct{}

func (failingPersister) SaveDocument(context.Context, roster.Document) error {
	return errors.New("boom")
}

func (failingPersister) LoadDocument(context.Context) (roster.Document, error) {
	return roster.Document{}, errors.New("boom")
}

func TestService_DocumentEmpty(t *testing.T) {
	svc, _ := testutil.NewService(t)
	doc, err := svc.Document(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, doc.Students)
	assert.NotNil(t, doc.Instructors)
	assert.NotNil(t, doc.Courses)
}
