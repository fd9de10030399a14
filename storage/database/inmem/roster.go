package inmemdb

import (
	"context"

	"github.com/trezcool/roster/core/roster"
)

type rosterRepository struct {
	db *rosterTables
}

func NewRosterRepository(db *DB) roster.Repository {
	return &rosterRepository{db: db.roster}
}

// lookups; callers hold the lock

func (tbl *rosterTables) studentIdx(id string) int {
	for i, st := range tbl.students {
		if st.ID == id {
			return i
		}
	}
	return -1
}

func (tbl *rosterTables) instructorIdx(id string) int {
	for i, ins := range tbl.instructors {
		if ins.ID == id {
			return i
		}
	}
	return -1
}

func (tbl *rosterTables) courseIdx(id string) int {
	for i, c := range tbl.courses {
		if c.id == id {
			return i
		}
	}
	return -1
}

func (tbl *rosterTables) enrollmentIdx(studentID, courseID string) int {
	for i, e := range tbl.enrollments {
		if e.studentID == studentID && e.courseID == courseID {
			return i
		}
	}
	return -1
}

func (tbl *rosterTables) student(i int) roster.Student {
	st := tbl.students[i]
	st.Courses = []string{}
	for _, c := range tbl.courses {
		if tbl.enrollmentIdx(st.ID, c.id) >= 0 {
			st.Courses = append(st.Courses, c.id)
		}
	}
	return st
}

func (tbl *rosterTables) instructor(i int) roster.Instructor {
	ins := tbl.instructors[i]
	ins.Courses = []string{}
	for _, c := range tbl.courses {
		if c.instructor == ins.ID {
			ins.Courses = append(ins.Courses, c.id)
		}
	}
	return ins
}

func (tbl *rosterTables) course(i int) roster.Course {
	row := tbl.courses[i]
	c := roster.Course{ID: row.id, Name: row.name, Instructor: row.instructor, Students: []string{}}
	for _, e := range tbl.enrollments {
		if e.courseID == row.id {
			c.Students = append(c.Students, e.studentID)
		}
	}
	return c
}

// Create

func (repo *rosterRepository) CreateStudent(_ context.Context, st roster.Student) (roster.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.db.studentIdx(st.ID) >= 0 {
		return roster.Student{}, roster.ErrStudentExists
	}
	st.Courses = nil
	repo.db.students = append(repo.db.students, st)
	return repo.db.student(len(repo.db.students) - 1), nil
}

func (repo *rosterRepository) CreateInstructor(_ context.Context, ins roster.Instructor) (roster.Instructor, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.db.instructorIdx(ins.ID) >= 0 {
		return roster.Instructor{}, roster.ErrInstructorExists
	}
	ins.Courses = nil
	repo.db.instructors = append(repo.db.instructors, ins)
	return repo.db.instructor(len(repo.db.instructors) - 1), nil
}

func (repo *rosterRepository) CreateCourse(_ context.Context, c roster.Course) (roster.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.db.courseIdx(c.ID) >= 0 {
		return roster.Course{}, roster.ErrCourseExists
	}
	repo.db.courses = append(repo.db.courses, courseRow{id: c.ID, name: c.Name})
	return repo.db.course(len(repo.db.courses) - 1), nil
}

// Read

func (repo *rosterRepository) QueryStudents(context.Context) ([]roster.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	students := make([]roster.Student, 0, len(repo.db.students))
	for i := range repo.db.students {
		students = append(students, repo.db.student(i))
	}
	return students, nil
}

func (repo *rosterRepository) QueryInstructors(context.Context) ([]roster.Instructor, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	instructors := make([]roster.Instructor, 0, len(repo.db.instructors))
	for i := range repo.db.instructors {
		instructors = append(instructors, repo.db.instructor(i))
	}
	return instructors, nil
}

func (repo *rosterRepository) QueryCourses(context.Context) ([]roster.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	courses := make([]roster.Course, 0, len(repo.db.courses))
	for i := range repo.db.courses {
		courses = append(courses, repo.db.course(i))
	}
	return courses, nil
}

func (repo *rosterRepository) GetStudent(_ context.Context, id string) (roster.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if i := repo.db.studentIdx(id); i >= 0 {
		return repo.db.student(i), nil
	}
	return roster.Student{}, roster.ErrStudentNotFound
}

func (repo *rosterRepository) GetInstructor(_ context.Context, id string) (roster.Instructor, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if i := repo.db.instructorIdx(id); i >= 0 {
		return repo.db.instructor(i), nil
	}
	return roster.Instructor{}, roster.ErrInstructorNotFound
}

func (repo *rosterRepository) GetCourse(_ context.Context, id string) (roster.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if i := repo.db.courseIdx(id); i >= 0 {
		return repo.db.course(i), nil
	}
	return roster.Course{}, roster.ErrCourseNotFound
}

// Update

func (repo *rosterRepository) UpdateStudent(_ context.Context, st roster.Student) (roster.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	i := repo.db.studentIdx(st.ID)
	if i < 0 {
		return roster.Student{}, roster.ErrStudentNotFound
	}
	repo.db.students[i].Person = st.Person
	return repo.db.student(i), nil
}

func (repo *rosterRepository) UpdateInstructor(_ context.Context, ins roster.Instructor) (roster.Instructor, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	i := repo.db.instructorIdx(ins.ID)
	if i < 0 {
		return roster.Instructor{}, roster.ErrInstructorNotFound
	}
	repo.db.instructors[i].Person = ins.Person
	return repo.db.instructor(i), nil
}

func (repo *rosterRepository) UpdateCourse(_ context.Context, c roster.Course) (roster.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	i := repo.db.courseIdx(c.ID)
	if i < 0 {
		return roster.Course{}, roster.ErrCourseNotFound
	}
	repo.db.courses[i].name = c.Name
	return repo.db.course(i), nil
}

// Relations

func (repo *rosterRepository) Enroll(_ context.Context, studentID, courseID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.db.studentIdx(studentID) < 0 {
		return roster.ErrStudentNotFound
	}
	if repo.db.courseIdx(courseID) < 0 {
		return roster.ErrCourseNotFound
	}
	if repo.db.enrollmentIdx(studentID, courseID) >= 0 {
		return roster.ErrAlreadyRegistered
	}
	repo.db.enrollments = append(repo.db.enrollments, enrollment{studentID: studentID, courseID: courseID})
	return nil
}

func (repo *rosterRepository) Unenroll(_ context.Context, studentID, courseID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	i := repo.db.enrollmentIdx(studentID, courseID)
	if i < 0 {
		return roster.ErrNotRegistered
	}
	repo.db.enrollments = append(repo.db.enrollments[:i], repo.db.enrollments[i+1:]...)
	return nil
}

func (repo *rosterRepository) SetCourseInstructor(_ context.Context, courseID, instructorID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	i := repo.db.courseIdx(courseID)
	if i < 0 {
		return roster.ErrCourseNotFound
	}
	if instructorID != "" && repo.db.instructorIdx(instructorID) < 0 {
		return roster.ErrInstructorNotFound
	}
	repo.db.courses[i].instructor = instructorID
	return nil
}

// Delete

func (repo *rosterRepository) DeleteStudent(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	i := repo.db.studentIdx(id)
	if i < 0 {
		return roster.ErrStudentNotFound
	}
	repo.db.students = append(repo.db.students[:i], repo.db.students[i+1:]...)
	repo.db.dropEnrollments(func(e enrollment) bool { return e.studentID == id })
	return nil
}

func (repo *rosterRepository) DeleteInstructor(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	i := repo.db.instructorIdx(id)
	if i < 0 {
		return roster.ErrInstructorNotFound
	}
	repo.db.instructors = append(repo.db.instructors[:i], repo.db.instructors[i+1:]...)
	for j := range repo.db.courses {
		if repo.db.courses[j].instructor == id {
			repo.db.courses[j].instructor = ""
		}
	}
	return nil
}

func (repo *rosterRepository) DeleteCourse(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	i := repo.db.courseIdx(id)
	if i < 0 {
		return roster.ErrCourseNotFound
	}
	repo.db.courses = append(repo.db.courses[:i], repo.db.courses[i+1:]...)
	repo.db.dropEnrollments(func(e enrollment) bool { return e.courseID == id })
	return nil
}

func (tbl *rosterTables) dropEnrollments(match func(enrollment) bool) {
	kept := tbl.enrollments[:0]
	for _, e := range tbl.enrollments {
		if !match(e) {
			kept = append(kept, e)
		}
	}
	tbl.enrollments = kept
}

// Restore replaces every table. References are assumed valid.
func (repo *rosterRepository) Restore(
	_ context.Context,
	students []roster.Student,
	instructors []roster.Instructor,
	courses []roster.Course,
) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.students = make([]roster.Student, 0, len(students))
	for _, st := range students {
		st.Courses = nil
		repo.db.students = append(repo.db.students, st)
	}
	repo.db.instructors = make([]roster.Instructor, 0, len(instructors))
	for _, ins := range instructors {
		ins.Courses = nil
		repo.db.instructors = append(repo.db.instructors, ins)
	}
	repo.db.courses = make([]courseRow, 0, len(courses))
	repo.db.enrollments = nil
	for _, c := range courses {
		repo.db.courses = append(repo.db.courses, courseRow{id: c.ID, name: c.Name, instructor: c.Instructor})
		for _, sid := range c.Students {
			repo.db.enrollments = append(repo.db.enrollments, enrollment{studentID: sid, courseID: c.ID})
		}
	}
	return nil
}
