package sqldb

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/roster/core"
	"github.com/trezcool/roster/core/roster"
	"github.com/trezcool/roster/storage/database"
)

type (
	personRow struct {
		PK    string `db:"pk"`
		ID    string `db:"id"`
		Name  string `db:"name"`
		Age   int    `db:"age"`
		Email string `db:"email"`
		Seq   int64  `db:"seq"`
	}

	courseRow struct {
		PK           string      `db:"pk"`
		ID           string      `db:"id"`
		Name         string      `db:"name"`
		InstructorID null.String `db:"instructor_id"`
		Seq          int64       `db:"seq"`
	}

	// link is one (owner id, related id) pair of a relation projection.
	link struct {
		Owner   string `db:"owner"`
		Related string `db:"related"`
	}
)

const (
	studentsTable    = "students"
	instructorsTable = "instructors"
)

type rosterRepository struct {
	db core.DB
}

var _ roster.Repository = (*rosterRepository)(nil) // interface compliance check

func NewRosterRepository(db core.DB) roster.Repository {
	return &rosterRepository{db: db}
}

// get, query and exec take "?" placeholders and rebind them for the driver.

func get(ctx context.Context, ex core.DBExecutor, dest interface{}, q string, args ...interface{}) error {
	return sqlx.GetContext(ctx, ex, dest, ex.Rebind(q), args...)
}

func query(ctx context.Context, ex core.DBExecutor, dest interface{}, q string, args ...interface{}) error {
	return sqlx.SelectContext(ctx, ex, dest, ex.Rebind(q), args...)
}

func exec(ctx context.Context, ex core.DBExecutor, q string, args ...interface{}) (int64, error) {
	res, err := ex.ExecContext(ctx, ex.Rebind(q), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func exists(ctx context.Context, ex core.DBExecutor, table, id string) (bool, error) {
	var n int
	err := get(ctx, ex, &n, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE id = ?", table), id)
	return n > 0, err
}

func nextSeq(ctx context.Context, ex core.DBExecutor, table string) (int64, error) {
	var seq int64
	err := get(ctx, ex, &seq, fmt.Sprintf("SELECT COALESCE(MAX(seq), 0) + 1 FROM %s", table))
	return seq, err
}

// group collects the related ids per owner, keeping the query order.
func group(links []link) map[string][]string {
	m := make(map[string][]string)
	for _, l := range links {
		m[l.Owner] = append(m[l.Owner], l.Related)
	}
	return m
}

func orEmpty(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

// relation projections

// studentCourses lists the registered courses per student, in course order.
func studentCourses(ctx context.Context, ex core.DBExecutor, studentID string) (map[string][]string, error) {
	q := `SELECT e.student_id AS owner, e.course_id AS related
		FROM enrollments e JOIN courses c ON c.id = e.course_id`
	var args []interface{}
	if studentID != "" {
		q += " WHERE e.student_id = ?"
		args = append(args, studentID)
	}
	var links []link
	if err := query(ctx, ex, &links, q+" ORDER BY c.seq", args...); err != nil {
		return nil, errors.Wrap(err, "querying student courses")
	}
	return group(links), nil
}

// instructorCourses lists the assigned courses per instructor, in course order.
func instructorCourses(ctx context.Context, ex core.DBExecutor, instructorID string) (map[string][]string, error) {
	q := "SELECT instructor_id AS owner, id AS related FROM courses WHERE instructor_id IS NOT NULL"
	var args []interface{}
	if instructorID != "" {
		q += " AND instructor_id = ?"
		args = append(args, instructorID)
	}
	var links []link
	if err := query(ctx, ex, &links, q+" ORDER BY seq", args...); err != nil {
		return nil, errors.Wrap(err, "querying instructor courses")
	}
	return group(links), nil
}

// courseStudents lists the enrolled students per course, in registration order.
func courseStudents(ctx context.Context, ex core.DBExecutor, courseID string) (map[string][]string, error) {
	q := "SELECT course_id AS owner, student_id AS related FROM enrollments"
	var args []interface{}
	if courseID != "" {
		q += " WHERE course_id = ?"
		args = append(args, courseID)
	}
	var links []link
	if err := query(ctx, ex, &links, q+" ORDER BY seq", args...); err != nil {
		return nil, errors.Wrap(err, "querying course students")
	}
	return group(links), nil
}

func (row personRow) person() roster.Person {
	return roster.Person{Name: row.Name, Age: row.Age, Email: row.Email}
}

func (row courseRow) course(students []string) roster.Course {
	return roster.Course{ID: row.ID, Name: row.Name, Instructor: row.InstructorID.String, Students: orEmpty(students)}
}

func insertPerson(ctx context.Context, ex core.DBExecutor, table, id string, p roster.Person) error {
	seq, err := nextSeq(ctx, ex, table)
	if err != nil {
		return err
	}
	_, err = exec(ctx, ex,
		fmt.Sprintf("INSERT INTO %s (pk, id, name, age, email, seq) VALUES (?, ?, ?, ?, ?, ?)", table),
		uuid.NewString(), id, p.Name, p.Age, p.Email, seq,
	)
	return err
}

func insertCourse(ctx context.Context, ex core.DBExecutor, c roster.Course) error {
	seq, err := nextSeq(ctx, ex, "courses")
	if err != nil {
		return err
	}
	_, err = exec(ctx, ex,
		"INSERT INTO courses (pk, id, name, instructor_id, seq) VALUES (?, ?, ?, ?, ?)",
		uuid.NewString(), c.ID, c.Name, null.NewString(c.Instructor, c.Instructor != ""), seq,
	)
	return err
}

func insertEnrollment(ctx context.Context, ex core.DBExecutor, studentID, courseID string) error {
	seq, err := nextSeq(ctx, ex, "enrollments")
	if err != nil {
		return err
	}
	_, err = exec(ctx, ex,
		"INSERT INTO enrollments (seq, student_id, course_id) VALUES (?, ?, ?)",
		seq, studentID, courseID,
	)
	return err
}

// Create

func (repo *rosterRepository) CreateStudent(ctx context.Context, st roster.Student) (roster.Student, error) {
	err := database.InTx(ctx, repo.db, func(tx core.DBExecutor) error {
		taken, err := exists(ctx, tx, studentsTable, st.ID)
		if err != nil {
			return err
		}
		if taken {
			return roster.ErrStudentExists
		}
		return insertPerson(ctx, tx, studentsTable, st.ID, st.Person)
	})
	if err != nil {
		return roster.Student{}, errors.Wrap(err, "creating student")
	}
	return roster.Student{Person: st.Person, ID: st.ID, Courses: []string{}}, nil
}

func (repo *rosterRepository) CreateInstructor(ctx context.Context, ins roster.Instructor) (roster.Instructor, error) {
	err := database.InTx(ctx, repo.db, func(tx core.DBExecutor) error {
		taken, err := exists(ctx, tx, instructorsTable, ins.ID)
		if err != nil {
			return err
		}
		if taken {
			return roster.ErrInstructorExists
		}
		return insertPerson(ctx, tx, instructorsTable, ins.ID, ins.Person)
	})
	if err != nil {
		return roster.Instructor{}, errors.Wrap(err, "creating instructor")
	}
	return roster.Instructor{Person: ins.Person, ID: ins.ID, Courses: []string{}}, nil
}

func (repo *rosterRepository) CreateCourse(ctx context.Context, c roster.Course) (roster.Course, error) {
	err := database.InTx(ctx, repo.db, func(tx core.DBExecutor) error {
		taken, err := exists(ctx, tx, "courses", c.ID)
		if err != nil {
			return err
		}
		if taken {
			return roster.ErrCourseExists
		}
		return insertCourse(ctx, tx, roster.Course{ID: c.ID, Name: c.Name})
	})
	if err != nil {
		return roster.Course{}, errors.Wrap(err, "creating course")
	}
	return roster.Course{ID: c.ID, Name: c.Name, Students: []string{}}, nil
}

// Read

func (repo *rosterRepository) queryPeople(ctx context.Context, table, id string) ([]personRow, error) {
	q := fmt.Sprintf("SELECT pk, id, name, age, email, seq FROM %s", table)
	var args []interface{}
	if id != "" {
		q += " WHERE id = ?"
		args = append(args, id)
	}
	var rows []personRow
	if err := query(ctx, repo.db, &rows, q+" ORDER BY seq", args...); err != nil {
		return nil, errors.Wrapf(err, "querying %s", table)
	}
	return rows, nil
}

func (repo *rosterRepository) students(ctx context.Context, id string) ([]roster.Student, error) {
	rows, err := repo.queryPeople(ctx, studentsTable, id)
	if err != nil {
		return nil, err
	}
	courses, err := studentCourses(ctx, repo.db, id)
	if err != nil {
		return nil, err
	}
	students := make([]roster.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, roster.Student{Person: row.person(), ID: row.ID, Courses: orEmpty(courses[row.ID])})
	}
	return students, nil
}

func (repo *rosterRepository) instructors(ctx context.Context, id string) ([]roster.Instructor, error) {
	rows, err := repo.queryPeople(ctx, instructorsTable, id)
	if err != nil {
		return nil, err
	}
	courses, err := instructorCourses(ctx, repo.db, id)
	if err != nil {
		return nil, err
	}
	instructors := make([]roster.Instructor, 0, len(rows))
	for _, row := range rows {
		instructors = append(instructors, roster.Instructor{Person: row.person(), ID: row.ID, Courses: orEmpty(courses[row.ID])})
	}
	return instructors, nil
}

func (repo *rosterRepository) courses(ctx context.Context, id string) ([]roster.Course, error) {
	q := "SELECT pk, id, name, instructor_id, seq FROM courses"
	var args []interface{}
	if id != "" {
		q += " WHERE id = ?"
		args = append(args, id)
	}
	var rows []courseRow
	if err := query(ctx, repo.db, &rows, q+" ORDER BY seq", args...); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	students, err := courseStudents(ctx, repo.db, id)
	if err != nil {
		return nil, err
	}
	courses := make([]roster.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, row.course(students[row.ID]))
	}
	return courses, nil
}

func (repo *rosterRepository) QueryStudents(ctx context.Context) ([]roster.Student, error) {
	return repo.students(ctx, "")
}

func (repo *rosterRepository) QueryInstructors(ctx context.Context) ([]roster.Instructor, error) {
	return repo.instructors(ctx, "")
}

func (repo *rosterRepository) QueryCourses(ctx context.Context) ([]roster.Course, error) {
	return repo.courses(ctx, "")
}

func (repo *rosterRepository) GetStudent(ctx context.Context, id string) (roster.Student, error) {
	if id == "" {
		return roster.Student{}, roster.ErrStudentNotFound
	}
	students, err := repo.students(ctx, id)
	if err != nil {
		return roster.Student{}, err
	}
	if len(students) == 0 {
		return roster.Student{}, roster.ErrStudentNotFound
	}
	return students[0], nil
}

func (repo *rosterRepository) GetInstructor(ctx context.Context, id string) (roster.Instructor, error) {
	if id == "" {
		return roster.Instructor{}, roster.ErrInstructorNotFound
	}
	instructors, err := repo.instructors(ctx, id)
	if err != nil {
		return roster.Instructor{}, err
	}
	if len(instructors) == 0 {
		return roster.Instructor{}, roster.ErrInstructorNotFound
	}
	return instructors[0], nil
}

func (repo *rosterRepository) GetCourse(ctx context.Context, id string) (roster.Course, error) {
	if id == "" {
		return roster.Course{}, roster.ErrCourseNotFound
	}
	courses, err := repo.courses(ctx, id)
	if err != nil {
		return roster.Course{}, err
	}
	if len(courses) == 0 {
		return roster.Course{}, roster.ErrCourseNotFound
	}
	return courses[0], nil
}

// Update

func (repo *rosterRepository) updatePerson(ctx context.Context, table, id string, p roster.Person) (bool, error) {
	n, err := exec(ctx, repo.db,
		fmt.Sprintf("UPDATE %s SET name = ?, age = ?, email = ? WHERE id = ?", table),
		p.Name, p.Age, p.Email, id,
	)
	if err != nil {
		return false, errors.Wrapf(err, "updating %s", table)
	}
	return n > 0, nil
}

func (repo *rosterRepository) UpdateStudent(ctx context.Context, st roster.Student) (roster.Student, error) {
	found, err := repo.updatePerson(ctx, studentsTable, st.ID, st.Person)
	if err != nil {
		return roster.Student{}, err
	}
	if !found {
		return roster.Student{}, roster.ErrStudentNotFound
	}
	return repo.GetStudent(ctx, st.ID)
}

func (repo *rosterRepository) UpdateInstructor(ctx context.Context, ins roster.Instructor) (roster.Instructor, error) {
	found, err := repo.updatePerson(ctx, instructorsTable, ins.ID, ins.Person)
	if err != nil {
		return roster.Instructor{}, err
	}
	if !found {
		return roster.Instructor{}, roster.ErrInstructorNotFound
	}
	return repo.GetInstructor(ctx, ins.ID)
}

func (repo *rosterRepository) UpdateCourse(ctx context.Context, c roster.Course) (roster.Course, error) {
	n, err := exec(ctx, repo.db, "UPDATE courses SET name = ? WHERE id = ?", c.Name, c.ID)
	if err != nil {
		return roster.Course{}, errors.Wrap(err, "updating course")
	}
	if n == 0 {
		return roster.Course{}, roster.ErrCourseNotFound
	}
	return repo.GetCourse(ctx, c.ID)
}

// Relations

func (repo *rosterRepository) Enroll(ctx context.Context, studentID, courseID string) error {
	return database.InTx(ctx, repo.db, func(tx core.DBExecutor) error {
		if ok, err := exists(ctx, tx, studentsTable, studentID); err != nil || !ok {
			return notFound(err, roster.ErrStudentNotFound)
		}
		if ok, err := exists(ctx, tx, "courses", courseID); err != nil || !ok {
			return notFound(err, roster.ErrCourseNotFound)
		}
		var n int
		err := get(ctx, tx, &n,
			"SELECT COUNT(*) FROM enrollments WHERE student_id = ? AND course_id = ?", studentID, courseID)
		if err != nil {
			return errors.Wrap(err, "checking enrollment")
		}
		if n > 0 {
			return roster.ErrAlreadyRegistered
		}
		return errors.Wrap(insertEnrollment(ctx, tx, studentID, courseID), "enrolling student")
	})
}

func (repo *rosterRepository) Unenroll(ctx context.Context, studentID, courseID string) error {
	n, err := exec(ctx, repo.db,
		"DELETE FROM enrollments WHERE student_id = ? AND course_id = ?", studentID, courseID)
	if err != nil {
		return errors.Wrap(err, "unenrolling student")
	}
	if n == 0 {
		return roster.ErrNotRegistered
	}
	return nil
}

func (repo *rosterRepository) SetCourseInstructor(ctx context.Context, courseID, instructorID string) error {
	return database.InTx(ctx, repo.db, func(tx core.DBExecutor) error {
		if instructorID != "" {
			if ok, err := exists(ctx, tx, instructorsTable, instructorID); err != nil || !ok {
				return notFound(err, roster.ErrInstructorNotFound)
			}
		}
		n, err := exec(ctx, tx, "UPDATE courses SET instructor_id = ? WHERE id = ?",
			null.NewString(instructorID, instructorID != ""), courseID)
		if err != nil {
			return errors.Wrap(err, "setting course instructor")
		}
		if n == 0 {
			return roster.ErrCourseNotFound
		}
		return nil
	})
}

// notFound returns err when the lookup failed, miss otherwise.
func notFound(err, miss error) error {
	if err != nil {
		return errors.Wrap(err, "looking up record")
	}
	return miss
}

// Delete; dependent rows are removed explicitly, the foreign keys only back this up.

func (repo *rosterRepository) deleteRecord(ctx context.Context, table, id string, miss error, cascade ...string) error {
	return database.InTx(ctx, repo.db, func(tx core.DBExecutor) error {
		for _, stmt := range cascade {
			if _, err := exec(ctx, tx, stmt, id); err != nil {
				return errors.Wrapf(err, "deleting %s dependents", table)
			}
		}
		n, err := exec(ctx, tx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", table), id)
		if err != nil {
			return errors.Wrapf(err, "deleting from %s", table)
		}
		if n == 0 {
			return miss
		}
		return nil
	})
}

func (repo *rosterRepository) DeleteStudent(ctx context.Context, id string) error {
	return repo.deleteRecord(ctx, studentsTable, id, roster.ErrStudentNotFound,
		"DELETE FROM enrollments WHERE student_id = ?")
}

func (repo *rosterRepository) DeleteInstructor(ctx context.Context, id string) error {
	return repo.deleteRecord(ctx, instructorsTable, id, roster.ErrInstructorNotFound,
		"UPDATE courses SET instructor_id = NULL WHERE instructor_id = ?")
}

func (repo *rosterRepository) DeleteCourse(ctx context.Context, id string) error {
	return repo.deleteRecord(ctx, "courses", id, roster.ErrCourseNotFound,
		"DELETE FROM enrollments WHERE course_id = ?")
}

// Restore empties every table and inserts the records in order, in one transaction.
func (repo *rosterRepository) Restore(
	ctx context.Context,
	students []roster.Student,
	instructors []roster.Instructor,
	courses []roster.Course,
) error {
	return database.InTx(ctx, repo.db, func(tx core.DBExecutor) error {
		for _, table := range []string{"enrollments", "courses", instructorsTable, studentsTable} {
			if _, err := exec(ctx, tx, "DELETE FROM "+table); err != nil {
				return errors.Wrapf(err, "clearing %s", table)
			}
		}
		for _, st := range students {
			if err := insertPerson(ctx, tx, studentsTable, st.ID, st.Person); err != nil {
				return errors.Wrap(err, "inserting student")
			}
		}
		for _, ins := range instructors {
			if err := insertPerson(ctx, tx, instructorsTable, ins.ID, ins.Person); err != nil {
				return errors.Wrap(err, "inserting instructor")
			}
		}
		for _, c := range courses {
			if err := insertCourse(ctx, tx, c); err != nil {
				return errors.Wrap(err, "inserting course")
			}
		}
		for _, c := range courses {
			for _, sid := range c.Students {
				if err := insertEnrollment(ctx, tx, sid, c.ID); err != nil {
					return errors.Wrap(err, "inserting enrollment")
				}
			}
		}
		return nil
	})
}
