package roster

import "errors"

var (
	// lookup misses
	ErrStudentNotFound    = errors.New("student not found")
	ErrInstructorNotFound = errors.New("instructor not found")
	ErrCourseNotFound     = errors.New("course not found")

	// uniqueness
	ErrStudentExists    = errors.New("a student with this id already exists")
	ErrInstructorExists = errors.New("an instructor with this id already exists")
	ErrCourseExists     = errors.New("a course with this id already exists")

	// relations
	ErrAlreadyRegistered = errors.New("student is already registered for this course")
	ErrNotRegistered     = errors.New("student is not registered for this course")

	ErrUnknownKind = errors.New("unknown record kind")
	ErrNoDocument  = errors.New("no saved roster document")
)

// IsNotFound reports whether err is one of the lookup-miss errors.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrStudentNotFound) ||
		errors.Is(err, ErrInstructorNotFound) ||
		errors.Is(err, ErrCourseNotFound)
}

func notFoundErr(kind Kind) error {
	switch kind {
	case KindStudent:
		return ErrStudentNotFound
	case KindInstructor:
		return ErrInstructorNotFound
	case KindCourse:
		return ErrCourseNotFound
	}
	return ErrUnknownKind
}
