package inmemdb

import (
	"sync"

	"github.com/trezcool/roster/core/roster"
)

type (
	// DB holds the roster tables in insertion order.
	DB struct {
		roster *rosterTables
	}

	rosterTables struct {
		sync.RWMutex
		students    []roster.Student // Courses left nil; derived on read
		instructors []roster.Instructor
		courses     []courseRow
		enrollments []enrollment // registration order
	}

	courseRow struct {
		id, name   string
		instructor string
	}

	enrollment struct {
		studentID, courseID string
	}
)

func Open() (*DB, error) {
	db := &DB{
		roster: &rosterTables{},
	}
	return db, nil
}
