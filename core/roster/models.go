package roster

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/trezcool/roster/core"
)

// Kind names one of the three record collections.
type Kind string

const (
	KindStudent    Kind = "student"
	KindInstructor Kind = "instructor"
	KindCourse     Kind = "course"
)

// Kinds lists every Kind in collection order.
var Kinds = []Kind{KindStudent, KindInstructor, KindCourse}

// ParseKind accepts singular or plural kind names, case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch core.CleanString(s, true /* lower */) {
	case "student", "students":
		return KindStudent, nil
	case "instructor", "instructors", "teacher", "teachers":
		return KindInstructor, nil
	case "course", "courses":
		return KindCourse, nil
	}
	return "", ErrUnknownKind
}

// Person holds the attributes shared by students and instructors.
type Person struct {
	Name  string `json:"name"`
	Age   int    `json:"age"`
	Email string `json:"email"`
}

type Student struct {
	Person
	ID      string   `json:"id"`
	Courses []string `json:"courses"` // registered course ids, in course order
}

type Instructor struct {
	Person
	ID      string   `json:"id"`
	Courses []string `json:"courses"` // assigned course ids, in course order
}

type Course struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Instructor string   `json:"instructor"` // instructor id, empty when unassigned
	Students   []string `json:"students"`   // enrolled student ids, in registration order
}

// Age is the raw age form field. JSON numbers and strings are both accepted;
// the "age" validation tag decides whether the value is usable.
type Age string

func (a *Age) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Age(s)
		return nil
	}
	*a = Age(data)
	return nil
}

// AgeOf formats n as an Age.
func AgeOf(n int) Age { return Age(strconv.Itoa(n)) }

// Int parses a validated Age.
func (a Age) Int() (int, error) {
	return strconv.Atoi(string(a))
}

// NewPerson contains the form fields needed to create a Student or an Instructor.
type NewPerson struct {
	Name  string `json:"name" validate:"notblank"`
	Age   Age    `json:"age" validate:"age"`
	Email string `json:"email" validate:"loose_email"`
	ID    string `json:"id" validate:"notblank"`
}

func (np *NewPerson) clean() {
	np.Name = core.CleanString(np.Name)
	np.Age = Age(core.CleanString(string(np.Age)))
	np.Email = core.CleanString(np.Email)
	np.ID = core.CleanString(np.ID)
}

// Validate cleans the fields and returns the validated Person.
func (np *NewPerson) Validate() (Person, error) {
	np.clean()
	if err := core.Validate.Struct(np); err != nil {
		return Person{}, err
	}
	age, err := np.Age.Int()
	if err != nil { // digits only, so this is an overflow
		return Person{}, core.NewValidationError(err, core.FieldError{Field: "age", Error: "age is out of range"})
	}
	return Person{Name: np.Name, Age: age, Email: np.Email}, nil
}

// UpdatePerson defines what may be changed on an existing Student or Instructor.
// Blank fields keep their current value; ids are immutable.
type UpdatePerson struct {
	Name  string `json:"name"`
	Age   Age    `json:"age"`
	Email string `json:"email"`
}

func (up UpdatePerson) merge(id string, orig Person) NewPerson {
	np := NewPerson{
		Name:  core.CleanString(up.Name),
		Age:   Age(core.CleanString(string(up.Age))),
		Email: core.CleanString(up.Email),
		ID:    id,
	}
	if np.Name == "" {
		np.Name = orig.Name
	}
	if np.Age == "" {
		np.Age = AgeOf(orig.Age)
	}
	if np.Email == "" {
		np.Email = orig.Email
	}
	return np
}

// NewCourse contains the form fields needed to create a Course.
type NewCourse struct {
	ID   string `json:"id" validate:"notblank"`
	Name string `json:"name" validate:"notblank"`
}

func (nc *NewCourse) Validate() error {
	nc.ID = core.CleanString(nc.ID)
	nc.Name = core.CleanString(nc.Name)
	return core.Validate.Struct(nc)
}

// UpdateCourse defines what may be changed on an existing Course.
type UpdateCourse struct {
	Name string `json:"name"`
}

// SearchResult groups matches per collection, each in insertion order.
type SearchResult struct {
	Students    []Student    `json:"students"`
	Instructors []Instructor `json:"instructors"`
	Courses     []Course     `json:"courses"`
}

func (r SearchResult) Len() int {
	return len(r.Students) + len(r.Instructors) + len(r.Courses)
}

// Counts is the number of records per collection.
type Counts struct {
	Students    int `json:"students"`
	Instructors int `json:"instructors"`
	Courses     int `json:"courses"`
}

func containsFold(s, lowerSubstr string) bool {
	return strings.Contains(strings.ToLower(s), lowerSubstr)
}
