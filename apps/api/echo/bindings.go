package echoapi

import (
	"net/http"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/roster/core/roster"
)

const orderingParam = "ordering"

var (
	personOrderFields = []string{"id", "name", "age", "email"}
	courseOrderFields = []string{"id", "name", "instructor"}
)

type orderField struct {
	Field     string
	Ascending bool
}

// Ordering holds the list ordering requested with ?ordering=name,-age.
// Lists keep insertion order when no ordering is given.
type Ordering struct {
	Fields []orderField
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.ToLower(strings.TrimSpace(field))
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Fields = append(ord.Fields, orderField{Field: field, Ascending: !descending})
	}
}

func (ord *Ordering) check(allowed []string) error {
outer:
	for _, f := range ord.Fields {
		for _, a := range allowed {
			if f.Field == a {
				continue outer
			}
		}
		return echo.NewHTTPError(http.StatusBadRequest, "cannot order by "+f.Field)
	}
	return nil
}

// less builds a sort.SliceStable less func out of a per-field comparison.
func (ord *Ordering) less(cmp func(field string, i, j int) int) func(i, j int) bool {
	return func(i, j int) bool {
		for _, f := range ord.Fields {
			if c := cmp(f.Field, i, j); c != 0 {
				return (c < 0) == f.Ascending
			}
		}
		return false
	}
}

func compareStrings(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

func comparePeople(field string, a, b roster.Person, aID, bID string) int {
	switch field {
	case "id":
		return compareStrings(aID, bID)
	case "name":
		return compareStrings(a.Name, b.Name)
	case "email":
		return compareStrings(a.Email, b.Email)
	case "age":
		return a.Age - b.Age
	}
	return 0
}

func (ord *Ordering) SortStudents(list []roster.Student) error {
	if err := ord.check(personOrderFields); err != nil {
		return err
	}
	sort.SliceStable(list, ord.less(func(field string, i, j int) int {
		return comparePeople(field, list[i].Person, list[j].Person, list[i].ID, list[j].ID)
	}))
	return nil
}

func (ord *Ordering) SortInstructors(list []roster.Instructor) error {
	if err := ord.check(personOrderFields); err != nil {
		return err
	}
	sort.SliceStable(list, ord.less(func(field string, i, j int) int {
		return comparePeople(field, list[i].Person, list[j].Person, list[i].ID, list[j].ID)
	}))
	return nil
}

func (ord *Ordering) SortCourses(list []roster.Course) error {
	if err := ord.check(courseOrderFields); err != nil {
		return err
	}
	sort.SliceStable(list, ord.less(func(field string, i, j int) int {
		switch field {
		case "id":
			return compareStrings(list[i].ID, list[j].ID)
		case "name":
			return compareStrings(list[i].Name, list[j].Name)
		case "instructor":
			return compareStrings(list[i].Instructor, list[j].Instructor)
		}
		return 0
	}))
	return nil
}
