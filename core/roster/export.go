package roster

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/trezcool/roster/core"
)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

var ErrUnknownFormat = errors.New("unknown export format")

// ParseFormat accepts csv, json, yaml or yml; blank means csv.
func ParseFormat(s string) (Format, error) {
	switch core.CleanString(s, true /* lower */) {
	case "", "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", ErrUnknownFormat
}

func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatYAML:
		return "application/yaml"
	}
	return "text/csv"
}

// Filename returns the export file name for f, e.g. roster.csv.
func (f Format) Filename() string {
	return "roster." + string(f)
}

var csvHeader = []string{"Type", "Name", "ID", "Age", "Email/Course-ID"}

// Export writes every record to w in the given format.
func (svc *Service) Export(ctx context.Context, format Format, w io.Writer) error {
	doc, err := svc.Document(ctx)
	if err != nil {
		return err
	}

	switch format {
	case FormatCSV:
		return writeCSV(w, doc)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(doc), "encoding json export")
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return errors.Wrap(err, "encoding yaml export")
		}
		return errors.Wrap(enc.Close(), "encoding yaml export")
	}
	return ErrUnknownFormat
}

func writeCSV(w io.Writer, doc Document) error {
	cw := csv.NewWriter(w)
	rows := [][]string{csvHeader}
	for _, st := range doc.Students {
		rows = append(rows, []string{"Student", st.Name, st.ID, strconv.Itoa(st.Age), st.Email})
	}
	for _, ins := range doc.Instructors {
		rows = append(rows, []string{"Instructor", ins.Name, ins.ID, strconv.Itoa(ins.Age), ins.Email})
	}
	for _, c := range doc.Courses {
		rows = append(rows, []string{"Course", c.Name, c.ID, "", c.ID})
	}
	if err := cw.WriteAll(rows); err != nil {
		return errors.Wrap(err, "writing csv export")
	}
	return nil
}

// ErrNotImportable is returned when importing a format that does not carry the relations.
var ErrNotImportable = errors.New("only json and yaml documents can be imported")

// Import decodes a JSON or YAML document from r and replaces the whole roster with it.
// A malformed document is a validation error.
func (svc *Service) Import(ctx context.Context, format Format, r io.Reader) error {
	var doc Document
	switch format {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&doc); err != nil {
			return core.NewValidationError(errors.Wrap(err, "decoding json document"))
		}
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
			return core.NewValidationError(errors.Wrap(err, "decoding yaml document"))
		}
	case FormatCSV:
		return ErrNotImportable
	default:
		return ErrUnknownFormat
	}
	return svc.Restore(ctx, doc)
}
