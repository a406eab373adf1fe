package export

import "fmt"

// Dataset defines one tabular section of an export.
type Dataset struct {
	Name    string
	Headers []string
	Rows    []map[string]string
}

// Field is a labelled summary value rendered above the tables.
type Field struct {
	Label string
	Value string
}

// Report groups a title, summary fields and tabular sections.
type Report struct {
	Title    string
	Summary  []Field
	Datasets []Dataset
}

// Renderer turns a report into bytes of a single file format.
type Renderer interface {
	Render(report Report) ([]byte, error)
	ContentType() string
	Extension() string
}

func validate(report Report) error {
	if len(report.Datasets) == 0 && len(report.Summary) == 0 {
		return fmt.Errorf("report has no content")
	}
	for _, ds := range report.Datasets {
		if len(ds.Headers) == 0 {
			return fmt.Errorf("dataset %q requires at least one header", ds.Name)
		}
	}
	return nil
}
