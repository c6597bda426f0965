package models

// Table is the flat exchange format handed to storage collaborators.
type Table struct {
	Name    string     `json:"name"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Column returns the values of one column, or nil if it is not declared.
func (t *Table) Column(name string) []string {
	idx := -1

	for i, c := range t.Columns {
		if c == name {
			idx = i
			break
		}
	}

	if idx < 0 {
		return nil
	}

	values := make([]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		if idx < len(row) {
			values = append(values, row[idx])
		} else {
			values = append(values, "")
		}
	}

	return values
}
