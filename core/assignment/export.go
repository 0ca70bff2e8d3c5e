package assignment

import (
	"encoding/csv"
	"io"
	"sort"
	"strings"
)

const exportStudentColumn = "student"

// WriteCSV pivots rows into one line per entry: the wwuid, then the raw input for each task in tasks.
// Tasks are sorted by name; unanswered cells are left empty and lines are sorted by wwuid, then entry.
func WriteCSV(w io.Writer, tasks []string, rows []ExportRow) error {
	header := append([]string(nil), tasks...)
	sort.Strings(header)
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i + 1
	}
	header = append([]string{exportStudentColumn}, header...)

	type exportLine struct {
		entryID int64
		cells   []string
	}
	var order []*exportLine
	lines := make(map[int64]*exportLine)
	for _, r := range rows {
		line, ok := lines[r.EntryID]
		if !ok {
			line = &exportLine{entryID: r.EntryID, cells: make([]string, len(header))}
			line.cells[0] = r.WWUID
			lines[r.EntryID] = line
			order = append(order, line)
		}
		if !r.Task.Valid {
			continue
		}
		if i, ok := col[r.Task.String]; ok {
			line.cells[i] = r.RawInput.String
		}
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i].cells[0] != order[j].cells[0] {
			return order[i].cells[0] < order[j].cells[0]
		}
		return order[i].entryID < order[j].entryID
	})

	cw := csv.NewWriter(w)
	cw.UseCRLF = true
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, line := range order {
		if err := cw.Write(line.cells); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportFilename is the attachment name of an assignment export.
func ExportFilename(template, group, term string) string {
	name := strings.Join([]string{template, group, term}, "-")
	// keep the Content-Disposition header well-formed
	name = strings.NewReplacer(`"`, "", "\\", "", "/", "_", "\r", "", "\n", "").Replace(name)
	return name + ".csv"
}
