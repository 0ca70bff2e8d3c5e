package assignment

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
)

func TestWriteCSV(t *testing.T) {
	row := func(entryID int64, wwuid, task, input string) ExportRow {
		r := ExportRow{EntryID: entryID, WWUID: wwuid}
		if task != "" {
			r.Task = null.StringFrom(task)
			r.RawInput = null.StringFrom(input)
		}
		return r
	}

	tests := []struct {
		name  string
		tasks []string
		rows  []ExportRow
		want  string
	}{
		{
			name:  "no entries",
			tasks: []string{"pH", "Mass"},
			want:  "student,Mass,pH\r\n",
		},
		{
			name:  "pivot",
			tasks: []string{"pH", "Mass", "Color"},
			rows: []ExportRow{
				row(1, "1234567", "pH", "7.0"),
				row(2, "0000001", "Mass", "12.5"),
				row(1, "1234567", "Color", "light pink"),
				row(2, "0000001", "pH", "6,9"),
				row(3, "7654321", "", ""),
			},
			want: "student,Color,Mass,pH\r\n" +
				"0000001,,12.5,\"6,9\"\r\n" +
				"1234567,light pink,,7.0\r\n" +
				"7654321,,,\r\n",
		},
		{
			name:  "task no longer in template",
			tasks: []string{"pH"},
			rows:  []ExportRow{row(1, "1234567", "Removed", "x"), row(1, "1234567", "pH", "7")},
			want:  "student,pH\r\n1234567,7\r\n",
		},
		{
			name:  "students sharing a wwuid",
			tasks: []string{"mass"},
			rows:  []ExportRow{row(9, "1234567", "mass", "9"), row(4, "1234567", "mass", "7"), row(5, "0000001", "", "")},
			want:  "student,mass\r\n0000001,\r\n1234567,7\r\n1234567,9\r\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteCSV(&buf, tt.tasks, tt.rows))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestExportFilename(t *testing.T) {
	assert.Equal(t, "Titration-A1-FALL2026.csv", ExportFilename("Titration", "A1", "FALL2026"))
	assert.Equal(t, "Acid_Base-A1-FALL2026.csv", ExportFilename(`Acid/"Base"`, "A1", "FALL2026"))
}
