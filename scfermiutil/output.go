/*
Copyright © 2025 the SCFermi authors.
This file is part of SCFermi.

SCFermi is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

SCFermi is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with SCFermi.  If not, see <http://www.gnu.org/licenses/>.
*/

package scfermiutil

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/materialsmodel/scfermi"
)

// WriteTable writes a result table as CSV: a "Defect" column followed by
// the table's columns in order. Cells absent from a row are left empty.
func WriteTable(w io.Writer, t *scfermi.Table) error {
	cw := csv.NewWriter(w)
	cols := t.Columns()
	if err := cw.Write(append([]string{"Defect"}, cols...)); err != nil {
		return fmt.Errorf("scfermiutil: problem writing results: %v", err)
	}
	record := make([]string, len(cols)+1)
	for _, row := range t.Rows() {
		record[0] = row.Defect
		for i, col := range cols {
			if v, ok := row.Values[col]; ok {
				record[i+1] = strconv.FormatFloat(v, 'g', -1, 64)
			} else {
				record[i+1] = ""
			}
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("scfermiutil: problem writing results: %v", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("scfermiutil: problem writing results: %v", err)
	}
	return nil
}

// WriteTableFile writes a result table to a CSV file.
func WriteTableFile(path string, t *scfermi.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("scfermiutil: problem creating output file: %v", err)
	}
	if err := WriteTable(f, t); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
