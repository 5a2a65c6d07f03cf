package terminal

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/classroll/rollcall/internal/datastore"
)

const (
	ansiReset  = "\x1b[0m"
	ansiBlue   = "\x1b[34m"
	ansiYellow = "\x1b[33m"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

// RenderClasses renders the numbered class menu.
func RenderClasses(classes []datastore.OfferedClass) string {
	rows := make([][]string, 0, len(classes))
	for i, c := range classes {
		teacher := "-"
		if c.TeacherID != nil {
			teacher = *c.TeacherID
		}
		rows = append(rows, []string{strconv.Itoa(i + 1), c.SubjectCode, c.SubjectName, c.SectionName, teacher})
	}
	return renderTable(
		[]string{"#", "Subject", "Name", "Section", "Teacher"},
		rows,
		[]columnAlignment{alignRight},
	)
}

// RenderSummary renders a closed or interrupted session and its marks.
func RenderSummary(s datastore.Session, class datastore.ClassRef, records []datastore.Attendance) string {
	end := "ongoing"
	if s.EndTime != nil {
		end = s.EndTime.Format(time.DateTime)
	}

	counts := map[datastore.AttendanceStatus]int{}
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		counts[r.AttendanceStatus]++
		rows = append(rows, []string{r.EnrollmentID, string(r.AttendanceStatus), r.MarkedAt.Format(time.TimeOnly)})
	}

	header := fmt.Sprintf("Session %s  %s (%s)\nStatus: %s  Started: %s  Ended: %s\nPresent: %d  Absent: %d  Excused: %d",
		s.UUID, class.SubjectCode, class.SectionName,
		s.Status, s.StartTime.Format(time.DateTime), end,
		counts[datastore.StatusPresent], counts[datastore.StatusAbsent], counts[datastore.StatusExcused])

	if len(rows) == 0 {
		return header + "\nNo attendance recorded."
	}
	return header + "\n" + renderTable([]string{"Enrollment ID", "Status", "Marked"}, rows, nil)
}

// RenderExcuseReasons renders the excuse reason catalog.
func RenderExcuseReasons(reasons []datastore.ExcuseReason) string {
	rows := make([][]string, 0, len(reasons))
	for _, r := range reasons {
		rows = append(rows, []string{strconv.FormatUint(uint64(r.ID), 10), r.Reason})
	}
	return renderTable([]string{"ID", "Reason"}, rows, []columnAlignment{alignRight})
}
