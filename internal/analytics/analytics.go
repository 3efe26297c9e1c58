package analytics

import (
	"sort"
	"time"

	"qrattend/internal/attendance"
	"qrattend/internal/student"
)

// DepartmentStat is per-department attendance over a full ledger snapshot.
type DepartmentStat struct {
	Department     string `json:"department"`
	TotalStudents  int    `json:"total_students"`
	TotalRecords   int    `json:"total_records"`
	PresentRecords int    `json:"present_records"`
	Percentage     int    `json:"percentage"`
}

// MonthBucket is one month of the attendance trend.
type MonthBucket struct {
	Key        string `json:"key"`   // YYYY-MM
	Month      string `json:"month"` // short name, e.g. "Jan"
	Total      int    `json:"total"`
	Present    int    `json:"present"`
	Percentage int    `json:"percentage"`
}

// Standing pairs a student with their ledger stats.
type Standing struct {
	Student student.Student  `json:"student"`
	Stats   attendance.Stats `json:"stats"`
}

// Overview is the dashboard headline row.
type Overview struct {
	TotalStudents     int `json:"total_students"`
	TotalRecords      int `json:"total_records"`
	PresentRecords    int `json:"present_records"`
	AverageAttendance int `json:"average_attendance"`
}

// LowAttendanceCutoff is the percentage below which a student counts as a
// low attendee.
const LowAttendanceCutoff = 75

const rankingSize = 5

// DepartmentStats groups records by the department of their referenced
// student. Departments with students but no records still appear, at
// percentage 0. Output order follows first appearance in the roster snapshot
// (which lists students name-ascending).
func DepartmentStats(students []student.Student, records []attendance.Record) []DepartmentStat {
	byDept := make(map[string]*DepartmentStat)
	var order []string

	for _, s := range students {
		if s.Department == "" {
			continue
		}
		d, ok := byDept[s.Department]
		if !ok {
			d = &DepartmentStat{Department: s.Department}
			byDept[s.Department] = d
			order = append(order, s.Department)
		}
		d.TotalStudents++
	}

	deptOf := make(map[string]string, len(students))
	for _, s := range students {
		deptOf[s.ID] = s.Department
	}

	for _, rec := range records {
		dept := deptOf[rec.StudentID]
		if dept == "" && rec.Student != nil {
			dept = rec.Student.Department
		}
		d, ok := byDept[dept]
		if !ok {
			continue
		}
		d.TotalRecords++
		if rec.Status == attendance.StatusPresent {
			d.PresentRecords++
		}
	}

	res := make([]DepartmentStat, 0, len(order))
	for _, name := range order {
		d := byDept[name]
		d.Percentage = attendance.Percentage(d.PresentRecords, d.TotalRecords)
		res = append(res, *d)
	}
	return res
}

// MonthlyTrend buckets records by calendar month into a fixed window of the
// most recent `window` months ending at now's month, oldest first. Months
// with no records report zeros; records outside the window are ignored.
func MonthlyTrend(records []attendance.Record, window int, now time.Time) []MonthBucket {
	if window <= 0 {
		window = 6
	}

	base := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	buckets := make([]MonthBucket, 0, window)
	index := make(map[string]int, window)
	for i := window - 1; i >= 0; i-- {
		m := base.AddDate(0, -i, 0)
		key := m.Format("2006-01")
		index[key] = len(buckets)
		buckets = append(buckets, MonthBucket{Key: key, Month: m.Format("Jan")})
	}

	for _, rec := range records {
		if len(rec.Date) < 7 {
			continue
		}
		i, ok := index[rec.Date[:7]]
		if !ok {
			continue
		}
		buckets[i].Total++
		if rec.Status == attendance.StatusPresent {
			buckets[i].Present++
		}
	}

	for i := range buckets {
		buckets[i].Percentage = attendance.Percentage(buckets[i].Present, buckets[i].Total)
	}
	return buckets
}

// Standings derives per-student stats from full snapshots. Output order
// follows the roster snapshot, so later stable sorts break ties by name.
func Standings(students []student.Student, records []attendance.Record) []Standing {
	total := make(map[string]int, len(students))
	present := make(map[string]int, len(students))
	for _, rec := range records {
		total[rec.StudentID]++
		if rec.Status == attendance.StatusPresent {
			present[rec.StudentID]++
		}
	}

	res := make([]Standing, 0, len(students))
	for _, s := range students {
		t, p := total[s.ID], present[s.ID]
		res = append(res, Standing{
			Student: s,
			Stats: attendance.Stats{
				Total:      t,
				Present:    p,
				Absent:     t - p,
				Percentage: attendance.Percentage(p, t),
			},
		})
	}
	return res
}

// PerformanceRanking splits standings into the top five by percentage and
// the bottom five under the low-attendance cutoff. Students with no records
// appear in neither list. Sorts are stable, so ties keep input order.
func PerformanceRanking(standings []Standing) (top, low []Standing) {
	for _, st := range standings {
		if st.Stats.Total == 0 {
			continue
		}
		top = append(top, st)
		if st.Stats.Percentage < LowAttendanceCutoff {
			low = append(low, st)
		}
	}

	sort.SliceStable(top, func(i, j int) bool {
		return top[i].Stats.Percentage > top[j].Stats.Percentage
	})
	sort.SliceStable(low, func(i, j int) bool {
		return low[i].Stats.Percentage < low[j].Stats.Percentage
	})

	if len(top) > rankingSize {
		top = top[:rankingSize]
	}
	if len(low) > rankingSize {
		low = low[:rankingSize]
	}
	return top, low
}

// ComputeOverview derives the headline totals from full snapshots.
func ComputeOverview(students []student.Student, records []attendance.Record) Overview {
	present := 0
	for _, rec := range records {
		if rec.Status == attendance.StatusPresent {
			present++
		}
	}
	return Overview{
		TotalStudents:     len(students),
		TotalRecords:      len(records),
		PresentRecords:    present,
		AverageAttendance: attendance.Percentage(present, len(records)),
	}
}
