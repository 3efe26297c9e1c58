package analytics

import (
	"testing"
	"time"

	"qrattend/internal/attendance"
	"qrattend/internal/student"
)

func rec(studentID, date, status string) attendance.Record {
	return attendance.Record{StudentID: studentID, Date: date, Status: status}
}

func TestDepartmentStatsZeroRecords(t *testing.T) {
	students := []student.Student{
		{ID: "1", Name: "A", Department: "CS"},
		{ID: "2", Name: "B", Department: "EE"},
		{ID: "3", Name: "C", Department: "EE"},
	}
	records := []attendance.Record{
		rec("1", "2025-03-10", "present"),
		rec("1", "2025-03-11", "absent"),
	}

	stats := DepartmentStats(students, records)
	if len(stats) != 2 {
		t.Fatalf("expected 2 departments, got %d", len(stats))
	}

	cs, ee := stats[0], stats[1]
	if cs.Department != "CS" || cs.TotalStudents != 1 || cs.TotalRecords != 2 || cs.PresentRecords != 1 || cs.Percentage != 50 {
		t.Errorf("CS stats wrong: %+v", cs)
	}
	// Department with students but no records appears with percentage 0,
	// not a division error.
	if ee.Department != "EE" || ee.TotalStudents != 2 || ee.TotalRecords != 0 || ee.Percentage != 0 {
		t.Errorf("EE stats wrong: %+v", ee)
	}
}

func TestMonthlyTrendFixedWindow(t *testing.T) {
	now := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
	records := []attendance.Record{
		rec("1", "2025-03-01", "present"),
		rec("1", "2025-03-02", "absent"),
		rec("1", "2025-01-10", "present"),
		rec("1", "2024-06-01", "present"), // outside window, ignored
	}

	trend := MonthlyTrend(records, 6, now)
	if len(trend) != 6 {
		t.Fatalf("expected exactly 6 buckets, got %d", len(trend))
	}
	if trend[0].Key != "2024-10" || trend[5].Key != "2025-03" {
		t.Errorf("window bounds wrong: first=%s last=%s", trend[0].Key, trend[5].Key)
	}
	if trend[0].Month != "Oct" || trend[5].Month != "Mar" {
		t.Errorf("month labels wrong: %s..%s", trend[0].Month, trend[5].Month)
	}

	// Zero months report zeros.
	if trend[1].Total != 0 || trend[1].Percentage != 0 {
		t.Errorf("empty month not zeroed: %+v", trend[1])
	}

	jan, mar := trend[3], trend[5]
	if jan.Total != 1 || jan.Present != 1 || jan.Percentage != 100 {
		t.Errorf("january wrong: %+v", jan)
	}
	if mar.Total != 2 || mar.Present != 1 || mar.Percentage != 50 {
		t.Errorf("march wrong: %+v", mar)
	}
}

func TestMonthlyTrendYearBoundary(t *testing.T) {
	now := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	trend := MonthlyTrend(nil, 3, now)
	if len(trend) != 3 {
		t.Fatalf("expected 3 buckets, got %d", len(trend))
	}
	want := []string{"2024-11", "2024-12", "2025-01"}
	for i, k := range want {
		if trend[i].Key != k {
			t.Errorf("bucket %d key = %s, want %s", i, trend[i].Key, k)
		}
	}
}

func standingsFixture() []Standing {
	mk := func(id, name string, present, total int) Standing {
		return Standing{
			Student: student.Student{ID: id, Name: name},
			Stats: attendance.Stats{
				Total:      total,
				Present:    present,
				Absent:     total - present,
				Percentage: attendance.Percentage(present, total),
			},
		}
	}
	return []Standing{
		mk("1", "A", 9, 10),  // 90
		mk("2", "B", 6, 10),  // 60
		mk("3", "C", 0, 0),   // no records
		mk("4", "D", 10, 10), // 100
		mk("5", "E", 4, 10),  // 40
		mk("6", "F", 8, 10),  // 80
	}
}

func TestPerformanceRanking(t *testing.T) {
	top, low := PerformanceRanking(standingsFixture())

	for _, st := range append(append([]Standing{}, top...), low...) {
		if st.Stats.Total == 0 {
			t.Errorf("student %s with no records ranked", st.Student.ID)
		}
	}

	wantTop := []string{"4", "1", "6", "2", "5"}
	if len(top) != len(wantTop) {
		t.Fatalf("top size = %d, want %d", len(top), len(wantTop))
	}
	for i, id := range wantTop {
		if top[i].Student.ID != id {
			t.Errorf("top[%d] = %s, want %s", i, top[i].Student.ID, id)
		}
	}

	wantLow := []string{"5", "2"}
	if len(low) != len(wantLow) {
		t.Fatalf("low size = %d, want %d", len(low), len(wantLow))
	}
	for i, id := range wantLow {
		if low[i].Student.ID != id {
			t.Errorf("low[%d] = %s, want %s", i, low[i].Student.ID, id)
		}
		if low[i].Stats.Percentage >= LowAttendanceCutoff {
			t.Errorf("low includes %s at %d%%", low[i].Student.ID, low[i].Stats.Percentage)
		}
	}
}

func TestStandingsFromSnapshots(t *testing.T) {
	students := []student.Student{
		{ID: "1", Name: "A"},
		{ID: "2", Name: "B"},
	}
	records := []attendance.Record{
		rec("1", "2025-03-01", "present"),
		rec("1", "2025-03-02", "present"),
		rec("1", "2025-03-03", "absent"),
	}

	standings := Standings(students, records)
	if len(standings) != 2 {
		t.Fatalf("expected 2 standings, got %d", len(standings))
	}
	if s := standings[0].Stats; s.Total != 3 || s.Present != 2 || s.Percentage != 67 {
		t.Errorf("standings[0] stats wrong: %+v", s)
	}
	if s := standings[1].Stats; s.Total != 0 || s.Percentage != 0 {
		t.Errorf("standings[1] stats wrong: %+v", s)
	}
}

func TestComputeOverview(t *testing.T) {
	students := []student.Student{{ID: "1"}, {ID: "2"}}
	records := []attendance.Record{
		rec("1", "2025-03-01", "present"),
		rec("2", "2025-03-01", "absent"),
		rec("1", "2025-03-02", "present"),
	}

	o := ComputeOverview(students, records)
	if o.TotalStudents != 2 || o.TotalRecords != 3 || o.PresentRecords != 2 || o.AverageAttendance != 67 {
		t.Errorf("overview wrong: %+v", o)
	}

	empty := ComputeOverview(nil, nil)
	if empty.AverageAttendance != 0 {
		t.Errorf("empty overview percentage = %d, want 0", empty.AverageAttendance)
	}
}
