package scoring

import (
	"math"
	"strings"
	"testing"
	"time"
)

func series(start time.Time, values ...float64) []Point {
	pts := make([]Point, len(values))
	for i, v := range values {
		pts[i] = Point{Date: start.AddDate(0, 0, i), Value: v}
	}
	return pts
}

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestComparePerfectMatch(t *testing.T) {
	values := make([]float64, 40)
	for i := range values {
		values[i] = 3 + math.Sin(float64(i)/5)
	}
	ref := series(start, values...)

	st := Compare(ref, ref, 30)
	if !st.Valid {
		t.Fatalf("not valid: %s", st.Reason)
	}
	if st.Days != 40 {
		t.Errorf("Days = %d, want 40", st.Days)
	}

	closeTo := func(name string, got, want float64) {
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("%s = %v, want %v", name, got, want)
		}
	}
	closeTo("MAE", st.MAE, 0)
	closeTo("RMSE", st.RMSE, 0)
	closeTo("Bias", st.Bias, 0)
	closeTo("R2", st.R2, 1)
	closeTo("KGE", st.KGE, 1)
	closeTo("NSE", st.NSE, 1)
	closeTo("PBias", st.PBias, 0)
}

func TestCompareConstantOffset(t *testing.T) {
	// Reference alternates 2 and 4; computed is reference + 0.5 throughout.
	refValues := make([]float64, 40)
	compValues := make([]float64, 40)
	for i := range refValues {
		refValues[i] = 2 + float64(i%2)*2
		compValues[i] = refValues[i] + 0.5
	}

	st := Compare(series(start, compValues...), series(start, refValues...), 30)
	if !st.Valid {
		t.Fatalf("not valid: %s", st.Reason)
	}

	closeTo := func(name string, got, want float64) {
		if math.Abs(got-want) > 1e-6 {
			t.Errorf("%s = %v, want %v", name, got, want)
		}
	}
	closeTo("MAE", st.MAE, 0.5)
	closeTo("RMSE", st.RMSE, 0.5)
	closeTo("Bias", st.Bias, 0.5)
	closeTo("R2", st.R2, 1)
	// corr 1, alpha 1, so only the bias ratio beta = 3.5/3 degrades KGE.
	closeTo("KGE", st.KGE, 1-0.5/3)
	closeTo("NSE", st.NSE, 0.75)
	closeTo("PBias", st.PBias, 100*0.5/3)
}

func TestCompareInnerJoin(t *testing.T) {
	// Computed extends beyond the reference window and contains a duplicate
	// day; only the 30 overlapping unique days count.
	refValues := make([]float64, 30)
	compValues := make([]float64, 45)
	for i := range refValues {
		refValues[i] = 3 + float64(i%3)
	}
	for i := range compValues {
		compValues[i] = 3 + float64(i%3)
	}
	computed := series(start, compValues...)
	computed = append(computed, Point{Date: start, Value: 99})

	st := Compare(computed, series(start, refValues...), 30)
	if !st.Valid {
		t.Fatalf("not valid: %s", st.Reason)
	}
	if st.Days != 30 {
		t.Errorf("Days = %d, want 30", st.Days)
	}
	if st.MAE != 0 {
		t.Errorf("MAE = %v, want 0 (duplicate day should not shadow the first value)", st.MAE)
	}
}

func TestCompareTooLittleOverlap(t *testing.T) {
	computed := series(start, 1, 2, 3, 4, 5)
	reference := series(start, 1, 2, 3, 4, 5)

	st := Compare(computed, reference, 0)
	if st.Valid {
		t.Fatal("5 days should not satisfy the default minimum of 30")
	}
	if !strings.Contains(st.Reason, "only 5 overlapping day(s), need at least 30") {
		t.Errorf("unexpected reason %q", st.Reason)
	}
	if st.Days != 0 || st.MAE != 0 || st.KGE != 0 {
		t.Error("invalid result should carry no statistics")
	}

	if st := Compare(computed, reference, 5); !st.Valid {
		t.Errorf("explicit minimum of 5 should accept 5 days: %s", st.Reason)
	}
}

func TestCompareDisjointDates(t *testing.T) {
	computed := series(start, 1, 2, 3)
	reference := series(start.AddDate(0, 1, 0), 1, 2, 3)

	st := Compare(computed, reference, 1)
	if st.Valid {
		t.Error("no overlapping dates should be invalid")
	}
}

func TestCompareConstantSeriesCorrelation(t *testing.T) {
	// A flat computed series has zero variance; correlation is defined as 0
	// instead of NaN.
	refValues := make([]float64, 35)
	for i := range refValues {
		refValues[i] = 2 + float64(i%2)
	}
	flat := make([]float64, 35)
	for i := range flat {
		flat[i] = 3
	}

	st := Compare(series(start, flat...), series(start, refValues...), 30)
	if !st.Valid {
		t.Fatalf("not valid: %s", st.Reason)
	}
	if math.IsNaN(st.R2) || math.IsNaN(st.KGE) {
		t.Errorf("statistics must stay finite: R2=%v KGE=%v", st.R2, st.KGE)
	}
	if st.R2 != 0 {
		t.Errorf("R2 = %v, want 0 for a flat series", st.R2)
	}
}
