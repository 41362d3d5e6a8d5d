package config

import "testing"

func TestParseGradeTable(t *testing.T) {
	table, err := ParseGradeTable("90:A+,80:A,70:B,60:C,50:D,0:F")
	if err != nil {
		t.Fatalf("ParseGradeTable returned error: %v", err)
	}
	if len(table) != 6 {
		t.Fatalf("expected 6 bands, got %d", len(table))
	}
	if table[0].MinPercentage != 90 || table[0].Letter != "A+" {
		t.Errorf("first band = %+v, want {90 A+}", table[0])
	}
	if table[5].MinPercentage != 0 || table[5].Letter != "F" {
		t.Errorf("last band = %+v, want {0 F}", table[5])
	}
}

func TestParseGradeTableSortsDescending(t *testing.T) {
	table, err := ParseGradeTable("0:F,90:A,50:C")
	if err != nil {
		t.Fatalf("ParseGradeTable returned error: %v", err)
	}
	for i := 1; i < len(table); i++ {
		if table[i].MinPercentage > table[i-1].MinPercentage {
			t.Errorf("table not sorted descending at index %d: %v", i, table)
		}
	}
}

func TestParseGradeTableInvalid(t *testing.T) {
	for _, input := range []string{"", "abc", "90", "90:", "x:A"} {
		if _, err := ParseGradeTable(input); err == nil {
			t.Errorf("ParseGradeTable(%q) should fail", input)
		}
	}
}

func TestDefaultThresholdOrdering(t *testing.T) {
	cfg := Default()
	if cfg.HighConfidenceApprovalThreshold < cfg.ReviewConfidenceThreshold {
		t.Errorf("high-confidence threshold %v should not be below review threshold %v",
			cfg.HighConfidenceApprovalThreshold, cfg.ReviewConfidenceThreshold)
	}
	if cfg.GradingConcurrency <= 0 {
		t.Errorf("grading concurrency must be positive, got %d", cfg.GradingConcurrency)
	}
	if len(cfg.GradeTable) == 0 {
		t.Error("default grade table is empty")
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("REVIEW_CONFIDENCE_THRESHOLD", "0.85")
	t.Setenv("MIN_VERIFIED_SAMPLES", "5")
	t.Setenv("GRADE_TABLE", "70:PASS,0:FAIL")

	cfg := FromEnv()
	if cfg.ReviewConfidenceThreshold != 0.85 {
		t.Errorf("review threshold = %v, want 0.85", cfg.ReviewConfidenceThreshold)
	}
	if cfg.MinVerifiedSamples != 5 {
		t.Errorf("min verified samples = %d, want 5", cfg.MinVerifiedSamples)
	}
	if len(cfg.GradeTable) != 2 || cfg.GradeTable[0].Letter != "PASS" {
		t.Errorf("grade table = %v, want [{70 PASS} {0 FAIL}]", cfg.GradeTable)
	}
}

func TestFromEnvKeepsDefaultOnGarbage(t *testing.T) {
	t.Setenv("REVIEW_CONFIDENCE_THRESHOLD", "not-a-number")
	t.Setenv("GRADE_TABLE", ":::")

	cfg := FromEnv()
	def := Default()
	if cfg.ReviewConfidenceThreshold != def.ReviewConfidenceThreshold {
		t.Errorf("garbage env should keep default, got %v", cfg.ReviewConfidenceThreshold)
	}
	if len(cfg.GradeTable) != len(def.GradeTable) {
		t.Errorf("garbage grade table should keep default, got %v", cfg.GradeTable)
	}
}
