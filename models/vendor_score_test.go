package models_test

import (
	"testing"

	"bitbucket.org/mmdatafocus/tally_backend/models"
	"github.com/shopspring/decimal"
)

func TestReliabilityScoreSteps(t *testing.T) {
	cases := []struct {
		pct  float64
		want float64
	}{
		{100, 100},
		{90, 100},
		{89.9, 80},
		{75, 80},
		{74.9, 60},
		{50, 60},
		{49.9, 40},
		{25, 40},
		{24.9, 20},
		{0, 20},
	}
	for _, tc := range cases {
		if got := models.ReliabilityScore(tc.pct); got != tc.want {
			t.Errorf("ReliabilityScore(%v) = %v, want %v", tc.pct, got, tc.want)
		}
	}
}

func TestPaymentHistoryScoreSteps(t *testing.T) {
	cases := []struct {
		count int
		want  float64
	}{
		{150, 100},
		{100, 100},
		{99, 80},
		{50, 80},
		{49, 60},
		{20, 60},
		{19, 40},
		{5, 40},
		{4, 20},
		{0, 20},
	}
	for _, tc := range cases {
		if got := models.PaymentHistoryScore(tc.count); got != tc.want {
			t.Errorf("PaymentHistoryScore(%d) = %v, want %v", tc.count, got, tc.want)
		}
	}
}

func TestVolumeScoreSteps(t *testing.T) {
	cases := []struct {
		amount int64
		want   float64
	}{
		{25_000_000, 100},
		{10_000_000, 100},
		{9_999_999, 80},
		{1_000_000, 80},
		{999_999, 60},
		{100_000, 60},
		{99_999, 40},
		{10_000, 40},
		{9_999, 20},
		{0, 20},
	}
	for _, tc := range cases {
		if got := models.VolumeScore(decimal.NewFromInt(tc.amount)); got != tc.want {
			t.Errorf("VolumeScore(%d) = %v, want %v", tc.amount, got, tc.want)
		}
	}
}

func TestOverallScoreIsMean(t *testing.T) {
	if got := models.OverallScore(100, 80, 60); !got.Equal(decimal.NewFromInt(80)) {
		t.Errorf("OverallScore(100,80,60) = %s, want 80", got)
	}
	if got := models.OverallScore(100, 100, 80); got.String() != "93.33" {
		t.Errorf("OverallScore(100,100,80) = %s, want 93.33", got)
	}
}

func TestComputeRiskLevelThresholds(t *testing.T) {
	cases := []struct {
		onTimePct float64
		volume    float64
		want      models.RiskLevel
	}{
		{100, 100, models.RiskLevelLow},    // blend 100
		{90, 40, models.RiskLevelLow},      // blend 70, boundary
		{80, 20, models.RiskLevelMedium},   // blend 56
		{40, 40, models.RiskLevelMedium},   // blend 40, boundary
		{30, 40, models.RiskLevelHigh},     // blend 34
		{0, 20, models.RiskLevelHigh},      // blend 8
	}
	for _, tc := range cases {
		if got := models.ComputeRiskLevel(tc.onTimePct, tc.volume); got != tc.want {
			t.Errorf("ComputeRiskLevel(%v, %v) = %s, want %s", tc.onTimePct, tc.volume, got, tc.want)
		}
	}
}

// Risk is not derived from the overall score: a vendor with a strong overall
// score (big history and volume) but poor on-time behavior must still
// classify as high risk.
func TestRiskDivergesFromOverallScore(t *testing.T) {
	onTimePct := 10.0
	reliability := models.ReliabilityScore(onTimePct)
	history := models.PaymentHistoryScore(200)
	volume := models.VolumeScore(decimal.NewFromInt(50_000_000))

	overall := models.OverallScore(reliability, history, volume)
	if overall.LessThan(decimal.NewFromInt(70)) {
		t.Fatalf("scenario setup: overall %s should be strong", overall)
	}

	// blend = 0.6*10 + 0.4*100 = 46 -> medium, despite overall 73.33
	if got := models.ComputeRiskLevel(onTimePct, volume); got == models.RiskLevelLow {
		t.Errorf("risk = %s, must not be low for a chronically late payer", got)
	}
}
