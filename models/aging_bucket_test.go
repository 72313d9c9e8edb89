package models_test

import (
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/tally_backend/models"
	"github.com/shopspring/decimal"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAgingBucketIndexBoundaries(t *testing.T) {
	cases := []struct {
		ageDays int
		want    int
	}{
		{0, 0},
		{1, 0},
		{30, 0},
		{31, 1},
		{60, 1},
		{61, 2},
		{90, 2},
		{91, 3},
		{365, 3},
	}
	for _, tc := range cases {
		if got := models.AgingBucketIndex(tc.ageDays); got != tc.want {
			t.Errorf("AgingBucketIndex(%d) = %d, want %d", tc.ageDays, got, tc.want)
		}
	}
}

func TestAgingAgeDaysPrefersDueDate(t *testing.T) {
	asOf := day(2026, 3, 31)
	invoiceDate := day(2026, 1, 1)
	dueDate := day(2026, 3, 1)

	item := models.AgingItem{Date: invoiceDate, DueDate: &dueDate}
	if got := models.AgingAgeDays(asOf, item); got != 30 {
		t.Fatalf("age from due date = %d, want 30", got)
	}

	item.DueDate = nil
	if got := models.AgingAgeDays(asOf, item); got != 89 {
		t.Fatalf("age from document date = %d, want 89", got)
	}
}

func TestAgingAgeDaysFutureDueDateClampsToZero(t *testing.T) {
	asOf := day(2026, 3, 1)
	future := day(2026, 4, 15)
	item := models.AgingItem{Date: day(2026, 2, 1), DueDate: &future}
	if got := models.AgingAgeDays(asOf, item); got != 0 {
		t.Fatalf("future due date should age as 0, got %d", got)
	}
}

// A customer with one current invoice and one long-overdue invoice must land
// in exactly two buckets whose sum equals the total outstanding.
func TestAggregateAgingItemsBucketsSumToTotal(t *testing.T) {
	asOf := day(2026, 6, 30)
	due1 := day(2026, 6, 20)  // 10 days old
	due2 := day(2026, 2, 1)   // 149 days old

	items := []models.AgingItem{
		{PartyName: "Acme Corp", EntityType: models.EntityTypeCustomer, Date: day(2026, 6, 1), DueDate: &due1, Outstanding: decimal.NewFromInt(100)},
		{PartyName: "Acme Corp", EntityType: models.EntityTypeCustomer, Date: day(2026, 1, 1), DueDate: &due2, Outstanding: decimal.NewFromInt(50)},
	}

	aggs := models.AggregateAgingItems(items, asOf)
	if len(aggs) != 1 {
		t.Fatalf("expected 1 aggregate, got %d", len(aggs))
	}
	agg := aggs[0]

	if !agg.Buckets[0].Equal(decimal.NewFromInt(100)) {
		t.Errorf("bucket 0-30 = %s, want 100", agg.Buckets[0])
	}
	if !agg.Buckets[1].IsZero() || !agg.Buckets[2].IsZero() {
		t.Errorf("middle buckets must be empty, got %s / %s", agg.Buckets[1], agg.Buckets[2])
	}
	if !agg.Buckets[3].Equal(decimal.NewFromInt(50)) {
		t.Errorf("bucket 90+ = %s, want 50", agg.Buckets[3])
	}

	sum := decimal.Zero
	for _, b := range agg.Buckets {
		sum = sum.Add(b)
	}
	if !sum.Equal(agg.Total) || !agg.Total.Equal(decimal.NewFromInt(150)) {
		t.Errorf("bucket sum %s / total %s, want both 150", sum, agg.Total)
	}
}

func TestAggregateAgingItemsSeparatesEntityTypes(t *testing.T) {
	asOf := day(2026, 6, 30)
	items := []models.AgingItem{
		{PartyName: "Omega Traders", EntityType: models.EntityTypeCustomer, Date: day(2026, 6, 25), Outstanding: decimal.NewFromInt(10)},
		{PartyName: "Omega Traders", EntityType: models.EntityTypeVendor, Date: day(2026, 6, 25), Outstanding: decimal.NewFromInt(20)},
	}

	aggs := models.AggregateAgingItems(items, asOf)
	if len(aggs) != 2 {
		t.Fatalf("same name across entity types must stay separate, got %d aggregates", len(aggs))
	}
}

func TestAggregateAgingItemsDeterministicOrder(t *testing.T) {
	asOf := day(2026, 6, 30)
	items := []models.AgingItem{
		{PartyName: "Zeta", EntityType: models.EntityTypeCustomer, Date: asOf, Outstanding: decimal.NewFromInt(1)},
		{PartyName: "Alpha", EntityType: models.EntityTypeCustomer, Date: asOf, Outstanding: decimal.NewFromInt(1)},
		{PartyName: "Mid", EntityType: models.EntityTypeVendor, Date: asOf, Outstanding: decimal.NewFromInt(1)},
	}

	first := models.AggregateAgingItems(items, asOf)
	second := models.AggregateAgingItems([]models.AgingItem{items[2], items[0], items[1]}, asOf)

	if len(first) != len(second) {
		t.Fatalf("aggregate counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].PartyName != second[i].PartyName || first[i].EntityType != second[i].EntityType {
			t.Fatalf("order not deterministic at %d: %s/%s vs %s/%s",
				i, first[i].PartyName, first[i].EntityType, second[i].PartyName, second[i].EntityType)
		}
	}
}
