package models

import "testing"

func TestPlanDailyLimit(t *testing.T) {
	tests := []struct {
		plan Plan
		want int
	}{
		{PlanFree, 50},
		{PlanBasic, 1000},
		{PlanPro, 10000},
		{PlanEnterprise, 50000},
		{Plan("legacy-gold"), 50}, // unknown plans fall back to free
		{Plan(""), 50},
	}

	for _, tt := range tests {
		if got := tt.plan.DailyLimit(); got != tt.want {
			t.Errorf("DailyLimit(%q) = %d, want %d", tt.plan, got, tt.want)
		}
	}
}

func TestPlanMaxAPIKeys(t *testing.T) {
	tests := []struct {
		plan Plan
		want int
	}{
		{PlanFree, 1},
		{PlanBasic, 3},
		{PlanPro, 10},
		{PlanEnterprise, -1},
		{Plan("unknown"), 1},
	}

	for _, tt := range tests {
		if got := tt.plan.MaxAPIKeys(); got != tt.want {
			t.Errorf("MaxAPIKeys(%q) = %d, want %d", tt.plan, got, tt.want)
		}
	}
}

func TestPlanAllowsCustomKeys(t *testing.T) {
	if PlanFree.AllowsCustomKeys() || PlanBasic.AllowsCustomKeys() {
		t.Error("free and basic plans must not allow custom keys")
	}
	if !PlanPro.AllowsCustomKeys() || !PlanEnterprise.AllowsCustomKeys() {
		t.Error("pro and enterprise plans must allow custom keys")
	}
}

func TestPriceFor(t *testing.T) {
	if _, ok := PriceFor(PlanFree); ok {
		t.Error("free plan must not be purchasable")
	}
	if price, ok := PriceFor(PlanPro); !ok || price != 9.90 {
		t.Errorf("PriceFor(pro) = %v, %v, want 9.90, true", price, ok)
	}
}
