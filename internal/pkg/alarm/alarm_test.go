package alarm

import "testing"

func TestSetAndHas(t *testing.T) {
	var mask FA
	mask = Set(mask, FABatteryLow, true)
	if !Has(mask, FABatteryLow) {
		t.Fatalf("expected FABatteryLow set")
	}
	mask = Set(mask, FABatteryLow, false)
	if Has(mask, FABatteryLow) {
		t.Fatalf("expected FABatteryLow cleared")
	}
}

func TestIndependentFlags(t *testing.T) {
	mask := Set(FB(0), FBWheelSlip, true)
	if Has(mask, FBTiltDetected) {
		t.Fatalf("unrelated flag should not be set")
	}
	if !Has(mask, FBWheelSlip) {
		t.Fatalf("expected FBWheelSlip set")
	}
}
