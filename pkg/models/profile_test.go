package models

import (
	"errors"
	"math"
	"testing"
)

func TestTuningProfileValidate(t *testing.T) {
	neg := -1.0
	tests := []struct {
		name    string
		profile TuningProfile
		wantErr bool
	}{
		{"valid", TuningProfile{Name: "Steinway", Kind: KindInharmonicity, Data: []float64{27.5, 440}}, false},
		{"empty data is valid", TuningProfile{Name: "blank", Kind: KindReferenceTuning}, false},
		{"missing name", TuningProfile{Kind: KindInharmonicity}, true},
		{"bad kind", TuningProfile{Name: "x", Kind: "OTHER"}, true},
		{"nan entry", TuningProfile{Name: "x", Kind: KindInharmonicity, Data: []float64{math.NaN()}}, true},
		{"negative length", TuningProfile{Name: "x", Kind: KindInharmonicity, SpeakingLengthMm: &neg}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.profile.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidProfile) {
				t.Errorf("error %v does not wrap ErrInvalidProfile", err)
			}
		})
	}
}

func TestParseProfileKind(t *testing.T) {
	if k, err := ParseProfileKind("reference"); err != nil || k != KindReferenceTuning {
		t.Errorf("ParseProfileKind(reference) = %q, %v", k, err)
	}
	if k, err := ParseProfileKind(""); err != nil || k != KindInharmonicity {
		t.Errorf("ParseProfileKind(\"\") = %q, %v", k, err)
	}
	if _, err := ParseProfileKind("stretch"); err == nil {
		t.Error("expected error for unknown kind")
	}
}
