package collector

import (
	"errors"
	"testing"

	"gpuwatch/model"
)

func TestSplitCSVRow(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []string
		wantErr error
	}{
		{
			"single field",
			"580.65.06\n",
			[]string{"580.65.06"}, nil,
		},
		{
			"multiple fields trimmed",
			"  8192 , 24576 \n",
			[]string{"8192", "24576"}, nil,
		},
		{
			"first row only",
			"45, 30\n55, 40\n",
			[]string{"45", "30"}, nil,
		},
		{
			"not supported marker",
			"[Not Supported]\n",
			nil, ErrNotSupported,
		},
		{
			"not available marker",
			"43, [N/A]\n",
			nil, ErrNotSupported,
		},
		{
			"empty output",
			"\n",
			nil, errAny,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := splitCSVRow([]byte(tt.in))
			if tt.wantErr != nil {
				if err == nil {
					t.Fatalf("splitCSVRow(%q) = %v, want error", tt.in, got)
				}
				if tt.wantErr != errAny && !errors.Is(err, tt.wantErr) {
					t.Errorf("splitCSVRow(%q) error = %v, want errors.Is %v", tt.in, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("splitCSVRow(%q) error: %v", tt.in, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("splitCSVRow(%q) = %v, want %v", tt.in, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("field %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

// errAny marks table entries where any error is acceptable.
var errAny = errors.New("any error")

func TestParseDriverModel(t *testing.T) {
	tests := []struct {
		in   string
		want model.DriverModel
	}{
		{"WDDM", model.DriverModelWDDM},
		{"TCC", model.DriverModelTCC},
		{"N/A", model.DriverModelUnknown},
		{"", model.DriverModelUnknown},
		{"garbage", model.DriverModelUnknown},
	}

	for _, tt := range tests {
		if got := parseDriverModel(tt.in); got != tt.want {
			t.Errorf("parseDriverModel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParsePct(t *testing.T) {
	if got, err := parsePct("43"); err != nil || got != 43 {
		t.Errorf("parsePct(43) = %d, %v", got, err)
	}
	if _, err := parsePct("forty"); err == nil {
		t.Error("parsePct(forty) = nil error, want error")
	}
}

func TestNotSupportedField(t *testing.T) {
	for _, v := range []string{"[N/A]", "[Not Supported]", "N/A"} {
		if !notSupportedField(v) {
			t.Errorf("notSupportedField(%q) = false, want true", v)
		}
	}
	for _, v := range []string{"0", "", "WDDM", "43"} {
		if notSupportedField(v) {
			t.Errorf("notSupportedField(%q) = true, want false", v)
		}
	}
}
