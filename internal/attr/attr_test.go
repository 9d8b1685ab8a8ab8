package attr

import "testing"

func TestInt(t *testing.T) {
	if n, err := Int(" 42 "); err != nil || n != 42 {
		t.Fatalf("expected 42, got %d (%v)", n, err)
	}
	if _, err := Int("forty"); err == nil {
		t.Fatal("expected error for non-numeric value")
	}
	if _, err := NonNegative("-1"); err == nil {
		t.Fatal("expected error for negative value")
	}
}

func TestFlag(t *testing.T) {
	tests := []struct {
		in      string
		want    bool
		wantErr bool
	}{
		{"0", false, false},
		{"1", true, false},
		{"2", false, true},
		{"yes", false, true},
	}
	for _, tt := range tests {
		got, err := Flag(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("Flag(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("Flag(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
