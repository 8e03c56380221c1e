package sheets

import "testing"

func TestColumnLetter(t *testing.T) {
	cases := []struct {
		column int
		want   string
	}{
		{1, "A"},
		{2, "B"},
		{26, "Z"},
		{27, "AA"},
		{28, "AB"},
		{52, "AZ"},
		{53, "BA"},
		{702, "ZZ"},
		{703, "AAA"},
	}
	for _, c := range cases {
		if got := ColumnLetter(c.column); got != c.want {
			t.Fatalf("ColumnLetter(%d) = %q, want %q", c.column, got, c.want)
		}
	}
}

func TestColumnNumber(t *testing.T) {
	for _, c := range []struct {
		letters string
		want    int
	}{
		{"A", 1},
		{"z", 26},
		{"AA", 27},
		{"BA", 53},
		{"AAA", 703},
	} {
		got, err := ColumnNumber(c.letters)
		if err != nil {
			t.Fatalf("ColumnNumber(%q) returned error: %v", c.letters, err)
		}
		if got != c.want {
			t.Fatalf("ColumnNumber(%q) = %d, want %d", c.letters, got, c.want)
		}
	}

	for _, bad := range []string{"", "A1", "1A"} {
		if _, err := ColumnNumber(bad); err == nil {
			t.Fatalf("ColumnNumber(%q) should fail", bad)
		}
	}
}

func TestCellRefRoundTrip(t *testing.T) {
	ref := CellRef(54, 17)
	if ref != "BB17" {
		t.Fatalf("CellRef(54, 17) = %q, want BB17", ref)
	}
	column, row, err := SplitRef(ref)
	if err != nil {
		t.Fatalf("SplitRef(%q) returned error: %v", ref, err)
	}
	if column != 54 || row != 17 {
		t.Fatalf("SplitRef(%q) = (%d, %d), want (54, 17)", ref, column, row)
	}
}

func TestSplitRefInvalid(t *testing.T) {
	for _, bad := range []string{"", "17", "BB", "BB0", "B-1"} {
		if _, _, err := SplitRef(bad); err == nil {
			t.Fatalf("SplitRef(%q) should fail", bad)
		}
	}
}
