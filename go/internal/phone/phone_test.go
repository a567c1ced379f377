package phone

import "testing"

func TestNormalize(t *testing.T) {
	valid := []struct {
		input string
		want  string
	}{
		{"912345678", "56912345678"},
		{"056912345678", "56912345678"},
		{"+56912345678", "56912345678"},
		{"56912345678", "56912345678"},
		{"9 1234 5678", "56912345678"},
		{"(56) 9-1234-5678", "56912345678"},
	}
	for _, c := range valid {
		got, err := Normalize(c.input)
		if err != nil {
			t.Errorf("Normalize(%q) returned error %v", c.input, err)
			continue
		}
		if got != c.want {
			t.Errorf("Normalize(%q) = %q, want %q", c.input, got, c.want)
		}
	}

	invalid := []struct {
		input string
		want  error
	}{
		{"", ErrEmpty},
		{"abc", ErrEmpty},
		{"812345678", ErrNotMobile},
		{"91234567", ErrBadLength},
		{"9123456789", ErrBadLength},
	}
	for _, c := range invalid {
		if _, err := Normalize(c.input); err != c.want {
			t.Errorf("Normalize(%q) error = %v, want %v", c.input, err, c.want)
		}
	}
}
