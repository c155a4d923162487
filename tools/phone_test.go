package tools

import "testing"

func TestNormalizeRecipient(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"+5511999999999", "5511999999999", false},
		{"5511999999999", "5511999999999", false},
		{"(11) 99999-9999", "5511999999999", false},
		{"11 3333-4444", "551133334444", false},
		{"+447911123456", "447911123456", false}, // DDI completo (12+ dígitos): mantém
		{"", "", true},
		{"123", "", true},
		{"not-a-phone", "", true},
		{"+55 (11) 99999-9999", "5511999999999", false},
	}

	for _, tc := range cases {
		got, err := NormalizeRecipient(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("NormalizeRecipient(%q) = %q, want error", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizeRecipient(%q) error = %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("NormalizeRecipient(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
