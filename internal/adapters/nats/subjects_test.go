package natsadapter

import "testing"

func TestLabelSubject(t *testing.T) {
	tests := []struct {
		session, zone string
		want          string
	}{
		{"s1", "zone-1", "zones.label.resolved.s1.zone-1"},
		{"", "zone-1", "zones.label.resolved._.zone-1"},
		{"a.b", "z*1>", "zones.label.resolved.a_b.z_1_"},
		{"s 1", "z\t1", "zones.label.resolved.s_1.z_1"},
	}
	for _, tt := range tests {
		if got := LabelSubject(tt.session, tt.zone); got != tt.want {
			t.Errorf("LabelSubject(%q, %q) = %q, want %q", tt.session, tt.zone, got, tt.want)
		}
	}
}

func TestSessionLabelSubjects(t *testing.T) {
	if got := SessionLabelSubjects("abc"); got != "zones.label.resolved.abc.>" {
		t.Errorf("unexpected wildcard %q", got)
	}
}
