package domain

import "testing"

func TestKnownCardStatus(t *testing.T) {
	tests := []struct {
		status CardStatus
		want   bool
	}{
		{CardStatusModerate, true},
		{CardStatusAccepted, true},
		{CardStatusRejected, true},
		{"published", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := KnownCardStatus(tt.status); got != tt.want {
			t.Fatalf("KnownCardStatus(%q) = %v, ожидали %v", tt.status, got, tt.want)
		}
	}
}
