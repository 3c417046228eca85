package telegram

import (
	"errors"
	"testing"
)

func TestIsMessageGone(t *testing.T) {
	cases := []struct {
		err  error
		gone bool
	}{
		{errors.New("Bad Request: message to edit not found"), true},
		{errors.New("Bad Request: message can't be edited"), true},
		{errors.New("Too Many Requests: retry after 5"), false},
		{errors.New("Forbidden: bot was blocked by the user"), false},
	}
	for _, c := range cases {
		if got := isMessageGone(c.err); got != c.gone {
			t.Fatalf("для %q ожидали %v, получили %v", c.err, c.gone, got)
		}
	}
}
