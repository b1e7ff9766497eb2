package apierr

import (
	"errors"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	cases := []struct {
		err  *Error
		want string
	}{
		{New(Unauthorized, "missing credential"), "Unauthorized: missing credential"},
		{New(Internal, ""), "Internal"},
	}
	for _, c := range cases {
		if got := c.err.Error(); got != c.want {
			t.Errorf("Error() = %q, want %q", got, c.want)
		}
	}
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(Internal, "doing a thing", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped error to unwrap to cause")
	}
}

func TestStatusHint(t *testing.T) {
	cases := map[Kind]int{
		Unauthorized:      401,
		Forbidden:         403,
		InvalidUpload:     400,
		UnsupportedFormat: 400,
		NoBackend:         503,
		AllBackendsFailed: 502,
		UpstreamError:     502,
		Timeout:           504,
		Kind("made-up"):   500,
	}
	for kind, want := range cases {
		if got := kind.StatusHint(); got != want {
			t.Errorf("StatusHint(%s) = %d, want %d", kind, got, want)
		}
	}
}
