package dca

import (
	"strings"
	"testing"
)

func TestJsonObjectWriter(t *testing.T) {
	t.Run("empty object", func(t *testing.T) {
		var w jsonObjectWriter
		got, err := w.MarshalJSON()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := "{}"; string(got) != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("fields keep their order", func(t *testing.T) {
		var w jsonObjectWriter
		w.Append("fiat", M(1000, "IDR"))
		w.Append("coin", Q(0.01))
		w.Append("currency", "IDR")
		got, err := w.MarshalJSON()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := `{"fiat":1000,"coin":0.01,"currency":"IDR"}`
		if string(got) != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("optional fields", func(t *testing.T) {
		var w jsonObjectWriter
		w.Append("count", 0) // a zero value is added by Append
		w.Optional("id", "")
		w.Optional("exchange", "")
		w.Optional("owner", "alice")
		got, err := w.MarshalJSON()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := `{"count":0,"owner":"alice"}`
		if string(got) != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("first error wins", func(t *testing.T) {
		var w jsonObjectWriter
		w.Append("bad", make(chan int))
		w.Append("good", 1)
		_, err := w.MarshalJSON()
		if err == nil || !strings.Contains(err.Error(), `"bad"`) {
			t.Errorf("MarshalJSON() error = %v, want an error about \"bad\"", err)
		}
	})
}
