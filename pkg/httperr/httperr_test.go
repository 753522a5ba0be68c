package httperr

import (
	"fmt"
	"net/http"
	"testing"
)

func TestIsBadRequest(t *testing.T) {
	if IsBadRequest(nil) {
		t.Fatalf("expected false for nil")
	}
	if IsBadRequest(NewBadRequest("bad")) != true {
		t.Fatalf("expected true for BadRequestError")
	}
	if IsBadRequest(assertErr("other")) {
		t.Fatalf("expected false for non-BadRequestError")
	}
}

func TestIsConflict_Wrapped(t *testing.T) {
	err := fmt.Errorf("create: %w", NewConflict("menu_id_exists"))
	if !IsConflict(err) {
		t.Fatalf("expected conflict")
	}
	if IsConflict(NewBadRequest("x")) {
		t.Fatalf("unexpected conflict")
	}
}

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{NewBadRequest("x"), http.StatusBadRequest},
		{NewConflict("x"), http.StatusConflict},
		{assertErr("x"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := StatusOf(tc.err); got != tc.want {
			t.Fatalf("err=%v got=%d want=%d", tc.err, got, tc.want)
		}
	}
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
