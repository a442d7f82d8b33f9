package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func paramsFor(query string) Params {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/"+query, nil), httptest.NewRecorder())
	return FromContext(c)
}

func TestFromContext(t *testing.T) {
	cases := []struct {
		query string
		want  Params
	}{
		{"", Params{Limit: DefaultLimit, Offset: 0}},
		{"?limit=5&offset=10", Params{Limit: 5, Offset: 10}},
		{"?limit=500", Params{Limit: MaxLimit, Offset: 0}},
		{"?limit=-1&offset=-3", Params{Limit: DefaultLimit, Offset: 0}},
		{"?limit=abc", Params{Limit: DefaultLimit, Offset: 0}},
	}
	for _, tc := range cases {
		if got := paramsFor(tc.query); got != tc.want {
			t.Errorf("FromContext(%q) = %+v, want %+v", tc.query, got, tc.want)
		}
	}
}

func TestNewResponse_HasMore(t *testing.T) {
	if !NewResponse([]int{1}, 30, 20, 0).HasMore {
		t.Error("expected more results")
	}
	if NewResponse([]int{1}, 20, 20, 0).HasMore {
		t.Error("expected no more results")
	}
}
