package authapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestBearerToken(t *testing.T) {
	cases := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"Bearer   abc  ", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
	}

	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			r.Header.Set("Authorization", tc.header)
		}
		if got := bearerToken(r); got != tc.want {
			t.Errorf("bearerToken(%q) = %q, want %q", tc.header, got, tc.want)
		}
	}
}

func TestTokenFromRequestPrefersCookie(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer from-header")
	r.AddCookie(&http.Cookie{Name: "access_token", Value: "from-cookie"})

	if got := tokenFromRequest(r, "access_token"); got != "from-cookie" {
		t.Errorf("token = %q, want cookie value", got)
	}
}

func TestTokenFromRequestFallsBackToBearer(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer from-header")

	if got := tokenFromRequest(r, "access_token"); got != "from-header" {
		t.Errorf("token = %q, want bearer value", got)
	}

	// An empty cookie does not shadow the header.
	r.AddCookie(&http.Cookie{Name: "access_token", Value: ""})
	if got := tokenFromRequest(r, "access_token"); got != "from-header" {
		t.Errorf("token with empty cookie = %q, want bearer value", got)
	}
}
