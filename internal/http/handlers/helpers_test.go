package handlers

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestReadPathInt64(t *testing.T) {
	cases := []struct {
		name    string
		value   string
		want    int64
		wantErr bool
	}{
		{"plain id", "123", 123, false},
		{"trailing garbage rejected", "123abc", 0, true},
		{"empty param", "", 0, true},
		{"non-numeric", "abc", 0, true},
		{"negative id parses", "-5", -5, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/customer/orders/x", nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("orderId", tc.value)
			r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))

			got, err := readPathInt64(r, "orderId")
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected %q to be rejected, got %d", tc.value, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error for %q: %v", tc.value, err)
			}
			if got != tc.want {
				t.Fatalf("readPathInt64(%q) = %d, expected %d", tc.value, got, tc.want)
			}
		})
	}
}

func TestReadPagination(t *testing.T) {
	cases := []struct {
		name   string
		url    string
		limit  int
		offset int
	}{
		{"defaults", "/driver/orders/available", 20, 0},
		{"explicit page", "/driver/orders/available?page=3&pageSize=10", 10, 20},
		{"zero page clamps to first", "/driver/orders/available?page=0", 20, 0},
		{"oversized pageSize clamps", "/driver/orders/available?pageSize=5000", 20, 0},
		{"negative values clamp", "/driver/orders/available?page=-1&pageSize=-5", 20, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", tc.url, nil)
			limit, offset := readPagination(r)
			if limit != tc.limit || offset != tc.offset {
				t.Fatalf("readPagination(%s) = (%d, %d), expected (%d, %d)", tc.url, limit, offset, tc.limit, tc.offset)
			}
		})
	}
}

func TestDedupeInt64(t *testing.T) {
	got := dedupeInt64([]int64{3, 1, 3, 2, 1})
	expected := []int64{3, 1, 2}
	if !int64SlicesEqual(got, expected) {
		t.Fatalf("dedupeInt64 = %v, expected %v", got, expected)
	}
	if got := dedupeInt64(nil); len(got) != 0 {
		t.Fatalf("dedupeInt64(nil) = %v", got)
	}
}

func TestInt64SlicesEqual(t *testing.T) {
	if !int64SlicesEqual([]int64{1, 2}, []int64{1, 2}) {
		t.Fatal("equal slices reported unequal")
	}
	if int64SlicesEqual([]int64{1, 2}, []int64{2, 1}) {
		t.Fatal("order matters for option-set comparison after sorting upstream")
	}
	if int64SlicesEqual([]int64{1}, []int64{1, 2}) {
		t.Fatal("length mismatch must be unequal")
	}
}
