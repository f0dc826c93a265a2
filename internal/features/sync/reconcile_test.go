package sync

import (
	"reflect"
	"testing"
)

func TestReconcileLinks(t *testing.T) {
	tests := []struct {
		name    string
		current []string
		childID string
		include bool
		want    []string
	}{
		{"append new active child", []string{"26", "28"}, "34", true, []string{"26", "28", "34"}},
		{"append to empty list", nil, "34", true, []string{"34"}},
		{"already present stays in place", []string{"26", "34", "28"}, "34", true, []string{"26", "34", "28"}},
		{"remove keeps order of the rest", []string{"26", "34", "28"}, "34", false, []string{"26", "28"}},
		{"remove absent is a no-op", []string{"26", "28"}, "34", false, []string{"26", "28"}},
		{"remove from empty", nil, "34", false, []string{}},
		{"duplicates collapse on rebuild", []string{"26", "34", "26"}, "34", true, []string{"26", "34"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ReconcileLinks(tt.current, tt.childID, tt.include)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ReconcileLinks(%v, %q, %v) = %v, want %v", tt.current, tt.childID, tt.include, got, tt.want)
			}
		})
	}
}

func TestReconcileFull(t *testing.T) {
	tests := []struct {
		name    string
		current []string
		active  []string
		want    []string
	}{
		{"no change", []string{"26", "28"}, []string{"26", "28"}, []string{"26", "28"}},
		{"kept links preserve their order", []string{"28", "26"}, []string{"26", "28"}, []string{"28", "26"}},
		{"new links append at the end", []string{"26"}, []string{"34", "26"}, []string{"26", "34"}},
		{"finished links drop out", []string{"26", "28", "34"}, []string{"28"}, []string{"28"}},
		{"everything finished", []string{"26", "28"}, nil, []string{}},
		{"fresh case picks up listing order", nil, []string{"26", "28"}, []string{"26", "28"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ReconcileFull(tt.current, tt.active)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ReconcileFull(%v, %v) = %v, want %v", tt.current, tt.active, got, tt.want)
			}
		})
	}
}

func TestAlignDates(t *testing.T) {
	tests := []struct {
		name  string
		links []string
		dates map[string]string
		want  []string
	}{
		{
			"dates follow link order",
			[]string{"26", "28"},
			map[string]string{"28": "2026-02-01", "26": "2026-01-01"},
			[]string{"2026-01-01", "2026-02-01"},
		},
		{
			"missing date becomes placeholder",
			[]string{"26", "28", "34"},
			map[string]string{"26": "2026-01-01"},
			[]string{"2026-01-01", "", ""},
		},
		{
			"empty links give empty dates",
			nil,
			map[string]string{"26": "2026-01-01"},
			[]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AlignDates(tt.links, tt.dates)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("AlignDates(%v, %v) = %v, want %v", tt.links, tt.dates, got, tt.want)
			}
			if len(got) != len(tt.links) {
				t.Errorf("AlignDates length %d, want %d", len(got), len(tt.links))
			}
		})
	}
}

func TestOrderedEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b []string
		want bool
	}{
		{"equal", []string{"26", "28", "34"}, []string{"26", "28", "34"}, true},
		{"reorder is a change", []string{"26", "28", "34"}, []string{"28", "26", "34"}, false},
		{"different length", []string{"26"}, []string{"26", "28"}, false},
		{"nil equals empty", nil, []string{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OrderedEqual(tt.a, tt.b); got != tt.want {
				t.Errorf("OrderedEqual(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
