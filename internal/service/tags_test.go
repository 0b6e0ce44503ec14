package service

import (
	"reflect"
	"testing"
)

func TestDiffTagSets(t *testing.T) {
	testCases := []struct {
		name       string
		current    []string
		desired    []string
		wantAdd    []string
		wantRemove []string
	}{
		{
			name:    "no change",
			current: []string{"t1", "t2"},
			desired: []string{"t1", "t2"},
		},
		{
			name:    "add only",
			current: []string{"t1"},
			desired: []string{"t1", "t2", "t3"},
			wantAdd: []string{"t2", "t3"},
		},
		{
			name:       "remove only",
			current:    []string{"t1", "t2"},
			desired:    []string{"t2"},
			wantRemove: []string{"t1"},
		},
		{
			name:       "mixed",
			current:    []string{"t1", "t2"},
			desired:    []string{"t2", "t3"},
			wantAdd:    []string{"t3"},
			wantRemove: []string{"t1"},
		},
		{
			name:       "empty desired clears",
			current:    []string{"t1"},
			desired:    nil,
			wantRemove: []string{"t1"},
		},
		{
			name:    "empty current adds all",
			current: nil,
			desired: []string{"t1"},
			wantAdd: []string{"t1"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gotAdd, gotRemove := DiffTagSets(tc.current, tc.desired)
			if !reflect.DeepEqual(gotAdd, tc.wantAdd) {
				t.Errorf("toAdd = %v, want %v", gotAdd, tc.wantAdd)
			}
			if !reflect.DeepEqual(gotRemove, tc.wantRemove) {
				t.Errorf("toRemove = %v, want %v", gotRemove, tc.wantRemove)
			}
		})
	}
}
