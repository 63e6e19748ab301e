package app

import (
	"testing"

	"github.com/dkeye/Conductor/internal/cluster"
)

func TestLeastLoaded(t *testing.T) {
	tests := []struct {
		name  string
		in    []cluster.Usage
		want  cluster.NodeID
		found bool
	}{
		{"empty", nil, "", false},
		{"single", []cluster.Usage{{Node: "a", ActiveRooms: 9}}, "a", true},
		{"fewest rooms", []cluster.Usage{{Node: "a", ActiveRooms: 3}, {Node: "b", ActiveRooms: 1}, {Node: "c", ActiveRooms: 2}}, "b", true},
		{"tie goes to lowest id", []cluster.Usage{{Node: "c", ActiveRooms: 0}, {Node: "a", ActiveRooms: 0}, {Node: "b", ActiveRooms: 0}}, "a", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := LeastLoaded{}.Pick(tt.in)
			if ok != tt.found || got != tt.want {
				t.Errorf("Pick = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.found)
			}
		})
	}
}
