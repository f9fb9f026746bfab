package rcon

import (
	"reflect"
	"testing"
)

func TestParsePlayers(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []Player
	}{
		{
			name: "typical listing",
			in: "Players on server:\n" +
				"Survivor (id=1)\n" +
				"Bandit Joe (id=23) (lobby)\n" +
				"---------\n" +
				"(2 players in total)\n",
			want: []Player{
				{Name: "Survivor", ID: "1"},
				{Name: "Bandit Joe", ID: "23"},
			},
		},
		{
			name: "id first then name",
			in:   "id=7 NightStalker\nid=8 Hermit (dead)",
			want: []Player{
				{Name: "NightStalker", ID: "7"},
				{Name: "Hermit", ID: "8"},
			},
		},
		{
			name: "colon labeled ids",
			in:   "Alice id: 12\nBob ID:34",
			want: []Player{
				{Name: "Alice", ID: "12"},
				{Name: "Bob", ID: "34"},
			},
		},
		{
			name: "headers comments and blanks skipped",
			in:   "# comment\n\n- separator\nPlayers connected: 0\n",
			want: nil,
		},
		{
			name: "lines without labeled id skipped",
			in:   "just some text\n42\n",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParsePlayers(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("ParsePlayers() = %#v, want %#v", got, tt.want)
			}
		})
	}
}
