package store

import (
	"fmt"
	"testing"

	"github.com/JonMunkholm/regionalert/internal/core"
)

func makeRecipients(n int) []core.Recipient {
	out := make([]core.Recipient, n)
	for i := range out {
		out[i] = core.Recipient{RegionCode: "75001", PhoneNumber: fmt.Sprintf("+336%08d", i)}
	}
	return out
}

func TestChunk(t *testing.T) {
	tests := []struct {
		name      string
		records   int
		size      int
		wantSizes []int
	}{
		{"empty", 0, 25, []int{}},
		{"single partial chunk", 3, 25, []int{3}},
		{"exact multiple", 50, 25, []int{25, 25}},
		{"remainder", 60, 25, []int{25, 25, 10}},
		{"zero size uses default", 30, 0, []int{25, 5}},
		{"size one", 3, 1, []int{1, 1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := chunk(makeRecipients(tt.records), tt.size)
			if len(got) != len(tt.wantSizes) {
				t.Fatalf("got %d chunks, want %d", len(got), len(tt.wantSizes))
			}
			for i, c := range got {
				if len(c) != tt.wantSizes[i] {
					t.Errorf("chunk %d has %d records, want %d", i, len(c), tt.wantSizes[i])
				}
			}
		})
	}
}

func TestInsertSQL(t *testing.T) {
	tests := []struct {
		name string
		n    int
		ph   placeholder
		want string
	}{
		{
			name: "postgres placeholders",
			n:    2,
			ph:   dollar,
			want: "INSERT INTO recipients (region_code, phone_number) VALUES ($1, $2), ($3, $4) ON CONFLICT (region_code, phone_number) DO NOTHING",
		},
		{
			name: "sqlite placeholders",
			n:    1,
			ph:   question,
			want: "INSERT INTO recipients (region_code, phone_number) VALUES (?, ?) ON CONFLICT (region_code, phone_number) DO NOTHING",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := insertSQL(tt.n, tt.ph); got != tt.want {
				t.Errorf("insertSQL() =\n%s\nwant\n%s", got, tt.want)
			}
		})
	}
}

func TestInsertArgs(t *testing.T) {
	args := insertArgs([]core.Recipient{
		{RegionCode: "75001", PhoneNumber: "0600000001"},
		{RegionCode: "13001", PhoneNumber: "0600000002"},
	})
	want := []any{"75001", "0600000001", "13001", "0600000002"}
	if len(args) != len(want) {
		t.Fatalf("args = %v, want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Errorf("args[%d] = %v, want %v", i, args[i], want[i])
		}
	}
}

func TestClampLimit(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, DefaultListLimit},
		{-3, DefaultListLimit},
		{10, 10},
		{MaxListLimit + 1, MaxListLimit},
	}
	for _, tt := range tests {
		if got := clampLimit(tt.in); got != tt.want {
			t.Errorf("clampLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
