package output

import (
	"testing"

	"github.com/masmgr/gitchanges/internal/vcs"
)

func TestLimitTop(t *testing.T) {
	items := []int{1, 2, 3}

	tests := []struct {
		name string
		top  int
		want []int
	}{
		{name: "NoLimitWhenZero", top: 0, want: []int{1, 2, 3}},
		{name: "NoLimitWhenNegative", top: -1, want: []int{1, 2, 3}},
		{name: "Limited", top: 2, want: []int{1, 2}},
		{name: "NoLimitWhenTopExceedsLength", top: 5, want: []int{1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := limitTop(items, tt.top)
			if len(got) != len(tt.want) {
				t.Fatalf("len(limitTop(..., %d)) = %d, want %d", tt.top, len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("limitTop(..., %d)[%d] = %d, want %d", tt.top, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestKindCounts(t *testing.T) {
	files := []vcs.FileChange{
		{Path: "a", Kind: vcs.ChangeKindAdded},
		{Path: "b", Kind: vcs.ChangeKindModified},
		{Path: "c", Kind: vcs.ChangeKindModified},
		{Path: "d", Kind: vcs.ChangeKindDeleted},
	}
	added, modified, deleted := kindCounts(files)
	if added != 1 || modified != 2 || deleted != 1 {
		t.Fatalf("kindCounts() = %d, %d, %d, want 1, 2, 1", added, modified, deleted)
	}
}

func TestPreviousLabel(t *testing.T) {
	if got := previousLabel(&DetectionReport{}); got != "(initial)" {
		t.Errorf("previousLabel(initial) = %q", got)
	}
	rev := vcs.Revision("0123456789abcdef0123456789abcdef01234567")
	if got := previousLabel(&DetectionReport{Previous: rev}); got != rev.String() {
		t.Errorf("previousLabel() = %q, want %q", got, rev)
	}
}

func TestSubject(t *testing.T) {
	tests := []struct {
		comment string
		want    string
	}{
		{"single line\n", "single line"},
		{"PROJ-1 first\n\nbody text", "PROJ-1 first"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := subject(tt.comment); got != tt.want {
			t.Errorf("subject(%q) = %q, want %q", tt.comment, got, tt.want)
		}
	}
}
