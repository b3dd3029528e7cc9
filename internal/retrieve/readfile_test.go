package retrieve

import (
	"context"
	"testing"
)

func TestResolveURI(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"viking://resource/docs/a.md", "viking://resource/docs/a.md"},
		{"/abs/path", "viking://resource/abs/path"},
		{"docs/a.md", "viking://resource/docs/a.md"},
	}
	for _, tt := range tests {
		if got := ResolveURI(tt.in); got != tt.want {
			t.Errorf("ResolveURI(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestReadFile_LineWindow(t *testing.T) {
	store := &fakeStore{
		reads: map[string]string{
			"viking://resource/docs/a.md": "l1\nl2\nl3\nl4\nl5",
		},
	}
	p := newTestPipeline(t, store, nil)

	tests := []struct {
		name  string
		from  int
		lines int
		want  string
	}{
		{"whole file", 0, 0, "l1\nl2\nl3\nl4\nl5"},
		{"window", 2, 3, "l2\nl3\nl4"},
		{"from only", 4, 0, "l4\nl5"},
		{"window past end", 4, 10, "l4\nl5"},
		{"from past end", 9, 2, ""},
		{"first line", 1, 1, "l1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.ReadFile(context.Background(), "docs/a.md", tt.from, tt.lines)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("ReadFile(%d, %d) = %q, want %q", tt.from, tt.lines, got, tt.want)
			}
		})
	}
}

func TestReadFile_ErrorPropagates(t *testing.T) {
	p := newTestPipeline(t, &fakeStore{}, nil)
	if _, err := p.ReadFile(context.Background(), "missing.md", 0, 0); err == nil {
		t.Fatal("missing uri must error")
	}
}
