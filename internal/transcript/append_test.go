package transcript

import "testing"

func TestAppend(t *testing.T) {
	tests := []struct {
		name        string
		accumulated string
		segment     string
		want        string
	}{
		{
			name:        "first segment",
			accumulated: "",
			segment:     " Hello world",
			want:        "Hello world",
		},
		{
			name:        "space inserted mid sentence",
			accumulated: "the quick brown",
			segment:     "fox jumps",
			want:        "the quick brown fox jumps",
		},
		{
			name:        "segment leading space preserved after period",
			accumulated: "First sentence.",
			segment:     " Second sentence.",
			want:        "First sentence. Second sentence.",
		},
		{
			name:        "no separator added after terminal punctuation",
			accumulated: "Done!",
			segment:     "Next",
			want:        "Done!Next",
		},
		{
			name:        "question mark counts as terminal",
			accumulated: "Ready?",
			segment:     " Yes.",
			want:        "Ready? Yes.",
		},
		{
			name:        "empty segment is a no-op",
			accumulated: "keep this",
			segment:     "   ",
			want:        "keep this",
		},
		{
			name:        "existing trailing space reused",
			accumulated: "All set. ",
			segment:     " Continue",
			want:        "All set. Continue",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Append(tt.accumulated, tt.segment); got != tt.want {
				t.Errorf("Append(%q, %q) = %q, want %q", tt.accumulated, tt.segment, got, tt.want)
			}
		})
	}
}

func TestAppendNeverShortens(t *testing.T) {
	acc := "existing transcript text"
	out := Append(acc, "more")
	if len(out) < len(acc) {
		t.Errorf("Append shortened the transcript: %q -> %q", acc, out)
	}
}
