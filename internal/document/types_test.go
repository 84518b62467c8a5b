package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundingBoxUnion(t *testing.T) {
	a := BoundingBox{X0: 10, Y0: 10, X1: 50, Y1: 20}
	b := BoundingBox{X0: 40, Y0: 5, X1: 80, Y1: 15}

	u := a.Union(b)
	assert.Equal(t, BoundingBox{X0: 10, Y0: 5, X1: 80, Y1: 20}, u)
	// Union is commutative.
	assert.Equal(t, u, b.Union(a))
}

func TestBoundingBoxClip(t *testing.T) {
	b := BoundingBox{X0: -5, Y0: 10, X1: 700, Y1: 900}
	clipped := b.Clip(612, 792)
	assert.Equal(t, BoundingBox{X0: 0, Y0: 10, X1: 612, Y1: 792}, clipped)

	inside := BoundingBox{X0: 10, Y0: 10, X1: 100, Y1: 30}
	assert.Equal(t, inside, inside.Clip(612, 792))
}

func TestPageText(t *testing.T) {
	p := Page{
		Index: 0,
		Spans: []TextSpan{
			{Text: "Patient: John Smith"},
			{Text: "DOB 01/02/1980"},
		},
	}
	assert.Equal(t, "Patient: John Smith\nDOB 01/02/1980", p.Text())
	assert.Equal(t, "", Page{}.Text())
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"mask", ModeMask, false},
		{"placeholder", ModePlaceholder, false},
		{"synthetic", ModeSynthetic, false},
		{"", ModePlaceholder, false},
		{"blackout", "", true},
		{"MASK", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if tt.wantErr {
			require.Error(t, err, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got)
	}
}
