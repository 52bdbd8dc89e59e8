package codec

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/databroker/errors"
	"github.com/wippyai/databroker/payload"
	"github.com/wippyai/databroker/record"
)

func TestTableCodec_RoundTrip(t *testing.T) {
	text := "# title\n> first\n1\t2\tA\n3\t4\nnot numbers\n> second\n5\t6\n"
	p, err := TableCodec{Options: record.DefaultOptions()}.Decode(strings.NewReader(text))
	require.NoError(t, err)

	ds := p.(*payload.Dataset)
	require.Len(t, ds.Tables, 1)
	assert.Equal(t, 2, ds.Columns)
	assert.Equal(t, []string{"title"}, ds.Tables[0].Headers)
	require.Len(t, ds.Tables[0].Segments, 2)

	var buf bytes.Buffer
	require.NoError(t, TableCodec{Options: record.DefaultOptions()}.Encode(&buf, ds))
	want := "# title\n> first\n1\t2\tA\n3\t4\nnot numbers\n> second\n5\t6\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Fatalf("encoded text (-want +got):\n%s", diff)
	}
}

func TestYAMLCodec_Grid(t *testing.T) {
	g := &payload.Grid{
		Header: payload.GridHeader{
			Title:  "bathymetry",
			Region: [4]float64{0, 1, 0, 1},
			Inc:    [2]float64{1, 1},
			NX:     2,
			NY:     2,
			ZMin:   -4,
			ZMax:   3,
		},
		Data: []float32{1, 2, 3, -4},
	}
	path := filepath.Join(t.TempDir(), "grid.yaml")
	require.NoError(t, Save(path, g))

	back, err := Open(path, payload.FamilyGrid)
	require.NoError(t, err)
	if diff := cmp.Diff(g, back); diff != "" {
		t.Fatalf("grid round trip (-want +got):\n%s", diff)
	}
}

func TestYAMLCodec_OtherFamilies(t *testing.T) {
	items := []payload.Payload{
		&payload.Palette{Slices: []payload.ColorSlice{{Low: 0, High: 1, LowRGB: payload.RGB{0, 0, 0}, HighRGB: payload.RGB{255, 255, 255}}}},
		&payload.Matrix{Rows: 1, Columns: 2, Data: []float64{1, 2}},
		&payload.Vector{Columns: [][]float64{{1, 2}, {3, 4}}},
		&payload.Image{Width: 1, Height: 1, Bands: 3, Pixels: []uint8{10, 20, 30}},
	}
	for _, p := range items {
		t.Run(p.Family().String(), func(t *testing.T) {
			c, err := For(p.Family())
			require.NoError(t, err)
			var buf bytes.Buffer
			require.NoError(t, c.Encode(&buf, p))
			back, err := c.Decode(&buf)
			require.NoError(t, err)
			if diff := cmp.Diff(p, back); diff != "" {
				t.Fatalf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestYAMLCodec_RejectsShapeMismatch(t *testing.T) {
	src := "header:\n  nx: 3\n  ny: 3\ndata: [1, 2]\n"
	_, err := YAMLCodec{Of: payload.FamilyGrid}.Decode(strings.NewReader(src))
	assert.True(t, errors.IsKind(err, errors.KindInvalidData), "err = %v", err)

	err = YAMLCodec{Of: payload.FamilyGrid}.Encode(&bytes.Buffer{}, &payload.Document{})
	assert.True(t, errors.IsKind(err, errors.KindBadFamily), "err = %v", err)
}

func TestDocumentCodec(t *testing.T) {
	doc := &payload.Document{Lines: []string{"alpha", "", "gamma"}}
	path := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, Save(path, doc))
	back, err := Open(path, payload.FamilyDocument)
	require.NoError(t, err)
	assert.Equal(t, doc, back)
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing"), payload.FamilyGrid)
	assert.True(t, errors.IsKind(err, errors.KindIO))

	_, err = For(payload.FamilyUnknown)
	assert.True(t, errors.IsKind(err, errors.KindBadFamily))
}

type customDocs struct{ DocumentCodec }

func (customDocs) Decode(io.Reader) (payload.Payload, error) {
	return &payload.Document{Lines: []string{"custom"}}, nil
}

func TestRegister_Replaces(t *testing.T) {
	orig, _ := For(payload.FamilyDocument)
	defer Register(orig)

	Register(customDocs{})
	c, err := For(payload.FamilyDocument)
	require.NoError(t, err)
	_, isCustom := c.(customDocs)
	assert.True(t, isCustom)
}
