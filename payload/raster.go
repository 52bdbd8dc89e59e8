package payload

// Registration is the node convention of a grid.
type Registration uint8

const (
	GridlineRegistered Registration = iota
	PixelRegistered
)

// GridHeader describes the lattice of a Grid.
type GridHeader struct {
	Title        string       `yaml:"title,omitempty"`
	Region       [4]float64   `yaml:"region"`
	Inc          [2]float64   `yaml:"inc"`
	NX           int          `yaml:"nx"`
	NY           int          `yaml:"ny"`
	ZMin         float64      `yaml:"zmin"`
	ZMax         float64      `yaml:"zmax"`
	Registration Registration `yaml:"registration"`
}

// Grid is a 2-D lattice of values stored row-major, north row first.
type Grid struct {
	Header GridHeader `yaml:"header"`
	Data   []float32  `yaml:"data,flow"`
}

func (*Grid) Family() Family { return FamilyGrid }
func (*Grid) isPayload() {}

func (g *Grid) Clone() Payload {
	return &Grid{Header: g.Header, Data: append([]float32(nil), g.Data...)}
}

func (g *Grid) Size() Size {
	return Size{Rows: g.Header.NY, Columns: g.Header.NX, Bytes: int64(4 * len(g.Data))}
}

func (g *Grid) Release() { g.Data = nil }

// At returns the node value at row and col.
func (g *Grid) At(row, col int) float32 {
	return g.Data[row*g.Header.NX+col]
}

// Image is a raster of 8-bit bands, pixel-interleaved.
type Image struct {
	Width  int     `yaml:"width"`
	Height int     `yaml:"height"`
	Bands  int     `yaml:"bands"`
	Pixels []uint8 `yaml:"pixels,flow"`
}

func (*Image) Family() Family { return FamilyImage }
func (*Image) isPayload() {}

func (im *Image) Clone() Payload {
	out := *im
	out.Pixels = append([]uint8(nil), im.Pixels...)
	return &out
}

func (im *Image) Size() Size {
	return Size{Rows: im.Height, Columns: im.Width, Bytes: int64(len(im.Pixels))}
}

func (im *Image) Release() { im.Pixels = nil }
