package payload

// RGB is an 8-bit color triple.
type RGB [3]uint8

// ColorSlice maps the z range [Low, High) to a linear ramp between two colors.
type ColorSlice struct {
	Low     float64 `yaml:"low"`
	High    float64 `yaml:"high"`
	LowRGB  RGB     `yaml:"low_rgb,flow"`
	HighRGB RGB     `yaml:"high_rgb,flow"`
	Label   string  `yaml:"label,omitempty"`
}

// Palette is a color table.
type Palette struct {
	Slices     []ColorSlice `yaml:"slices"`
	Background RGB          `yaml:"background,flow"`
	Foreground RGB          `yaml:"foreground,flow"`
	NaN        RGB          `yaml:"nan,flow"`
}

func (*Palette) Family() Family { return FamilyPalette }
func (*Palette) isPayload() {}

func (p *Palette) Clone() Payload {
	out := *p
	out.Slices = append([]ColorSlice(nil), p.Slices...)
	return &out
}

func (p *Palette) Size() Size {
	return Size{Rows: len(p.Slices), Columns: 2, Bytes: int64(len(p.Slices) * 22)}
}

func (p *Palette) Release() { p.Slices = nil }

// Lookup returns the color for z, falling back to the background below the
// first slice, the foreground above the last and NaN for unordered values.
func (p *Palette) Lookup(z float64) RGB {
	if z != z {
		return p.NaN
	}
	if len(p.Slices) == 0 || z < p.Slices[0].Low {
		return p.Background
	}
	for _, s := range p.Slices {
		if z >= s.Low && z < s.High {
			if s.High == s.Low {
				return s.LowRGB
			}
			f := (z - s.Low) / (s.High - s.Low)
			var c RGB
			for i := range c {
				c[i] = uint8(float64(s.LowRGB[i]) + f*(float64(s.HighRGB[i])-float64(s.LowRGB[i])) + 0.5)
			}
			return c
		}
	}
	return p.Foreground
}

// Document is a block of free-form text lines.
type Document struct {
	Lines []string `yaml:"lines"`
}

func (*Document) Family() Family { return FamilyDocument }
func (*Document) isPayload() {}

func (d *Document) Clone() Payload {
	return &Document{Lines: append([]string(nil), d.Lines...)}
}

func (d *Document) Size() Size {
	var n int64
	for _, l := range d.Lines {
		n += int64(len(l) + 1)
	}
	return Size{Rows: len(d.Lines), Columns: 1, Bytes: n}
}

func (d *Document) Release() { d.Lines = nil }

// Append adds a line to the document.
func (d *Document) Append(line string) {
	d.Lines = append(d.Lines, line)
}
