package payload

// Matrix is a dense row-major 2-D array of values.
type Matrix struct {
	Region  []float64 `yaml:"region,omitempty,flow"`
	Data    []float64 `yaml:"data,flow"`
	Rows    int       `yaml:"rows"`
	Columns int       `yaml:"columns"`
}

func (*Matrix) Family() Family { return FamilyMatrix }
func (*Matrix) isPayload() {}

func (m *Matrix) Clone() Payload {
	return &Matrix{
		Region:  append([]float64(nil), m.Region...),
		Data:    append([]float64(nil), m.Data...),
		Rows:    m.Rows,
		Columns: m.Columns,
	}
}

func (m *Matrix) Size() Size {
	return Size{Rows: m.Rows, Columns: m.Columns, Bytes: int64(8 * len(m.Data))}
}

func (m *Matrix) Release() { m.Data = nil }

// Vector is a set of equal-length columns.
type Vector struct {
	Columns [][]float64 `yaml:"columns,flow"`
}

func (*Vector) Family() Family { return FamilyVector }
func (*Vector) isPayload() {}

func (v *Vector) Clone() Payload {
	out := &Vector{Columns: make([][]float64, len(v.Columns))}
	for i, c := range v.Columns {
		out.Columns[i] = append([]float64(nil), c...)
	}
	return out
}

func (v *Vector) Size() Size {
	var sz Size
	sz.Columns = len(v.Columns)
	for _, c := range v.Columns {
		if len(c) > sz.Rows {
			sz.Rows = len(c)
		}
		sz.Bytes += int64(8 * len(c))
	}
	return sz
}

func (v *Vector) Release() { v.Columns = nil }
