package builtin

import (
	"context"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/databroker/module"
	"github.com/wippyai/databroker/payload"
	"github.com/wippyai/databroker/record"
	"github.com/wippyai/databroker/resource"
)

// Info reports the extent of each column of every input dataset, one line
// per input:
//
//	name: N = 3	<0/4>	<1/9>
//
// -C writes the bare numbers tab-separated and -A merges all inputs into a
// single line.
func Info() module.Descriptor {
	d := module.Descriptor{
		Name:    "info",
		Purpose: "Report extreme values of table columns",
		Usage:   "info [files] [-A] [-C] [> out]",
		Keys:    keys(payload.FamilyDataset, payload.FamilyDocument),
	}
	d.Entry = func(_ context.Context, h module.Host, mode module.Mode, args *module.Args) int {
		if status, done := describe(h, d, mode); done {
			return status
		}
		return info(h, args)
	}
	return d
}

// extent accumulates per-column bounds.
type extent struct {
	min, max []float64
	rows     int
}

func (e *extent) add(fields []float64) {
	for len(e.min) < len(fields) {
		e.min = append(e.min, math.Inf(1))
		e.max = append(e.max, math.Inf(-1))
	}
	for i, v := range fields {
		if math.IsNaN(v) {
			continue
		}
		e.min[i] = math.Min(e.min[i], v)
		e.max[i] = math.Max(e.max[i], v)
	}
	e.rows++
}

func (e *extent) format(name string, numeric bool) string {
	var b strings.Builder
	if !numeric {
		b.WriteString(name)
		b.WriteString(": N = ")
		b.WriteString(strconv.Itoa(e.rows))
	}
	for i := range e.min {
		lo, hi := e.min[i], e.max[i]
		if lo > hi {
			lo, hi = math.NaN(), math.NaN()
		}
		if numeric {
			if b.Len() > 0 {
				b.WriteByte('\t')
			}
			b.WriteString(num(lo))
			b.WriteByte('\t')
			b.WriteString(num(hi))
			continue
		}
		b.WriteString("\t<")
		b.WriteString(num(lo))
		b.WriteByte('/')
		b.WriteString(num(hi))
		b.WriteByte('>')
	}
	return b.String()
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func info(h module.Host, args *module.Args) int {
	log := h.Logger().With(zap.String("module", "info"))
	ins, out, ok := endpoints(h, "info", args)
	if !ok {
		return StatusUsage
	}
	numeric := has(args.Options, 'C')
	all := has(args.Options, 'A')

	doc := &payload.Document{}
	total := &extent{}
	var rows int
	for _, in := range ins {
		e := total
		if !all {
			e = &extent{}
		}
		before := e.rows
		if err := scan(h, in, e); err != nil {
			log.Error("read", zap.Int("id", int(in)), zap.Error(err))
			return module.StatusFailed
		}
		rows += e.rows - before
		if !all {
			doc.Append(e.format(objectName(h, in), numeric))
		}
	}
	if all {
		doc.Append(total.format("all", numeric))
	}
	if rows == 0 {
		log.Warn("no data records")
	}

	if err := h.Output(out, doc); err != nil {
		log.Error("write", zap.Error(err))
		return module.StatusFailed
	}
	return module.StatusOK
}

// scan streams one input into e.
func scan(h module.Host, id resource.ID, e *extent) error {
	if err := h.BeginIO(id, resource.DirIn); err != nil {
		return err
	}
	for {
		rec, err := h.GetRecord(id)
		if err != nil {
			h.EndIO(id)
			return err
		}
		switch rec.Kind {
		case record.KindEndOfSet:
			return h.EndIO(id)
		case record.KindData:
			e.add(rec.Fields)
		}
	}
}

func objectName(h module.Host, id resource.ID) string {
	obj, err := h.Object(id)
	if err != nil {
		return "<" + strconv.Itoa(int(id)) + ">"
	}
	return obj.Name()
}
