package builtin

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/wippyai/databroker/module"
	"github.com/wippyai/databroker/payload"
	"github.com/wippyai/databroker/record"
	"github.com/wippyai/databroker/resource"
)

// Convert copies datasets record by record.
//
//	-o<cols>  write only the listed zero-based columns, in that order
//	-s        drop records that did not parse
//	-T        drop segment headers
//
// Gaps found by the session's gap predicate become segment breaks.
func Convert() module.Descriptor {
	d := module.Descriptor{
		Name:    "convert",
		Purpose: "Convert, filter or extract columns from table data",
		Usage:   "convert [files] [-o<cols>] [-s] [-T] [> out]",
		Keys:    keys(payload.FamilyDataset, payload.FamilyDataset),
	}
	d.Entry = func(_ context.Context, h module.Host, mode module.Mode, args *module.Args) int {
		if status, done := describe(h, d, mode); done {
			return status
		}
		return convert(h, args)
	}
	return d
}

func convert(h module.Host, args *module.Args) int {
	log := h.Logger().With(zap.String("module", "convert"))
	ins, out, ok := endpoints(h, "convert", args)
	if !ok {
		return StatusUsage
	}

	f := filter{
		skipInvalid: has(args.Options, 's'),
		noSegments:  has(args.Options, 'T'),
	}
	if o, _, ok := args.Options.Find('o'); ok {
		var err error
		if f.cols, err = parseColumns(o.Arg); err != nil {
			log.Error("bad -o column list", zap.String("arg", o.Arg), zap.Error(err))
			return StatusUsage
		}
	}

	if err := h.BeginIO(out, resource.DirOut); err != nil {
		log.Error("open output", zap.Error(err))
		return module.StatusFailed
	}
	// The output is flushed by EndIO, so its error decides the status too.
	status := convertInputs(h, log, ins, out, f)
	if err := h.EndIO(out); err != nil {
		log.Error("close output", zap.Error(err))
		return module.StatusFailed
	}
	return status
}

type filter struct {
	cols        []int
	skipInvalid bool
	noSegments  bool
}

func convertInputs(h module.Host, log *zap.Logger, ins []resource.ID, out resource.ID, f filter) int {
	var buf []float64
	for _, in := range ins {
		if err := h.BeginIO(in, resource.DirIn); err != nil {
			log.Error("open input", zap.Int("id", int(in)), zap.Error(err))
			return module.StatusFailed
		}
		for {
			rec, err := h.GetRecord(in)
			if err != nil {
				log.Error("read", zap.Int("id", int(in)), zap.Error(err))
				h.EndIO(in)
				return module.StatusFailed
			}
			if rec.Kind == record.KindEndOfSet {
				break
			}

			var mode record.WriteMode
			switch rec.Kind {
			case record.KindEndOfSubSource:
				continue
			case record.KindInvalid:
				if f.skipInvalid {
					continue
				}
				mode = record.WriteText
			case record.KindSegmentHeader, record.KindGap:
				if f.noSegments {
					continue
				}
				mode = record.WriteSegmentHeader
				if rec.Kind == record.KindGap {
					rec = record.Record{}
				}
			case record.KindTableHeader:
				mode = record.WriteTableHeader
			default:
				mode = record.WriteData
				if f.cols != nil {
					buf = selectColumns(buf[:0], rec.Fields, f.cols)
					rec.Fields = buf
				}
			}
			if err := h.PutRecord(out, mode, rec); err != nil {
				log.Error("write", zap.Error(err))
				h.EndIO(in)
				return module.StatusFailed
			}
		}
		if err := h.EndIO(in); err != nil {
			log.Error("close input", zap.Error(err))
			return module.StatusFailed
		}
	}
	return module.StatusOK
}

// selectColumns appends the chosen fields to dst; missing columns are NaN.
func selectColumns(dst, fields []float64, cols []int) []float64 {
	for _, c := range cols {
		if c < len(fields) {
			dst = append(dst, fields[c])
		} else {
			dst = append(dst, nan)
		}
	}
	return dst
}

var nan = math.NaN()
