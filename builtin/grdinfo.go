package builtin

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/databroker/module"
	"github.com/wippyai/databroker/payload"
)

// GridInfo describes each input grid's header. -C prints one tab-separated
// line per grid: name west east south north zmin zmax dx dy nx ny.
func GridInfo() module.Descriptor {
	d := module.Descriptor{
		Name:    "grdinfo",
		Purpose: "Extract information from grids",
		Usage:   "grdinfo grids [-C] [> out]",
		Keys:    keys(payload.FamilyGrid, payload.FamilyDocument),
	}
	d.Entry = func(_ context.Context, h module.Host, mode module.Mode, args *module.Args) int {
		if status, done := describe(h, d, mode); done {
			return status
		}
		return gridInfo(h, args)
	}
	return d
}

func gridInfo(h module.Host, args *module.Args) int {
	log := h.Logger().With(zap.String("module", "grdinfo"))
	ins, out, ok := endpoints(h, "grdinfo", args)
	if !ok {
		return StatusUsage
	}
	compact := has(args.Options, 'C')

	doc := &payload.Document{}
	for _, in := range ins {
		p, err := h.Input(in)
		if err != nil {
			log.Error("read", zap.Int("id", int(in)), zap.Error(err))
			return module.StatusFailed
		}
		g, ok := p.(*payload.Grid)
		if !ok {
			log.Error("not a grid", zap.Int("id", int(in)), zap.Stringer("family", p.Family()))
			return module.StatusFailed
		}
		name := objectName(h, in)
		if compact {
			doc.Append(compactLine(name, &g.Header))
		} else {
			describeGrid(doc, name, &g.Header)
		}
	}

	if err := h.Output(out, doc); err != nil {
		log.Error("write", zap.Error(err))
		return module.StatusFailed
	}
	return module.StatusOK
}

func describeGrid(doc *payload.Document, name string, hdr *payload.GridHeader) {
	r := hdr.Region
	doc.Append(name + ": Title: " + hdr.Title)
	if hdr.Registration == payload.PixelRegistered {
		doc.Append(name + ": Pixel node registration used")
	} else {
		doc.Append(name + ": Normal node registration used")
	}
	doc.Append(fmt.Sprintf("%s: x_min: %s x_max: %s x_inc: %s nx: %d", name, num(r[0]), num(r[1]), num(hdr.Inc[0]), hdr.NX))
	doc.Append(fmt.Sprintf("%s: y_min: %s y_max: %s y_inc: %s ny: %d", name, num(r[2]), num(r[3]), num(hdr.Inc[1]), hdr.NY))
	doc.Append(fmt.Sprintf("%s: z_min: %s z_max: %s", name, num(hdr.ZMin), num(hdr.ZMax)))
}

func compactLine(name string, hdr *payload.GridHeader) string {
	r := hdr.Region
	fields := []string{
		name,
		num(r[0]), num(r[1]), num(r[2]), num(r[3]),
		num(hdr.ZMin), num(hdr.ZMax),
		num(hdr.Inc[0]), num(hdr.Inc[1]),
		fmt.Sprint(hdr.NX), fmt.Sprint(hdr.NY),
	}
	return strings.Join(fields, "\t")
}
