package builtin

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/databroker/module"
	"github.com/wippyai/databroker/option"
	"github.com/wippyai/databroker/payload"
	"github.com/wippyai/databroker/resource"
)

// StatusUsage is returned when a module is called with arguments it cannot
// use.
const StatusUsage = 2

// Descriptors returns the built-in modules.
func Descriptors() []module.Descriptor {
	return []module.Descriptor{Convert(), Info(), GridInfo()}
}

// Register adds every built-in module to reg.
func Register(reg *module.Registry) error {
	for _, d := range Descriptors() {
		if err := reg.Register(d); err != nil {
			return err
		}
	}
	return nil
}

func keys(in, out payload.Family) []module.Key {
	return []module.Key{
		{Flag: option.FlagInput, Family: in, Direction: resource.DirIn},
		{Flag: option.FlagOutput, Family: out, Direction: resource.DirOut},
	}
}

// describe answers the usage and synopsis modes. It reports whether mode
// was one of them.
func describe(h module.Host, d module.Descriptor, mode module.Mode) (int, bool) {
	switch mode {
	case module.ModeUsage:
		h.Logger().Info(d.Name+" - "+d.Purpose, zap.String("usage", d.Usage))
		return module.StatusOK, true
	case module.ModeSynopsis:
		h.Logger().Info(d.Usage)
		return module.StatusOK, true
	}
	return 0, false
}

// endpoints returns the bound inputs and the output, logging what is missing.
func endpoints(h module.Host, name string, args *module.Args) ([]resource.ID, resource.ID, bool) {
	in := args.Inputs()
	out, ok := args.Output()
	if len(in) == 0 || !ok {
		h.Logger().Error(name+": needs an input and an output", zap.Int("inputs", len(in)), zap.Bool("output", ok))
		return nil, 0, false
	}
	return in, out, true
}

// parseColumns reads a comma-separated list of zero-based column numbers.
func parseColumns(arg string) ([]int, error) {
	var cols []int
	for _, part := range strings.Split(arg, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, strconv.ErrRange
		}
		cols = append(cols, n)
	}
	return cols, nil
}

// has reports whether the option list carries flag.
func has(l option.List, flag byte) bool {
	_, _, ok := l.Find(flag)
	return ok
}
