package option

import (
	"strconv"
	"strings"

	"github.com/wippyai/databroker/errors"
)

// Sentinel flags for options that carry no letter of their own.
const (
	FlagInput    byte = '<'
	FlagOutput   byte = '>'
	FlagSynopsis byte = '-'
)

// Option is one (flag, argument) pair of a module command line.
type Option struct {
	Arg  string
	Flag byte
}

// Make builds an option, dropping a trailing line terminator from arg.
func Make(flag byte, arg string) Option {
	return Option{Flag: flag, Arg: strings.TrimRight(arg, "\r\n")}
}

// IsInput reports whether o names an input source.
func (o Option) IsInput() bool { return o.Flag == FlagInput }

// IsOutput reports whether o names the output destination.
func (o Option) IsOutput() bool { return o.Flag == FlagOutput }

// String renders o the way it would appear on a command line.
func (o Option) String() string {
	switch o.Flag {
	case FlagInput:
		return o.Arg
	case FlagOutput:
		return ">" + o.Arg
	case FlagSynopsis:
		return "-"
	}
	return "-" + string(o.Flag) + o.Arg
}

// List is an ordered option list.
type List []Option

// Append adds o at the end. A list holds at most one output option.
func (l List) Append(o Option) (List, error) {
	if o.Flag == FlagOutput {
		if _, _, ok := l.Find(FlagOutput); ok {
			return l, errors.New(errors.PhaseOption, errors.KindOnlyOneAllowed).
				Name(o.Arg).
				Detail("only one output destination allowed").
				Build()
		}
	}
	return append(l, o), nil
}

// Insert places o before position i; i past the end appends.
func (l List) Insert(i int, o Option) List {
	if i < 0 {
		i = 0
	}
	if i >= len(l) {
		return append(l, o)
	}
	l = append(l, Option{})
	copy(l[i+1:], l[i:])
	l[i] = o
	return l
}

// Find returns the first option with the given flag and its index.
func (l List) Find(flag byte) (Option, int, bool) {
	for i, o := range l {
		if o.Flag == flag {
			return o, i, true
		}
	}
	return Option{}, -1, false
}

// All returns every option with the given flag, in order.
func (l List) All(flag byte) []Option {
	var out []Option
	for _, o := range l {
		if o.Flag == flag {
			out = append(out, o)
		}
	}
	return out
}

// Update replaces the argument of the first option with the given flag.
func (l List) Update(flag byte, arg string) error {
	_, i, ok := l.Find(flag)
	if !ok {
		return missing(flag)
	}
	l[i].Arg = strings.TrimRight(arg, "\r\n")
	return nil
}

// Delete removes the first option with the given flag.
func (l List) Delete(flag byte) (List, error) {
	_, i, ok := l.Find(flag)
	if !ok {
		return l, missing(flag)
	}
	return append(l[:i:i], l[i+1:]...), nil
}

// Reset empties the list in place, keeping its storage.
func (l *List) Reset() {
	*l = (*l)[:0]
}

// Args converts the list back into an argument vector that Parse accepts.
func (l List) Args() []string {
	out := make([]string, 0, len(l))
	for _, o := range l {
		switch o.Flag {
		case FlagInput:
			out = append(out, o.Arg)
		case FlagOutput:
			out = append(out, ">", o.Arg)
		default:
			out = append(out, o.String())
		}
	}
	return out
}

// Command joins Args into a single line, quoting words with blanks.
func (l List) Command() string {
	args := l.Args()
	for i, a := range args {
		if a == "" || strings.ContainsAny(a, " \t") {
			args[i] = strconv.Quote(a)
		}
	}
	return strings.Join(args, " ")
}

// Clone returns an independent copy of l.
func (l List) Clone() List {
	return append(List(nil), l...)
}

func missing(flag byte) error {
	return errors.New(errors.PhaseOption, errors.KindInvalidInput).
		Name(string(flag)).
		Detail("no -%c option in list", flag).
		Build()
}
