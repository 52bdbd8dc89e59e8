package session

import (
	"context"

	"github.com/wippyai/databroker/errors"
	"github.com/wippyai/databroker/module"
	"github.com/wippyai/databroker/option"
)

// CallModule runs the named module. args may be a command string, an argv
// slice or an option.List; the caller's list is never modified.
//
// A miss returns module.StatusDispatch with a ModuleNotFound error and
// leaves the session's objects untouched. Otherwise the module's status is
// returned as is.
func (s *Session) CallModule(ctx context.Context, name string, mode module.Mode, args any) (int, error) {
	if err := s.check(); err != nil {
		return module.StatusDispatch, err
	}
	opts, err := toOptions(args)
	if err != nil {
		return module.StatusDispatch, s.fail(err)
	}
	status, err := s.modules.Call(ctx, s, name, mode, opts)
	return status, s.fail(err)
}

func toOptions(args any) (option.List, error) {
	switch v := args.(type) {
	case nil:
		return nil, nil
	case string:
		return option.ParseCommand(v)
	case []string:
		return option.Parse(v)
	case option.List:
		return v, nil
	}
	return nil, errors.New(errors.PhaseDispatch, errors.KindInvalidInput).
		Detail("unsupported argument type %T", args).Build()
}

var _ module.Host = (*Session)(nil)
