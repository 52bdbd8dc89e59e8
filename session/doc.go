// Package session is the broker's public entry point.
//
// A Session owns registered objects and dispatches modules against them:
//
//	reg := module.NewRegistry()
//	if err := builtin.Register(reg); err != nil {
//		return err
//	}
//	s, err := session.New("example", session.WithModules(reg))
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//
//	in, _ := s.Register(resource.Spec{
//		Family:    payload.FamilyDataset,
//		Direction: resource.DirIn,
//		Method:    resource.MethodReference,
//		Payload:   ds,
//	})
//	out, _ := s.Register(resource.Spec{
//		Family:    payload.FamilyDocument,
//		Direction: resource.DirOut,
//		Method:    resource.MethodDuplicate,
//	})
//	inTok, _ := s.EncodeToken(in)
//	outTok, _ := s.EncodeToken(out)
//	status, err := s.CallModule(ctx, "info", module.ModeRun, []string{inTok, ">", outTok})
//	doc, err := session.RetrieveAs[*payload.Document](s, out)
//
// A session created without WithModules starts with an empty registry of
// its own, so modules registered on it are invisible to other sessions.
//
// Objects move from Unused to Active on first access and to Exhausted once
// consumed or retrieved. Dataset objects can also be read and written one
// record at a time between BeginIO and EndIO.
package session
