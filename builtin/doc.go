// Package builtin holds the modules compiled into the broker.
//
//	convert  copy and filter table data record by record
//	info     report column extents of table data
//	grdinfo  describe grid headers
//
// Register installs them into a module.Registry:
//
//	reg := module.NewRegistry()
//	if err := builtin.Register(reg); err != nil {
//		return err
//	}
package builtin
