package ospfd

import "github.com/sirupsen/logrus"

// newLogger returns the default structured logger for an Engine. It is
// never a package global — every Engine carries its own so that
// multiple engines in one process (as in tests) don't interleave
// fields.
func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.InfoLevel)
	return log
}

// routerLog returns a logger pre-populated with the router's identity,
// the way a real daemon tags every line with the instance it came
// from instead of the caller threading a prefix string everywhere.
func routerLog(log *logrus.Logger, routerID RouterID) *logrus.Entry {
	return log.WithField("router_id", routerID.String())
}

func ifaceLog(log *logrus.Logger, routerID RouterID, ifaceName string) *logrus.Entry {
	return log.WithFields(logrus.Fields{
		"router_id": routerID.String(),
		"interface": ifaceName,
	})
}

func nbrLog(log *logrus.Logger, routerID RouterID, ifaceName string, nbrID RouterID) *logrus.Entry {
	return log.WithFields(logrus.Fields{
		"router_id": routerID.String(),
		"interface": ifaceName,
		"neighbor":  nbrID.String(),
	})
}
