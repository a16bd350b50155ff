package modules

import (
	"github.com/me-ChrisHandoko/my-gloria-sub005/pkg/application"
)

// Load registers every module with the application in order.
func Load(app application.Application, modules ...application.Module) error {
	for _, module := range modules {
		if err := module.Register(app); err != nil {
			return err
		}
		app.Logger().WithField("module", module.Name()).Debug("module registered")
	}
	return nil
}
