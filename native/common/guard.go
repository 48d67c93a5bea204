// Package common holds checks shared by native modules.
package common

import (
	"fmt"

	coreerrors "vaultdex/core/errors"
)

// ErrModulePaused is returned when a trading entry point runs while its
// module is halted by the admin.
var ErrModulePaused = coreerrors.New(coreerrors.ErrState, "module paused")

// PauseView reports the halt flag of a named module.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard fails with ErrModulePaused when view reports module as halted. A nil
// view or an empty module name never blocks.
func Guard(view PauseView, module string) error {
	if view == nil || module == "" || !view.IsPaused(module) {
		return nil
	}
	return fmt.Errorf("%s: %w", module, ErrModulePaused)
}
