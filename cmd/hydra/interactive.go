package main

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/Continuum-Intelligence/continuum-hydra/pkg/accel/types"
)

// selectActionsInteractively presents a multi-select over the plan rows
// with the recommended, supported actions pre-checked, then asks for a
// final confirmation. Aborting the form maps to the interrupt exit code.
func selectActionsInteractively(recommendations []types.ActionDescriptor) (ids []string, confirmed bool, err error) {
	options := make([]huh.Option[string], 0, len(recommendations))
	for _, rec := range recommendations {
		option := huh.NewOption(actionOptionLabel(rec), rec.ActionID)
		if rec.Recommended && rec.Supported {
			option = option.Selected(true)
		}
		options = append(options, option)
	}

	var selected []string
	var confirm bool

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Accelerate Actions").
				Description("Space toggles, enter accepts.").
				Options(options...).
				Value(&selected),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Apply selected actions?").
				Affirmative("Apply").
				Negative("Cancel").
				Value(&confirm),
		),
	)

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil, false, &exitError{code: 130, message: "Interrupted"}
		}
		return nil, false, fmt.Errorf("interactive selection: %w", err)
	}

	return selected, confirm, nil
}

// actionOptionLabel formats one plan row for the selection list.
func actionOptionLabel(rec types.ActionDescriptor) string {
	root := ""
	if rec.RequiresRoot {
		root = " root"
	}
	supported := ""
	if !rec.Supported {
		supported = " (unsupported)"
	}
	return fmt.Sprintf("%s [%s, %s risk%s]%s", rec.ActionID, rec.Category, rec.Risk, root, supported)
}
