package table

import (
	"fmt"

	"github.com/emersion/go-ical"

	"caltab/internal/component"
)

func applyMemoValue(comp *ical.Component, col Column, v any) error {
	switch col {
	case ColStatus:
		// Memos carry only the bare status; the completion policy that
		// keeps percent and the completion stamp in step is task-only.
		component.SetStatusOnly(comp, v.(component.Status))
	default:
		panic(fmt.Sprintf("table: unhandled memo column %s", col))
	}
	return nil
}
