package table

import (
	"fmt"

	"github.com/emersion/go-ical"

	"caltab/internal/component"
)

// applyValue writes v into the column's backing property on comp, which
// is always a clone of a live payload. It returns a warning when the
// input was malformed but a best-effort value was still applied; the
// clone is left in a defined state either way. Writing a derived column
// or a column of the wrong kind is a programming error.
func applyValue(comp *ical.Component, kind component.Kind, col Column, v any) error {
	if !col.AppliesTo(kind) || readOnlyColumn(col) {
		panic(fmt.Sprintf("table: column %s is not writable for %s rows", col, kind))
	}

	switch col {
	case ColCategories:
		component.SetCategories(comp, asString(col, v))
		return nil
	case ColClassification:
		component.SetClassification(comp, v.(component.Classification))
		return nil
	case ColSummary:
		component.SetSummary(comp, asString(col, v))
		return nil
	case ColDescription:
		component.SetDescription(comp, asString(col, v))
		return nil
	case ColLocation:
		component.SetLocation(comp, asString(col, v))
		return nil
	case ColStart:
		component.SetDateValue(comp, ical.PropDateTimeStart, asDate(col, v))
		return nil
	}

	switch kind {
	case component.KindEvent:
		return applyEventValue(comp, col, v)
	case component.KindTask:
		return applyTaskValue(comp, col, v)
	default:
		return applyMemoValue(comp, col, v)
	}
}

func applyEventValue(comp *ical.Component, col Column, v any) error {
	switch col {
	case ColEnd:
		component.SetDateValue(comp, ical.PropDateTimeEnd, asDate(col, v))
		// End and duration are redundant; keep only the end.
		comp.Props.Del("DURATION")
	case ColTransparency:
		component.SetTransparency(comp, v.(component.Transparency))
	default:
		panic(fmt.Sprintf("table: unhandled event column %s", col))
	}
	return nil
}
