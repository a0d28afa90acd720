package table

import (
	"fmt"

	"github.com/emersion/go-ical"

	"caltab/internal/component"
)

func applyTaskValue(comp *ical.Component, col Column, v any) error {
	switch col {
	case ColDue:
		component.SetDateValue(comp, "DUE", asDate(col, v))
	case ColCompleted:
		component.SetCompleted(comp, asDate(col, v))
	case ColPercent:
		component.SetPercent(comp, asInt(col, v))
	case ColPriority:
		component.SetPriority(comp, v.(component.Priority))
	case ColStatus:
		component.SetStatus(comp, v.(component.Status))
	case ColURL:
		component.SetURL(comp, asString(col, v))
	case ColGeo:
		s := asString(col, v)
		if s == "" {
			comp.Props.Del("GEO")
			return nil
		}
		lat, lon, err := component.ParseGeoText(s)
		if err != nil {
			// Malformed input still leaves the clone in a defined
			// state: zero coordinates plus a warning to the caller.
			component.SetGeo(comp, 0, 0)
			return err
		}
		component.SetGeo(comp, lat, lon)
	default:
		panic(fmt.Sprintf("table: unhandled task column %s", col))
	}
	return nil
}
