package table

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/emersion/go-ical"

	"caltab/internal/backend"
	"caltab/internal/component"
	"caltab/internal/dates"
)

// countingBackend counts writes so tests can assert "zero backend calls".
type countingBackend struct {
	*backend.Memory
	creates, modifies, removes int
}

func (c *countingBackend) Create(ctx context.Context, comp *ical.Component) (string, error) {
	c.creates++
	return c.Memory.Create(ctx, comp)
}

func (c *countingBackend) Modify(ctx context.Context, comp *ical.Component, scope backend.Scope) error {
	c.modifies++
	return c.Memory.Modify(ctx, comp, scope)
}

func (c *countingBackend) Remove(ctx context.Context, uid, recurrenceID string) error {
	c.removes++
	return c.Memory.Remove(ctx, uid, recurrenceID)
}

// blockingBackend parks Modify until the job is cancelled.
type blockingBackend struct {
	*backend.Memory
}

func (b *blockingBackend) Modify(ctx context.Context, comp *ical.Component, scope backend.Scope) error {
	<-ctx.Done()
	return ctx.Err()
}

type scopeFunc func(*component.Record) (backend.Scope, bool)

func (f scopeFunc) ChooseScope(r *component.Record) (backend.Scope, bool) { return f(r) }

type alertRecorder struct {
	alerts []string
}

func (a *alertRecorder) record(source, msg string) {
	a.alerts = append(a.alerts, source+": "+msg)
}

func recurringEvent(uid string) *ical.Component {
	comp := eventAt(uid, time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC), time.Hour)
	p := ical.NewProp("RRULE")
	p.Value = "FREQ=DAILY;COUNT=10"
	comp.Props.Set(p)
	return comp
}

func TestAppendTaskArrivesViaNotification(t *testing.T) {
	mem := backend.NewMemory(backend.SourceInfo{ID: "mem", Name: "Memory"})
	m, rec := testModel(t, mem)
	if err := m.SetTimeRange(augStart, augEnd); err != nil {
		t.Fatalf("set time range: %v", err)
	}

	j := m.Append(component.KindTask, map[Column]any{ColSummary: "Buy milk"})
	j.Wait()

	if rec.appended != 1 {
		t.Errorf("appended = %d, want 1 advisory signal", rec.appended)
	}
	if m.Len() != 1 {
		t.Fatalf("len = %d, want the echoed row", m.Len())
	}
	if got := m.ValueAt(0, ColSummary); got != "Buy milk" {
		t.Errorf("summary = %q", got)
	}
	if got := m.ValueAt(0, ColStatus); got != component.StatusNeedsAction {
		t.Errorf("status = %v, want NeedsAction", got)
	}
	if got := m.ValueAt(0, ColPercent); got != -1 {
		t.Errorf("percent = %v, want unset", got)
	}
	if uid := m.ValueAt(0, ColUID).(string); uid == "" {
		t.Error("created task has no UID")
	}
}

func TestAppendMemoDefaultsToToday(t *testing.T) {
	mem := backend.NewMemory(backend.SourceInfo{ID: "mem", Name: "Memory"})
	m, _ := testModel(t, mem)
	// The window must straddle the real "today" so the echoed memo, dated
	// today, lands inside it.
	now := time.Now().UTC()
	if err := m.SetTimeRange(now.AddDate(0, 0, -1), now.AddDate(0, 0, 1)); err != nil {
		t.Fatalf("set time range: %v", err)
	}

	j := m.Append(component.KindMemo, map[Column]any{ColSummary: "note"})
	j.Wait()

	if m.Len() != 1 {
		t.Fatalf("len = %d, want 1", m.Len())
	}
	start := m.ValueAt(0, ColStart).(dates.Value)
	if !start.DateOnly {
		t.Fatal("memo default start should be date-only")
	}
	if got := start.Format(true); got != time.Now().UTC().Format("2006-01-02") {
		t.Errorf("memo start = %q, want today", got)
	}
}

func TestAppendWithoutDefaultSourceAlerts(t *testing.T) {
	mem := backend.NewMemory(backend.SourceInfo{ID: "mem", Name: "Memory"})
	m, _ := testModel(t, mem)
	m.Config().DefaultSource = "nowhere"
	alerts := &alertRecorder{}
	m.SetAlertFunc(alerts.record)
	if err := m.SetTimeRange(augStart, augEnd); err != nil {
		t.Fatalf("set time range: %v", err)
	}

	j := m.Append(component.KindTask, map[Column]any{ColSummary: "lost"})
	j.Wait()

	if len(alerts.alerts) != 1 {
		t.Fatalf("alerts = %v, want one failure", alerts.alerts)
	}
	if m.Len() != 0 {
		t.Errorf("len = %d, failed append must not touch the store", m.Len())
	}
}

func TestAppendToReadOnlyDefaultAlerts(t *testing.T) {
	mem := backend.NewMemory(backend.SourceInfo{ID: "mem", Name: "Memory"})
	mem.SetReadOnly(true)
	m, _ := testModel(t, mem)
	alerts := &alertRecorder{}
	m.SetAlertFunc(alerts.record)
	if err := m.SetTimeRange(augStart, augEnd); err != nil {
		t.Fatalf("set time range: %v", err)
	}

	j := m.Append(component.KindTask, map[Column]any{ColSummary: "nope"})
	j.Wait()

	if len(alerts.alerts) != 1 {
		t.Fatalf("alerts = %v, want the read-only refusal", alerts.alerts)
	}
	if m.Len() != 0 {
		t.Errorf("len = %d, want 0", m.Len())
	}
}

func TestSetValueCommitsThroughNotification(t *testing.T) {
	mem := backend.NewMemory(backend.SourceInfo{ID: "mem", Name: "Memory"})
	mem.Put(taskComp("t1", "old summary"))
	m, rec := testModel(t, mem)
	if err := m.SetTimeRange(augStart, augEnd); err != nil {
		t.Fatalf("set time range: %v", err)
	}
	rec.reset()

	j, err := m.SetValue(0, ColSummary, "new summary")
	if err != nil {
		t.Fatalf("set value: %v", err)
	}
	j.Wait()

	if got := m.ValueAt(0, ColSummary); got != "new summary" {
		t.Errorf("summary = %q", got)
	}
	if len(rec.changed) != 1 {
		t.Errorf("changed = %v, want exactly one modify notification", rec.changed)
	}
	if m.Len() != 1 {
		t.Errorf("len = %d", m.Len())
	}
}

func TestRecurrenceEditCancelledMakesNoCalls(t *testing.T) {
	mem := &countingBackend{Memory: backend.NewMemory(backend.SourceInfo{ID: "mem", Name: "Memory"})}
	mem.Put(recurringEvent("series"))
	m, rec := testModel(t, mem)
	if err := m.SetTimeRange(augStart, augEnd); err != nil {
		t.Fatalf("set time range: %v", err)
	}
	rec.reset()

	m.SetScopeChooser(scopeFunc(func(*component.Record) (backend.Scope, bool) {
		return 0, false
	}))

	j, err := m.SetValue(0, ColSummary, "changed")
	if err != nil {
		t.Fatalf("set value: %v", err)
	}
	if j != nil {
		t.Fatal("cancelled edit must not produce a job")
	}
	if mem.modifies != 0 || mem.creates != 0 || mem.removes != 0 {
		t.Errorf("backend calls after cancel: %d/%d/%d", mem.creates, mem.modifies, mem.removes)
	}
	if got := m.ValueAt(0, ColSummary); got != "event series" {
		t.Errorf("summary = %q, want untouched", got)
	}
	if len(rec.changed) != 0 {
		t.Errorf("changed = %v, want none", rec.changed)
	}
}

func TestRecurrenceEditUsesChosenScope(t *testing.T) {
	mem := backend.NewMemory(backend.SourceInfo{ID: "mem", Name: "Memory"})
	mem.Put(recurringEvent("series"))
	m, _ := testModel(t, mem)
	if err := m.SetTimeRange(augStart, augEnd); err != nil {
		t.Fatalf("set time range: %v", err)
	}

	var prompted bool
	m.SetScopeChooser(scopeFunc(func(*component.Record) (backend.Scope, bool) {
		prompted = true
		return backend.ScopeThisAndFuture, true
	}))

	j, err := m.SetValue(0, ColSummary, "renamed")
	if err != nil {
		t.Fatalf("set value: %v", err)
	}
	j.Wait()

	if !prompted {
		t.Error("recurring edit did not consult the scope chooser")
	}
	if got := m.ValueAt(0, ColSummary); got != "renamed" {
		t.Errorf("summary = %q", got)
	}
}

func TestNonRecurringEditSkipsChooser(t *testing.T) {
	mem := backend.NewMemory(backend.SourceInfo{ID: "mem", Name: "Memory"})
	mem.Put(taskComp("t1", "plain"))
	m, _ := testModel(t, mem)
	if err := m.SetTimeRange(augStart, augEnd); err != nil {
		t.Fatalf("set time range: %v", err)
	}

	m.SetScopeChooser(scopeFunc(func(*component.Record) (backend.Scope, bool) {
		t.Error("chooser consulted for a non-recurring component")
		return 0, false
	}))

	j, err := m.SetValue(0, ColSummary, "edited")
	if err != nil {
		t.Fatalf("set value: %v", err)
	}
	j.Wait()
}

func TestMemoStatusEditWritesBareStatus(t *testing.T) {
	mem := backend.NewMemory(backend.SourceInfo{ID: "mem", Name: "Memory"})
	memo := ical.NewComponent("VJOURNAL")
	memo.Props.SetText(ical.PropUID, "m1")
	memo.Props.SetText(ical.PropSummary, "journal")
	mem.Put(memo)

	m, _ := testModel(t, mem)
	if err := m.SetTimeRange(augStart, augEnd); err != nil {
		t.Fatalf("set time range: %v", err)
	}

	j, err := m.SetValue(0, ColStatus, component.StatusCompleted)
	if err != nil {
		t.Fatalf("set value: %v", err)
	}
	j.Wait()

	if got := m.ValueAt(0, ColStatus); got != component.StatusCompleted {
		t.Errorf("status = %v, want Completed", got)
	}
	// The completion policy that keeps percent and the completion stamp
	// in step with status applies to tasks only.
	payload := m.Record(0).Payload()
	if p := payload.Props.Get("PERCENT-COMPLETE"); p != nil {
		t.Errorf("memo gained PERCENT-COMPLETE=%q", p.Value)
	}
	if p := payload.Props.Get("COMPLETED"); p != nil {
		t.Errorf("memo gained COMPLETED=%q", p.Value)
	}
}

func TestMalformedGeoWarnsAndStoresZero(t *testing.T) {
	mem := backend.NewMemory(backend.SourceInfo{ID: "mem", Name: "Memory"})
	seed := taskComp("t1", "geo task")
	p := ical.NewProp("GEO")
	p.Value = "40.7;-74.0"
	seed.Props.Set(p)
	mem.Put(seed)

	m, _ := testModel(t, mem)
	alerts := &alertRecorder{}
	m.SetAlertFunc(alerts.record)
	if err := m.SetTimeRange(augStart, augEnd); err != nil {
		t.Fatalf("set time range: %v", err)
	}

	j, err := m.SetValue(0, ColGeo, "not-a-coordinate")
	if err != nil {
		t.Fatalf("set value: %v", err)
	}
	j.Wait()

	if len(alerts.alerts) != 1 {
		t.Fatalf("alerts = %v, want one warning", alerts.alerts)
	}
	if got := m.ValueAt(0, ColGeo); got != "0,0" {
		t.Errorf("geo = %q, want best-effort zero coordinates", got)
	}
}

func TestReadOnlySourceRefusesEdits(t *testing.T) {
	mem := backend.NewMemory(backend.SourceInfo{ID: "mem", Name: "Memory"})
	mem.Put(taskComp("t1", "frozen"))
	m, _ := testModel(t, mem)
	if err := m.SetTimeRange(augStart, augEnd); err != nil {
		t.Fatalf("set time range: %v", err)
	}
	mem.SetReadOnly(true)

	if m.IsEditable(0, ColSummary) {
		t.Error("read-only source reported editable")
	}
	if _, err := m.SetValue(0, ColSummary, "nope"); !errors.Is(err, backend.ErrReadOnly) {
		t.Errorf("err = %v, want ErrReadOnly", err)
	}
	if _, err := m.Remove(0); !errors.Is(err, backend.ErrReadOnly) {
		t.Errorf("remove err = %v, want ErrReadOnly", err)
	}
}

func TestDerivedColumnsAreNeverEditable(t *testing.T) {
	mem := backend.NewMemory(backend.SourceInfo{ID: "mem", Name: "Memory"})
	mem.Put(taskComp("t1", "task"))
	m, _ := testModel(t, mem)
	if err := m.SetTimeRange(augStart, augEnd); err != nil {
		t.Fatalf("set time range: %v", err)
	}

	for _, col := range []Column{ColColor, ColCreated, ColLastModified, ColUID, ColSourceName, ColComplete, ColOverdue, ColStrikeout} {
		if m.IsEditable(0, col) {
			t.Errorf("column %s reported editable", col)
		}
		if _, err := m.SetValue(0, col, nil); err == nil {
			t.Errorf("column %s accepted a write", col)
		}
	}
}

func TestCancelledJobStaysSilent(t *testing.T) {
	mem := &blockingBackend{Memory: backend.NewMemory(backend.SourceInfo{ID: "mem", Name: "Memory"})}
	mem.Memory.Put(taskComp("t1", "stuck"))
	m, rec := testModel(t, mem)
	alerts := &alertRecorder{}
	m.SetAlertFunc(alerts.record)
	if err := m.SetTimeRange(augStart, augEnd); err != nil {
		t.Fatalf("set time range: %v", err)
	}
	rec.reset()

	j, err := m.SetValue(0, ColSummary, "never lands")
	if err != nil {
		t.Fatalf("set value: %v", err)
	}
	j.Cancel()
	j.Wait()

	if len(alerts.alerts) != 0 {
		t.Errorf("alerts = %v, cancellation is not an error", alerts.alerts)
	}
	if got := m.ValueAt(0, ColSummary); got != "stuck" {
		t.Errorf("summary = %q, want untouched", got)
	}
	if len(rec.changed) != 0 {
		t.Errorf("changed = %v, want none", rec.changed)
	}
}

func TestRemoveDeletesThroughNotification(t *testing.T) {
	mem := backend.NewMemory(backend.SourceInfo{ID: "mem", Name: "Memory"})
	mem.Put(taskComp("t1", "doomed"))
	m, rec := testModel(t, mem)
	if err := m.SetTimeRange(augStart, augEnd); err != nil {
		t.Fatalf("set time range: %v", err)
	}
	rec.reset()

	j, err := m.Remove(0)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	j.Wait()

	if m.Len() != 0 {
		t.Fatalf("len = %d, want 0", m.Len())
	}
	if len(rec.deleted) != 1 || len(rec.removedBatches) != 1 {
		t.Errorf("deleted=%v batches=%d, want one of each", rec.deleted, len(rec.removedBatches))
	}
}

func TestEventEndEditDropsDuration(t *testing.T) {
	mem := backend.NewMemory(backend.SourceInfo{ID: "mem", Name: "Memory"})
	seed := eventAt("e1", time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC), time.Hour)
	d := ical.NewProp("DURATION")
	d.Value = "PT1H"
	seed.Props.Set(d)
	mem.Put(seed)

	m, _ := testModel(t, mem)
	if err := m.SetTimeRange(augStart, augEnd); err != nil {
		t.Fatalf("set time range: %v", err)
	}

	end := m.ValueAt(0, ColEnd)
	j, err := m.SetValue(0, ColEnd, end)
	if err != nil {
		t.Fatalf("set value: %v", err)
	}
	j.Wait()

	if m.Record(0).Payload().Props.Get("DURATION") != nil {
		t.Error("writing the end time must drop the stored duration")
	}
}
