// Package publish drives one polling cycle: fetch pending rows, filter the
// due ones, dispatch each over the right encoding, write statuses back and
// report totals to the operators.
package publish

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"autopost/internal/notify"
	"autopost/internal/queue"
	"autopost/internal/schedule"
	"autopost/internal/storage"
	logx "autopost/pkg/logx"
)

// Encoding names the delivery strategy for one item. The media count is the
// single dispatch key (besides status and time).
type Encoding string

const (
	EncodingPlain       Encoding = "plain"
	EncodingSingleMedia Encoding = "single-media"
	EncodingGallery     Encoding = "gallery"
)

// EncodingFor picks the delivery strategy from the item's media count.
// Media is blank-filtered at the store boundary, so a cell of only
// whitespace entries behaves as no media.
func EncodingFor(item queue.Item) Encoding {
	switch {
	case len(item.Media) == 0:
		return EncodingPlain
	case len(item.Media) == 1:
		return EncodingSingleMedia
	default:
		return EncodingGallery
	}
}

// Store is the queue-store surface the orchestrator needs.
type Store interface {
	ReadPending(ctx context.Context) ([]queue.Item, error)
	UpdateStatus(ctx context.Context, rowIndex int, st queue.Status) error
}

// Sender is the channel-delivery surface, one method per encoding.
type Sender interface {
	SendPlain(ctx context.Context, body string) error
	SendSingleMedia(ctx context.Context, body, url string) error
	SendGallery(ctx context.Context, body string, urls []string) error
}

// Reporter receives operator notifications. *notify.Notifier satisfies it.
type Reporter interface {
	Info(ctx context.Context, title string, details []notify.KV)
	Error(ctx context.Context, msg string, item *queue.Item)
}

// CycleReport summarizes one fetch->filter->dispatch->report pass.
type CycleReport struct {
	Started time.Time
	Took    time.Duration

	// StoreUnavailable marks a cycle whose fetch failed; zero counts then
	// mean "could not look", not "queue empty".
	StoreUnavailable bool

	Pending   int
	Published int
	Errored   int
}

type Deps struct {
	Store    Store
	Sender   Sender
	Reporter Reporter
	Journal  storage.Journal // optional
	Selector schedule.Selector
	Log      logx.Logger

	// Now overrides the clock (tests). Defaults to time.Now.
	Now func() time.Time
}

type Orchestrator struct {
	deps Deps

	mu   sync.Mutex
	last *CycleReport
}

func New(deps Deps) *Orchestrator {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Log.IsZero() {
		deps.Log = logx.Nop()
	}
	return &Orchestrator{deps: deps}
}

// LastReport returns the most recent cycle report, if any cycle has run.
func (o *Orchestrator) LastReport() (CycleReport, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.last == nil {
		return CycleReport{}, false
	}
	return *o.last, true
}

// RunCycle executes one full cycle. Nothing propagates out of it: per-item
// failures mark the item and continue, and a store outage is reported rather
// than returned.
func (o *Orchestrator) RunCycle(ctx context.Context) CycleReport {
	log := o.deps.Log
	now := o.deps.Now()
	rep := CycleReport{Started: now}

	// FETCHING
	pending, err := o.deps.Store.ReadPending(ctx)
	if err != nil {
		log.Error("pending fetch failed", logx.Err(err))
		rep.StoreUnavailable = true
		rep.Took = o.deps.Now().Sub(now)
		o.report(ctx, rep)
		o.remember(rep)
		return rep
	}
	rep.Pending = len(pending)

	// FILTERING: ineligible items stay pending for a future cycle.
	eligible := make([]queue.Item, 0, len(pending))
	for _, it := range pending {
		d := o.deps.Selector.Eligible(it, now)
		switch {
		case d.ParseErr != nil:
			// Silent-stall failure mode: the row stays pending until a
			// human fixes the cell, so make it loud in the logs.
			log.Warn("unparseable schedule, row stays pending", logx.Int("row", it.RowIndex), logx.Err(d.ParseErr))
		case d.Eligible:
			log.Info("row due", logx.Int("row", it.RowIndex), logx.Float64("delta_min", d.Delta))
			eligible = append(eligible, it)
		default:
			log.Debug("row not due", logx.Int("row", it.RowIndex), logx.Float64("delta_min", d.Delta))
		}
	}

	// DISPATCHING: store order, strictly sequential.
	for _, it := range eligible {
		if o.dispatchOne(ctx, it) {
			rep.Published++
		} else {
			rep.Errored++
		}
	}

	// REPORTING
	rep.Took = o.deps.Now().Sub(now)
	o.report(ctx, rep)
	o.remember(rep)

	log.Info("cycle finished",
		logx.Int("pending", rep.Pending),
		logx.Int("published", rep.Published),
		logx.Int("errored", rep.Errored),
		logx.Duration("took", rep.Took))
	return rep
}

// dispatchOne sends one item and writes its terminal status. It returns true
// on publish. A panic inside the attempt is contained to this item.
func (o *Orchestrator) dispatchOne(ctx context.Context, it queue.Item) (ok bool) {
	log := o.deps.Log
	enc := EncodingFor(it)
	started := o.deps.Now()

	var sendErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				sendErr = fmt.Errorf("dispatch panic: %v", r)
			}
		}()
		switch enc {
		case EncodingPlain:
			sendErr = o.deps.Sender.SendPlain(ctx, it.Body)
		case EncodingSingleMedia:
			sendErr = o.deps.Sender.SendSingleMedia(ctx, it.Body, it.Media[0])
		case EncodingGallery:
			sendErr = o.deps.Sender.SendGallery(ctx, it.Body, it.Media)
		}
	}()

	took := o.deps.Now().Sub(started)

	if sendErr == nil {
		if err := o.deps.Store.UpdateStatus(ctx, it.RowIndex, queue.StatusPublished); err != nil {
			log.Warn("published but status write failed", logx.Int("row", it.RowIndex), logx.Err(err))
		}
		log.Info("row published", logx.Int("row", it.RowIndex), logx.String("encoding", string(enc)))
		o.deps.Reporter.Info(ctx, "Пост опубликован", []notify.KV{
			{Key: "Дата", Value: it.Date},
			{Key: "Время", Value: it.Time},
			{Key: "Длина", Value: strconv.Itoa(len([]rune(it.Body))) + " символов"},
			{Key: "Формат", Value: string(enc)},
		})
	} else {
		if err := o.deps.Store.UpdateStatus(ctx, it.RowIndex, queue.StatusError); err != nil {
			log.Warn("status write failed after send error", logx.Int("row", it.RowIndex), logx.Err(err))
		}
		log.Error("row publish failed", logx.Int("row", it.RowIndex), logx.String("encoding", string(enc)), logx.Err(sendErr))
		item := it
		o.deps.Reporter.Error(ctx, sendErr.Error(), &item)
	}

	o.journal(ctx, storage.PublishRecord{
		At:       started,
		RowIndex: it.RowIndex,
		Encoding: string(enc),
		OK:       sendErr == nil,
		Error:    errString(sendErr),
		TookMS:   took.Milliseconds(),
	})
	return sendErr == nil
}

func (o *Orchestrator) journal(ctx context.Context, rec storage.PublishRecord) {
	if o.deps.Journal == nil {
		return
	}
	if err := o.deps.Journal.AppendPublish(ctx, rec); err != nil {
		o.deps.Log.Warn("journal append failed", logx.Err(err))
	}
}

func (o *Orchestrator) report(ctx context.Context, rep CycleReport) {
	details := []notify.KV{
		{Key: "найдено", Value: strconv.Itoa(rep.Pending)},
		{Key: "опубликовано", Value: strconv.Itoa(rep.Published)},
		{Key: "ошибок", Value: strconv.Itoa(rep.Errored)},
		{Key: "время", Value: rep.Started.Format("15:04:05")},
	}
	title := "Проверка завершена"
	if rep.StoreUnavailable {
		title = "Проверка не выполнена: таблица недоступна"
	}
	o.deps.Reporter.Info(ctx, title, details)
}

func (o *Orchestrator) remember(rep CycleReport) {
	o.mu.Lock()
	o.last = &rep
	o.mu.Unlock()
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
