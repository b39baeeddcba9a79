package poller

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	logx "autopost/pkg/logx"
)

// Runner executes one polling cycle to completion.
type Runner func(ctx context.Context)

type Config struct {
	// Schedule is a cron expression or interval (see ParseSchedule).
	Schedule string
	// Location is the reference zone cron fields are evaluated in.
	Location *time.Location
}

type Poller struct {
	spec ParsedSpec
	loc  *time.Location
	run  Runner
	log  logx.Logger
}

func New(cfg Config, run Runner, log logx.Logger) (*Poller, error) {
	spec, err := ParseSchedule(cfg.Schedule)
	if err != nil {
		return nil, err
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Poller{spec: spec, loc: loc, run: run, log: log}, nil
}

// Run blocks until ctx is cancelled, waking the runner per the schedule.
// Cycles never overlap: interval mode runs the cycle inline before sleeping
// again, cron mode skips a tick while the previous cycle is still going.
func (p *Poller) Run(ctx context.Context) error {
	if p.spec.Kind == SpecInterval {
		return p.runInterval(ctx)
	}
	return p.runCron(ctx)
}

func (p *Poller) runInterval(ctx context.Context) error {
	p.log.Info("poll loop started", logx.Duration("every", p.spec.Every))
	t := time.NewTimer(p.spec.Every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			p.run(ctx)
			t.Reset(p.spec.Every)
		}
	}
}

func (p *Poller) runCron(ctx context.Context) error {
	clog := cronLogger{p.log}
	c := cron.New(
		cron.WithLocation(p.loc),
		cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
	)
	_, err := c.AddFunc(p.spec.Cron, func() { p.run(ctx) })
	if err != nil {
		return err
	}
	p.log.Info("poll loop started", logx.String("cron", p.spec.Cron), logx.String("tz", p.loc.String()))
	c.Start()
	<-ctx.Done()
	// Let an in-flight cycle finish before returning.
	<-c.Stop().Done()
	return ctx.Err()
}

// cronLogger adapts logx to robfig/cron's logger.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...interface{}) {
	l.log.Debug("cron: "+msg, logx.Any("kv", kv))
}

func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	l.log.Error("cron: "+msg, logx.Err(err), logx.Any("kv", kv))
}
