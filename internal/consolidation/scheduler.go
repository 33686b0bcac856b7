package consolidation

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shaneholloman/mcp-memory-service-sub001/internal/logging"
)

// Scheduler drives the pipeline on the configured daily/weekly/monthly cron
// strings. No entrypoint in this module constructs one (cmd/mnemod does
// not); the stdio MCP server must never construct one, to avoid two
// processes racing to run the same consolidation window.
type Scheduler struct {
	pipeline *Pipeline
	daily    cronSpec
	weekly   cronSpec
	monthly  cronSpec
	log      logging.Logger

	ctx          context.Context
	cancel       context.CancelFunc
	backgroundWG sync.WaitGroup
	lastRun      map[string]time.Time
	mu           sync.Mutex
}

// NewScheduler parses the three cron strings and builds a Scheduler ready
// to Start. An invalid cron string disables that schedule with a warning
// rather than failing construction.
func NewScheduler(pipeline *Pipeline, dailyCron, weeklyCron, monthlyCron string, log logging.Logger) *Scheduler {
	log = log.WithComponent("consolidation-scheduler")
	s := &Scheduler{pipeline: pipeline, log: log, lastRun: make(map[string]time.Time)}

	var err error
	if s.daily, err = parseCron(dailyCron); err != nil {
		log.Warn("invalid daily cron, schedule disabled", "cron", dailyCron, "error", err.Error())
	}
	if s.weekly, err = parseCron(weeklyCron); err != nil {
		log.Warn("invalid weekly cron, schedule disabled", "cron", weeklyCron, "error", err.Error())
	}
	if s.monthly, err = parseCron(monthlyCron); err != nil {
		log.Warn("invalid monthly cron, schedule disabled", "cron", monthlyCron, "error", err.Error())
	}
	return s
}

// Start launches the background minute-resolution ticker loop. Stop cancels
// it and waits for the current tick, if any, to finish.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.backgroundWG.Add(1)
	go s.loop()
}

// Stop cancels the scheduler loop and waits for it to exit.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.backgroundWG.Wait()
}

func (s *Scheduler) loop() {
	defer s.backgroundWG.Done()
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case now := <-ticker.C:
			s.tick(now.UTC())
		}
	}
}

func (s *Scheduler) tick(now time.Time) {
	for _, sched := range []struct {
		name    string
		spec    cronSpec
		horizon func(time.Time) Horizon
	}{
		{"daily", s.daily, func(t time.Time) Horizon { return Horizon{Start: t.AddDate(0, 0, -1), End: t} }},
		{"weekly", s.weekly, func(t time.Time) Horizon { return Horizon{Start: t.AddDate(0, 0, -7), End: t} }},
		{"monthly", s.monthly, func(t time.Time) Horizon { return Horizon{Start: t.AddDate(0, -1, 0), End: t} }},
	} {
		if !sched.spec.valid || !sched.spec.matches(now) {
			continue
		}
		if s.alreadyRanThisMinute(sched.name, now) {
			continue
		}
		s.log.Info("scheduled consolidation firing", "schedule", sched.name, "at", now.Format(time.RFC3339))
		go func(name string, horizon Horizon) {
			if _, err := s.pipeline.Run(s.ctx, horizon); err != nil {
				s.log.Error("scheduled consolidation run failed", "schedule", name, "error", err.Error())
			}
		}(sched.name, sched.horizon(now))
	}
}

func (s *Scheduler) alreadyRanThisMinute(name string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	truncated := now.Truncate(time.Minute)
	if last, ok := s.lastRun[name]; ok && last.Equal(truncated) {
		return true
	}
	s.lastRun[name] = truncated
	return false
}

// cronSpec is a minimal 5-field (minute hour day-of-month month
// day-of-week) matcher supporting "*" and a single integer per field, the
// subset spec.md's configurable schedule strings actually use.
type cronSpec struct {
	valid            bool
	minute, hour     int
	dom, month, dow  int
	minuteStar       bool
	hourStar         bool
	domStar          bool
	monthStar        bool
	dowStar          bool
}

func parseCron(expr string) (cronSpec, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return cronSpec{}, errInvalidCron(expr)
	}
	var spec cronSpec
	var err error
	if spec.minute, spec.minuteStar, err = parseCronField(fields[0]); err != nil {
		return cronSpec{}, err
	}
	if spec.hour, spec.hourStar, err = parseCronField(fields[1]); err != nil {
		return cronSpec{}, err
	}
	if spec.dom, spec.domStar, err = parseCronField(fields[2]); err != nil {
		return cronSpec{}, err
	}
	if spec.month, spec.monthStar, err = parseCronField(fields[3]); err != nil {
		return cronSpec{}, err
	}
	if spec.dow, spec.dowStar, err = parseCronField(fields[4]); err != nil {
		return cronSpec{}, err
	}
	spec.valid = true
	return spec, nil
}

func parseCronField(field string) (int, bool, error) {
	if field == "*" {
		return 0, true, nil
	}
	n, err := strconv.Atoi(field)
	if err != nil {
		return 0, false, err
	}
	return n, false, nil
}

func (c cronSpec) matches(t time.Time) bool {
	if !c.minuteStar && t.Minute() != c.minute {
		return false
	}
	if !c.hourStar && t.Hour() != c.hour {
		return false
	}
	if !c.domStar && t.Day() != c.dom {
		return false
	}
	if !c.monthStar && int(t.Month()) != c.month {
		return false
	}
	if !c.dowStar && int(t.Weekday()) != c.dow {
		return false
	}
	return true
}

type cronFormatError struct{ expr string }

func (e cronFormatError) Error() string { return "consolidation: invalid cron expression " + e.expr }

func errInvalidCron(expr string) error { return cronFormatError{expr} }
