package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/urfave/cli"

	"studycal/internal/calendar"
	"studycal/internal/config"
	"studycal/internal/ics"
	appLog "studycal/internal/log"
	"studycal/internal/model"
	"studycal/internal/notify"
	"studycal/internal/reminder"
	"studycal/internal/schedule"
	"studycal/internal/store"
	"studycal/internal/web"
)

const defaultConfigPath = "/etc/studycal/config.yaml"

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "studycal"
	app.Usage = "study schedule and reminder service"
	app.Version = version
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Value: defaultConfigPath,
			Usage: "path to the YAML config file (created with defaults if missing)",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:   "serve",
			Usage:  "run the HTTP API, the reminder notifier and the periodic reschedule",
			Action: serve,
		},
		{
			Name:   "reschedule",
			Usage:  "rebuild scheduled notifications once and print the result",
			Action: rescheduleOnce,
		},
		{
			Name:   "import-ics",
			Usage:  "import events from an iCalendar file or feed as extra sessions",
			Action: importICS,
			Flags: []cli.Flag{
				cli.StringFlag{Name: "file, f", Usage: "path to an .ics file"},
				cli.StringFlag{Name: "url, u", Usage: "feed URL to download"},
				cli.StringFlag{Name: "from", Usage: "first day to import (yyyy-MM-dd, default today)"},
				cli.StringFlag{Name: "to", Usage: "last day to import (yyyy-MM-dd, default from + 180 days)"},
				cli.BoolFlag{Name: "dry-run", Usage: "validate only, write nothing"},
			},
		},
		{
			Name:   "export-ics",
			Usage:  "write the schedule as an iCalendar file",
			Action: exportICS,
			Flags: []cli.Flag{
				cli.StringFlag{Name: "out, o", Usage: "output path (default stdout)"},
				cli.StringFlag{Name: "from", Usage: "first day (yyyy-MM-dd, default today)"},
				cli.StringFlag{Name: "to", Usage: "last day (yyyy-MM-dd, default from + 180 days)"},
			},
		},
	}
	return app
}

// env is what every command needs.
type env struct {
	cfg *config.Config
	loc *time.Location
	db  *store.DB
}

func setup(ctx context.Context, c *cli.Context) (*env, error) {
	path := c.GlobalString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))

	loc, err := cfg.Location()
	if err != nil {
		appLog.Warn("invalid timezone, using local", err, "timezone", cfg.Timezone)
		loc = time.Local
	}
	db, err := store.Open(ctx, cfg.Database, store.WithLocation(loc))
	if err != nil {
		return nil, err
	}
	appLog.Info("effective config",
		"listen", cfg.Listen,
		"timezone", loc.String(),
		"database", cfg.Database,
		"horizon_days", cfg.Notifications.HorizonDays,
		"reschedule", cfg.Notifications.Reschedule,
		"open_ended", cfg.Notifications.OpenEnded,
		"telegram", cfg.Telegram != nil,
	)
	return &env{cfg: cfg, loc: loc, db: db}, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func deliverer(cfg *config.Config) notify.Deliverer {
	if cfg.Telegram == nil {
		return notify.LogDeliverer{}
	}
	tg, err := notify.NewTelegramDeliverer(cfg.Telegram.Token, cfg.Telegram.ChatID)
	if err != nil {
		appLog.Error("telegram disabled", err)
		return notify.LogDeliverer{}
	}
	return notify.Multi{notify.LogDeliverer{}, tg}
}

func newRescheduler(e *env, n notify.Service) *reminder.Rescheduler {
	return reminder.NewRescheduler(e.db, n,
		reminder.WithHorizon(e.cfg.Horizon()),
		reminder.WithPolicy(reminder.Policy(e.cfg.Notifications.OpenEnded)),
	)
}

func serve(c *cli.Context) error {
	appLog.Info("studycal starting", "version", version)
	ctx, stop := signalContext()
	defer stop()

	e, err := setup(ctx, c)
	if err != nil {
		return err
	}
	defer e.db.Close()

	var resched *reminder.Rescheduler
	local := notify.NewLocal(ctx, deliverer(e.cfg), notify.WithFiredHook(func(p notify.Payload, err error) {
		if err != nil || resched == nil {
			return
		}
		if err := resched.MarkFired(ctx, p.Key); err != nil {
			appLog.Warn("mark notification fired", err, "id", p.Key)
		}
	}))
	resched = newRescheduler(e, local)

	// The local notifier keeps registrations in memory only.
	if _, err := resched.Reschedule(ctx, time.Now()); err != nil {
		appLog.Error("startup reschedule failed", err)
	}

	sched := cron.New(cron.WithLocation(e.loc))
	if _, err := sched.AddFunc(e.cfg.Notifications.Reschedule, func() {
		if _, err := resched.Reschedule(ctx, time.Now()); err != nil {
			appLog.Error("periodic reschedule failed", err)
		}
	}); err != nil {
		return fmt.Errorf("reschedule cron %q: %w", e.cfg.Notifications.Reschedule, err)
	}
	sched.Start()
	defer func() { <-sched.Stop().Done() }()

	srv := web.NewServer(e.cfg, e.loc, web.Deps{
		Store:       e.db,
		Scheduler:   schedule.NewService(e.db, e.loc, e.cfg.UserID),
		Rescheduler: resched,
		Fetcher:     ics.NewFetcher(),
	})
	err = srv.Serve(ctx)
	appLog.Info("studycal exiting")
	return err
}

func rescheduleOnce(c *cli.Context) error {
	ctx, stop := signalContext()
	defer stop()

	e, err := setup(ctx, c)
	if err != nil {
		return err
	}
	defer e.db.Close()

	local := notify.NewLocal(ctx, notify.LogDeliverer{})
	sum, err := newRescheduler(e, local).Reschedule(ctx, time.Now())
	if err != nil {
		return err
	}
	rows, err := e.db.ListNotifications(ctx)
	if err != nil {
		return err
	}
	for _, n := range rows {
		fmt.Printf("%s  %s  task=%s lead=%dm\n",
			calendar.FormatDate(n.TriggerAt.In(e.loc)), calendar.ClockOf(n.TriggerAt.In(e.loc)), n.TaskID, n.LeadMinutes)
	}
	fmt.Printf("computed=%d scheduled=%d failed=%d\n", sum.Computed, sum.Scheduled, sum.Failed)
	return nil
}

// dayRange reads --from/--to (to inclusive) into a half-open range.
func dayRange(c *cli.Context, loc *time.Location) (time.Time, time.Time, error) {
	from := calendar.StartOfDay(time.Now().In(loc))
	if v := c.String("from"); v != "" {
		d, err := calendar.ParseDate(v, loc)
		if err != nil {
			return time.Time{}, time.Time{}, model.Invalid("from", "%v", err)
		}
		from = d
	}
	to := from.AddDate(0, 0, 180)
	if v := c.String("to"); v != "" {
		d, err := calendar.ParseDate(v, loc)
		if err != nil {
			return time.Time{}, time.Time{}, model.Invalid("to", "%v", err)
		}
		to = d.AddDate(0, 0, 1)
	}
	return from, to, nil
}

func importICS(c *cli.Context) error {
	ctx, stop := signalContext()
	defer stop()

	e, err := setup(ctx, c)
	if err != nil {
		return err
	}
	defer e.db.Close()

	var body []byte
	switch {
	case c.String("url") != "":
		body, err = ics.NewFetcher().Fetch(ctx, c.String("url"))
	case c.String("file") != "":
		body, err = os.ReadFile(c.String("file"))
	default:
		return cli.NewExitError("one of --file or --url is required", 2)
	}
	if err != nil {
		return err
	}

	events, err := ics.ParseICS(body)
	if err != nil {
		return err
	}
	from, to, err := dayRange(c, e.loc)
	if err != nil {
		return err
	}
	rows, skipped, err := ics.ToImportRows(events, ics.ImportOptions{
		UserID:     e.cfg.UserID,
		Location:   e.loc,
		RangeStart: from,
		RangeEnd:   to,
	})
	if err != nil {
		return err
	}

	svc := schedule.NewService(e.db, e.loc, e.cfg.UserID)
	var report schedule.ImportReport
	if c.Bool("dry-run") {
		report, err = svc.ValidateImport(ctx, e.cfg.UserID, rows)
	} else {
		report, err = svc.Import(ctx, e.cfg.UserID, rows)
	}
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, map[string]any{"report": report, "skipped": skipped})
}

func exportICS(c *cli.Context) error {
	ctx, stop := signalContext()
	defer stop()

	e, err := setup(ctx, c)
	if err != nil {
		return err
	}
	defer e.db.Close()

	from, to, err := dayRange(c, e.loc)
	if err != nil {
		return err
	}
	entries, err := e.db.EntriesOverlapping(ctx, e.cfg.UserID, from, to)
	if err != nil {
		return err
	}
	list, err := e.db.ListCourses(ctx, e.cfg.UserID)
	if err != nil {
		return err
	}
	courses := make(map[string]model.Course, len(list))
	for _, co := range list {
		courses[co.ID] = co
	}

	var w io.Writer = os.Stdout
	if out := c.String("out"); out != "" {
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if err := ics.Export(w, entries, courses); err != nil {
		return err
	}
	appLog.Info("calendar exported", "entries", len(entries))
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
