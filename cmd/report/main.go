package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"edu-etl/pkg/config"
	"edu-etl/pkg/dashboard"
	"edu-etl/pkg/db"
	"edu-etl/pkg/logger"
)

func main() {
	var (
		top   = flag.Int("top", 10, "Universities listed by domain count")
		query = flag.String("q", "", "Case-insensitive filter on university name")
		from  = flag.Int("from", 0, "First year of the enrollment series (0 = unbounded)")
		to    = flag.Int("to", 0, "Last year of the enrollment series (0 = unbounded)")
		serve = flag.Bool("serve", false, "Serve the summary over HTTP on REPORT_ADDR instead of printing it")
	)
	flag.Parse()

	envErr := config.LoadDotEnv()
	logger.Init(logger.FromEnv())
	log := logger.Named("report")
	if envErr != nil {
		log.Fatal().Err(envErr).Msg("load env files")
	}

	s := config.Load()
	if err := s.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid settings")
	}
	open := db.MongoOpener(s.Mongo)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *serve {
		srv := dashboard.NewServer(s.ReportAddr, open)
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("shutdown failed")
			}
		}()
		if err := srv.Run(); err != nil {
			log.Fatal().Err(err).Msg("server failed")
		}
		return
	}

	store, err := open(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("open store")
	}
	defer store.Close(context.Background())

	sum, err := dashboard.Build(ctx, store, dashboard.Options{TopN: *top, Query: *query, FromYear: *from, ToYear: *to})
	if err != nil {
		log.Error().Err(err).Msg("build summary")
		return
	}
	if err := dashboard.Render(os.Stdout, sum); err != nil {
		log.Error().Err(err).Msg("render summary")
	}
}
