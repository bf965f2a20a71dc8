package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	redisclient "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"tickfeed/internal/application/port"
	"tickfeed/internal/infrastructure/config"
	redisrepo "tickfeed/internal/infrastructure/storage/redis"
	sqliterepo "tickfeed/internal/infrastructure/storage/sqlite"
	"tickfeed/internal/infrastructure/svc"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List enabled providers in fallback order",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		providers, err := svc.BuildProviders(cfg)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PRIORITY\tPROVIDER\tCREDENTIAL\tMANAGED")
		for _, p := range providers {
			cred := "not required"
			if p.RequiresCredential() {
				cred = "missing"
				if p.HasCredential() {
					cred = "ok"
				}
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%v\n", cfg.Providers[p.Name()].Priority, p.Name(), cred, p.Managed())
		}
		return w.Flush()
	},
}

var (
	eventsLimit int
	eventsSince time.Duration
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show recent connection status events recorded in sqlite",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		repo, err := sqliterepo.New(cfg.SQLite.Path)
		if err != nil {
			return err
		}
		defer repo.Close()

		events := sqliterepo.NewEventRepo(repo.GetDB())
		ctx := cmd.Context()

		recent, err := events.ListRecent(ctx, eventsLimit)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tPROVIDER\tSTATUS")
		for _, e := range recent {
			fmt.Fprintf(w, "%s\t%s\t%s\n", time.UnixMilli(e.Ts).Format("2006-01-02 15:04:05"), e.Provider, e.Status)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		counts, err := events.CountByStatus(ctx, time.Now().Add(-eventsSince).UnixMilli())
		if err != nil {
			return err
		}
		fmt.Printf("\nlast %s:", eventsSince)
		for status, n := range counts {
			fmt.Printf(" %s=%d", status, n)
		}
		fmt.Println()
		return nil
	},
}

var (
	pricesFrom     string
	pricesProvider string
	pricesSymbol   string
)

var pricesCmd = &cobra.Command{
	Use:   "prices",
	Short: "Show mirrored latest prices from sqlite or redis",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		symbol := strings.ToUpper(strings.TrimSpace(pricesSymbol))

		var rows []port.LatestPrice
		switch pricesFrom {
		case "sqlite":
			rows, err = sqlitePrices(cmd.Context(), cfg, pricesProvider, symbol)
		case "redis":
			rows, err = redisPrices(cmd.Context(), cfg, pricesProvider, symbol)
		default:
			err = fmt.Errorf("unknown source %q (sqlite|redis)", pricesFrom)
		}
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SYMBOL\tPROVIDER\tPRICE\tCHANGE\tCHANGE%\tTIME")
		for _, lp := range rows {
			fmt.Fprintf(w, "%s\t%s\t%.4f\t%+.4f\t%+.2f%%\t%s\n",
				lp.Symbol, lp.Provider, lp.Price, lp.Change, lp.ChangePercent,
				time.UnixMilli(lp.Ts).Format("2006-01-02 15:04:05"))
		}
		return w.Flush()
	},
}

// sqlitePrices 指定 provider 和 symbol 时查单条，否则列出全部
func sqlitePrices(ctx context.Context, cfg *config.Config, provider, symbol string) ([]port.LatestPrice, error) {
	repo, err := sqliterepo.New(cfg.SQLite.Path)
	if err != nil {
		return nil, err
	}
	defer repo.Close()

	if provider != "" && symbol != "" {
		lp, err := repo.GetLatestPrice(ctx, provider, symbol)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return []port.LatestPrice{lp}, nil
	}

	all, err := repo.ListLatestPrices(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, lp := range all {
		if (provider == "" || lp.Provider == provider) && (symbol == "" || lp.Symbol == symbol) {
			out = append(out, lp)
		}
	}
	return out, nil
}

// redisPrices 按 hash field 查询，需要同时给出 provider 和 symbol
func redisPrices(ctx context.Context, cfg *config.Config, provider, symbol string) ([]port.LatestPrice, error) {
	if provider == "" || symbol == "" {
		return nil, errors.New("redis lookup needs --provider and --symbol")
	}
	rdb := redisclient.NewClient(&redisclient.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	repo := redisrepo.New(rdb, cfg.Redis.Prefix, time.Duration(cfg.Redis.TTLSeconds)*time.Second, cfg.Redis.Channel)
	lp, ok, err := repo.GetLatestPrice(ctx, provider, symbol)
	if err != nil || !ok {
		return nil, err
	}
	return []port.LatestPrice{lp}, nil
}

func init() {
	pricesCmd.Flags().StringVar(&pricesFrom, "from", "sqlite", "mirror to read: sqlite or redis")
	pricesCmd.Flags().StringVar(&pricesProvider, "provider", "", "filter by provider")
	pricesCmd.Flags().StringVar(&pricesSymbol, "symbol", "", "filter by symbol")

	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 20, "number of events to show")
	eventsCmd.Flags().DurationVar(&eventsSince, "since", 24*time.Hour, "window for status counts")
}
