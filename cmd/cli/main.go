package main

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/glizzus/lavanode/internal/config"
	"github.com/glizzus/lavanode/internal/datalayer"
	"github.com/glizzus/lavanode/internal/generator"
	"github.com/glizzus/lavanode/internal/presenters"
	"github.com/glizzus/lavanode/internal/repository"
	"github.com/glizzus/lavanode/internal/rest"
	"github.com/glizzus/lavanode/internal/schedule"
	"github.com/glizzus/lavanode/internal/trackcodec"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"
)

func printTrack(t trackcodec.Track) {
	length := presenters.FormatDuration(t.Duration())
	if t.IsStream {
		length = "live"
	}
	fmt.Printf("%s by %s (%s)\n", t.Title, t.Author, length)
	fmt.Printf("  identifier: %s\n", t.Identifier)
	if t.HasURI {
		fmt.Printf("  uri:        %s\n", t.URI)
	}
	if t.Version > 0 {
		fmt.Printf("  version:    %d\n", t.Version)
	}
	if t.Position > 0 {
		fmt.Printf("  position:   %s\n", presenters.FormatDuration(t.Position))
	}
}

func openPool(c *cli.Context) (*pgxpool.Pool, error) {
	pool, err := datalayer.NewPostgresPoolFromEnv(c.Context)
	if err != nil {
		return nil, err
	}
	if err := datalayer.MigratePostgres(pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate postgres: %w", err)
	}
	return pool, nil
}

func restClient() (*rest.Client, error) {
	client, err := rest.NewClientFromEnv()
	if err != nil {
		return nil, cli.Exit("Failed to configure node client: "+err.Error(), 1)
	}
	return client, nil
}

var guildFlag = &cli.StringFlag{
	Name:     "guild-id",
	Usage:    "ID of the guild",
	Required: true,
}

var trackCommands = []*cli.Command{
	{
		Name:      "decode",
		Usage:     "Decode track descriptors without contacting a node",
		ArgsUsage: "<track>...",
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return cli.Exit("Provide at least one encoded track", 1)
			}
			tracks, err := trackcodec.DecodeAll(c.Args().Slice()...)
			if err != nil {
				return cli.Exit("Failed to decode: "+err.Error(), 1)
			}
			for _, t := range tracks {
				printTrack(t)
			}
			return nil
		},
	},
	{
		Name:  "encode",
		Usage: "Encode a track descriptor",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Required: true},
			&cli.StringFlag{Name: "author", Required: true},
			&cli.StringFlag{Name: "identifier", Required: true},
			&cli.DurationFlag{Name: "length"},
			&cli.StringFlag{Name: "uri"},
			&cli.BoolFlag{Name: "stream"},
		},
		Action: func(c *cli.Context) error {
			t := trackcodec.Track{
				Title:      c.String("title"),
				Author:     c.String("author"),
				Identifier: c.String("identifier"),
				Length:     c.Duration("length"),
				IsStream:   c.Bool("stream"),
				URI:        c.String("uri"),
				HasURI:     c.IsSet("uri"),
			}
			encoded, err := trackcodec.Encode(t)
			if err != nil {
				return cli.Exit("Failed to encode: "+err.Error(), 1)
			}
			fmt.Println(encoded)
			return nil
		},
	},
	{
		Name:      "search",
		Usage:     "Load a URL or search through the node",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "source", Value: string(rest.SearchYouTube), Usage: "ytsearch, ytmsearch or scsearch"},
		},
		Action: func(c *cli.Context) error {
			client, err := restClient()
			if err != nil {
				return err
			}
			query := strings.Join(c.Args().Slice(), " ")
			if query == "" {
				return cli.Exit("Provide a query", 1)
			}
			result, err := client.LoadTracks(c.Context, rest.Identifier(query, rest.SearchSource(c.String("source"))))
			if err != nil {
				return cli.Exit("Failed to load tracks: "+err.Error(), 1)
			}
			if err := result.Err(); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			log.Printf("%s, %d tracks", result.LoadType, len(result.Tracks))
			for _, lt := range result.Tracks {
				printTrack(lt.Track())
				fmt.Printf("  encoded:    %s\n", lt.Encoded)
			}
			return nil
		},
	},
}

var historyCommands = []*cli.Command{
	{
		Name:  "history",
		Usage: "List the tracks recently played in a guild",
		Flags: []cli.Flag{
			guildFlag,
			&cli.IntFlag{Name: "limit", Value: 20},
		},
		Action: func(c *cli.Context) error {
			pool, err := openPool(c)
			if err != nil {
				return cli.Exit("Failed to open database: "+err.Error(), 1)
			}
			defer pool.Close()

			repo := repository.NewPostgresPlayHistoryRepository(pool, &generator.UUIDV4Generator{})
			plays, err := repo.Recent(c.Context, c.String("guild-id"), c.Int("limit"))
			if err != nil {
				return cli.Exit("Failed to retrieve history: "+err.Error(), 1)
			}
			if len(plays) == 0 {
				log.Println("No plays found for the specified guild.")
				return nil
			}
			for _, p := range plays {
				fmt.Printf("%s  %s by %s (%s) %s\n",
					p.StartedAt.Local().Format(time.DateTime), p.Title, p.Author, presenters.FormatDuration(p.Length), p.EndReason)
			}
			return nil
		},
	},
	{
		Name:  "export",
		Usage: "Upload a guild's play history to object storage as JSON",
		Flags: []cli.Flag{
			guildFlag,
			&cli.IntFlag{Name: "limit", Value: 1000},
		},
		Action: func(c *cli.Context) error {
			pool, err := openPool(c)
			if err != nil {
				return cli.Exit("Failed to open database: "+err.Error(), 1)
			}
			defer pool.Close()

			storage, err := datalayer.NewMinioStorageFromEnv()
			if err != nil {
				return cli.Exit("Failed to create minio storage: "+err.Error(), 1)
			}
			if err := storage.EnsureBucket(c.Context); err != nil {
				return cli.Exit("Failed to ensure bucket: "+err.Error(), 1)
			}

			guildID := c.String("guild-id")
			repo := repository.NewPostgresPlayHistoryRepository(pool, &generator.UUIDV4Generator{})
			plays, err := repo.Recent(c.Context, guildID, c.Int("limit"))
			if err != nil {
				return cli.Exit("Failed to retrieve history: "+err.Error(), 1)
			}

			key := fmt.Sprintf("history/%s/%s.json", guildID, time.Now().UTC().Format("20060102T150405Z"))
			if err := datalayer.PutJSON(c.Context, storage, key, plays); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			log.Printf("Exported %d plays to %s", len(plays), key)
			return nil
		},
	},
	{
		Name:  "stats",
		Usage: "Show the most recent node stats snapshot",
		Action: func(c *cli.Context) error {
			pool, err := openPool(c)
			if err != nil {
				return cli.Exit("Failed to open database: "+err.Error(), 1)
			}
			defer pool.Close()

			snap, err := repository.NewPostgresStatsRepository(pool).Latest(c.Context)
			if err != nil {
				return cli.Exit("Failed to retrieve stats: "+err.Error(), 1)
			}
			s := snap.Stats
			fmt.Printf("taken at:  %s\n", snap.TakenAt.Local().Format(time.DateTime))
			fmt.Printf("players:   %d (%d playing)\n", s.Players, s.PlayingPlayers)
			fmt.Printf("uptime:    %s\n", s.Uptime().Round(time.Second))
			fmt.Printf("memory:    %d used of %d allocated\n", s.Memory.Used, s.Memory.Allocated)
			fmt.Printf("cpu:       %d cores, system %.2f, node %.2f\n", s.CPU.Cores, s.CPU.SystemLoad, s.CPU.LavalinkLoad)
			if s.FrameStats != nil {
				fmt.Printf("frames:    %d sent, %d nulled, %d deficit\n", s.FrameStats.Sent, s.FrameStats.Nulled, s.FrameStats.Deficit)
			}
			return nil
		},
	},
}

var snapshotsCommand = &cli.Command{
	Name:  "snapshots",
	Usage: "Show when the worker will next snapshot node stats",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "count", Value: 5},
	},
	Action: func(c *cli.Context) error {
		cfg, err := config.NewScheduleConfigFromEnv()
		if err != nil {
			return cli.Exit("Failed to load schedule config: "+err.Error(), 1)
		}
		times, err := schedule.NextRunTimes(cfg.StatsSnapshotCron, c.Int("count"))
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		log.Printf("Schedule: %s", cfg.StatsSnapshotCron)
		for _, t := range times {
			fmt.Println(t.Local().Format(time.DateTime))
		}
		return nil
	},
}

var routePlannerCommand = &cli.Command{
	Name:  "routeplanner",
	Usage: "Inspect and reset the node's IP rotation",
	Subcommands: []*cli.Command{
		{
			Name:  "status",
			Usage: "Show the route planner and its failing addresses",
			Action: func(c *cli.Context) error {
				client, err := restClient()
				if err != nil {
					return err
				}
				status, err := client.RoutePlannerStatus(c.Context)
				if err != nil {
					return cli.Exit("Failed to get status: "+err.Error(), 1)
				}
				if !status.Enabled() {
					log.Println("The node has no route planner configured.")
					return nil
				}
				fmt.Printf("class: %s\n", status.Class)
				if d := status.Details; d != nil {
					fmt.Printf("block: %s (%s)\n", d.IPBlock.Type, d.IPBlock.Size)
					for _, fa := range d.FailingAddresses {
						fmt.Printf("failing: %s since %s\n", fa.Address, fa.FailedAt().Local().Format(time.DateTime))
					}
				}
				return nil
			},
		},
		{
			Name:      "free",
			Usage:     "Unmark a failing address, or all of them with --all",
			ArgsUsage: "[address]",
			Flags:     []cli.Flag{&cli.BoolFlag{Name: "all"}},
			Action: func(c *cli.Context) error {
				client, err := restClient()
				if err != nil {
					return err
				}
				if c.Bool("all") {
					err = client.FreeAll(c.Context)
				} else if c.NArg() == 1 {
					err = client.FreeAddress(c.Context, c.Args().First())
				} else {
					return cli.Exit("Provide one address or --all", 1)
				}
				if err != nil {
					return cli.Exit("Failed to free: "+err.Error(), 1)
				}
				log.Println("Done.")
				return nil
			},
		},
	},
}

func main() {
	if err := config.LoadEnv(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Failed to load .env file: %v", err)
	}

	var commands []*cli.Command
	commands = append(commands, trackCommands...)
	commands = append(commands, historyCommands...)
	commands = append(commands, snapshotsCommand, routePlannerCommand)

	app := &cli.App{
		Name:        "lavanode-cli",
		Description: "A development CLI for inspecting tracks, play history and the audio node without Discord",
		Commands:    commands,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Error running CLI: %v", err)
	}
}
