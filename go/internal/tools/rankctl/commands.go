package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/rankparty/go/internal/auth"
	"github.com/mcdev12/rankparty/go/internal/gameconfig"
	"github.com/mcdev12/rankparty/go/internal/pairing"
	"github.com/mcdev12/rankparty/go/internal/schema"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newSchemaCmd(cfg *Config) *cobra.Command {
	var apply bool
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the database schema, or apply it with --apply.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !apply {
				_, err := fmt.Fprint(cmd.OutOrStdout(), schema.DDL())
				return err
			}
			pool, db, err := cfg.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()
			defer db.Close()

			if err := schema.Apply(cmd.Context(), db); err != nil {
				return err
			}
			log.Info().Int("tables", len(schema.Tables)).Msg("schema applied")
			return nil
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "create missing tables and triggers")
	return cmd
}

func newHashSecretCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-secret [secret]",
		Short: "Print the bcrypt hash of an admin secret for ADMIN_SECRET_HASH.",
		Long:  "Print the bcrypt hash of an admin secret. The secret is read from stdin when not given as an argument.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var secret string
			if len(args) == 1 {
				secret = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("failed to read secret: %w", err)
				}
				secret = strings.TrimRight(line, "\r\n")
			}
			if secret == "" {
				return errors.New("secret must not be empty")
			}

			hash, err := auth.HashSecret(secret)
			if err != nil {
				return fmt.Errorf("failed to hash secret: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return err
		},
	}
}

func newTemplatesCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Validate a game config and list its question templates.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			game, err := gameconfig.Load(path)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tQUESTIONS\tDEFAULT")
			for _, t := range game.Templates() {
				def := ""
				if t.ID == game.DefaultTemplate {
					def = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", t.ID, t.Name, len(t.Questions), def)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&path, "game-config", "", "path to a game config YAML, built-in default when empty (env: RANKCTL_GAME_CONFIG)")
	return cmd
}

type roomRow struct {
	Code         string
	Name         string
	Status       string
	PlayMode     string
	Participants int
	Devices      int
	CreatedAt    time.Time
}

func newRoomsCmd(cfg *Config) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "rooms",
		Short: "List the most recent rooms.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, db, err := cfg.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()
			defer db.Close()

			rows, err := pool.Query(cmd.Context(), `
				SELECT r.code, r.name, r.status, r.play_mode,
				       (SELECT COUNT(*) FROM participants p WHERE p.room_id = r.id),
				       (SELECT COUNT(*) FROM devices d WHERE d.room_id = r.id),
				       r.created_at
				FROM rooms r
				ORDER BY r.created_at DESC
				LIMIT $1`, limit)
			if err != nil {
				return fmt.Errorf("failed to list rooms: %w", err)
			}
			rooms, err := pgx.CollectRows(rows, pgx.RowToStructByPos[roomRow])
			if err != nil {
				return fmt.Errorf("failed to scan rooms: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CODE\tNAME\tSTATUS\tMODE\tPARTICIPANTS\tDEVICES\tCREATED")
			for _, r := range rooms {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
					r.Code, r.Name, r.Status, r.PlayMode, r.Participants, r.Devices, r.CreatedAt.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rooms to list")
	return cmd
}

func newClearPairingsCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-pairings <room-code>",
		Short: "Unpair every device of a room, as the host's clear action does.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, db, err := cfg.connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			defer db.Close()

			code := strings.ToUpper(strings.TrimSpace(args[0]))
			repo := pairing.NewRepository(db)
			room, err := repo.GetRoomByCode(ctx, code)
			if err != nil {
				return err
			}

			// go through the app so the unpairing is published to connected clients
			app := pairing.NewApp(repo, clockwork.NewRealClock(), time.Minute)
			n, err := app.ClearAllPairings(ctx, room.ID)
			if err != nil {
				return err
			}
			log.Info().Str("room_code", room.Code).Int("devices", n).Msg("pairings cleared")
			return nil
		},
	}
}

func newOutboxCmd(cfg *Config) *cobra.Command {
	var purgeOlderThan time.Duration
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Show the outbox backlog, optionally purging old sent events.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, db, err := cfg.connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			defer db.Close()

			var (
				pending int
				oldest  *time.Time
			)
			if err := pool.QueryRow(ctx,
				`SELECT COUNT(*), MIN(created_at) FROM room_outbox WHERE sent_at IS NULL`,
			).Scan(&pending, &oldest); err != nil {
				return fmt.Errorf("failed to count pending events: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "pending: %d\n", pending)
			if oldest != nil {
				fmt.Fprintf(out, "oldest pending: %s (%s ago)\n", oldest.Format(time.RFC3339), time.Since(*oldest).Round(time.Second))
			}

			if purgeOlderThan <= 0 {
				return nil
			}
			tag, err := pool.Exec(ctx,
				`DELETE FROM room_outbox WHERE sent_at IS NOT NULL AND sent_at < $1`,
				time.Now().Add(-purgeOlderThan))
			if err != nil {
				return fmt.Errorf("failed to purge sent events: %w", err)
			}
			fmt.Fprintf(out, "purged: %d\n", tag.RowsAffected())
			return nil
		},
	}
	cmd.Flags().DurationVar(&purgeOlderThan, "purge-older-than", 0, "delete events sent longer ago than this")
	return cmd
}
