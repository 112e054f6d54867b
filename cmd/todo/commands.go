package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"todo/internal/handlers"
	"todo/internal/models"
	"todo/internal/tui"
)

func newAddCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "add <title...>",
		Short: "Add an item",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			item := models.Item{Title: strings.Join(args, " ")}
			if err := item.Validate(); err != nil {
				return err
			}

			a, err := c.open()
			if err != nil {
				return err
			}
			defer a.closeWithTimeout()

			p := a.core.SubmitUpsert(item)
			if err := p.Wait(cmd.Context()); err != nil {
				return err
			}
			tui.OK(cmd.OutOrStdout(), fmt.Sprintf("added #%d %s", p.Item().ID, p.Item().Title))
			return nil
		},
	}
}

func newListCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List items",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open()
			if err != nil {
				return err
			}
			defer a.closeWithTimeout()

			state, err := a.snapshot(cmd.Context())
			if err != nil {
				return err
			}
			printItems(cmd, state.Items)
			return nil
		},
	}
}

func printItems(cmd *cobra.Command, items []models.Item) {
	out := cmd.OutOrStdout()
	if len(items) == 0 {
		tui.Panel(out, []string{"Nothing found"})
		return
	}

	lines := make([]string, 0, len(items)+2)
	for _, it := range items {
		title := it.Title
		if it.Completed {
			title = tui.Strike(title)
		}
		lines = append(lines, fmt.Sprintf("%s #%d %s", tui.Checkbox(it.Completed), it.ID, title))
	}
	done, _ := models.Stats(items)
	lines = append(lines, "", tui.ProgressBar(done, len(items), 0))
	tui.Panel(out, lines)
}

func newDoneCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "done <id>",
		Short: "Toggle an item's completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			a, err := c.open()
			if err != nil {
				return err
			}
			defer a.closeWithTimeout()

			state, err := a.snapshot(cmd.Context())
			if err != nil {
				return err
			}
			var found *models.Item
			for i := range state.Items {
				if state.Items[i].ID == id {
					found = &state.Items[i]
					break
				}
			}
			if found == nil {
				return fmt.Errorf("item %d not found", id)
			}

			p := a.core.SubmitUpsert(found.Toggled())
			if err := p.Wait(cmd.Context()); err != nil {
				return err
			}
			if p.Item().Completed {
				tui.OK(cmd.OutOrStdout(), fmt.Sprintf("completed #%d", id))
			} else {
				tui.OK(cmd.OutOrStdout(), fmt.Sprintf("reopened #%d", id))
			}
			return nil
		},
	}
}

func newRemoveCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove"},
		Short:   "Remove an item",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			a, err := c.open()
			if err != nil {
				return err
			}
			defer a.closeWithTimeout()

			if err := a.core.SubmitDelete(models.Item{ID: id}).Wait(cmd.Context()); err != nil {
				return err
			}
			tui.OK(cmd.OutOrStdout(), fmt.Sprintf("removed #%d", id))
			return nil
		},
	}
}

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the web page, JSON API and websocket stream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, c)
		},
	}
}

func serve(ctx context.Context, c *cli) error {
	a, err := c.open()
	if err != nil {
		return err
	}

	h, err := handlers.New(a.core, c.logger, handlers.WithAllowedOrigins(c.cfg.AllowedOrigins...))
	if err != nil {
		a.closeWithTimeout()
		return err
	}

	srv := &http.Server{
		Addr:    ":" + c.cfg.Port,
		Handler: h.Routes(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c.logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("db", a.store.Path()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		c.logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		return errors.Join(err, a.close(shutdownCtx))
	})
	return g.Wait()
}

func newTUICmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := c.open()
			if err != nil {
				return err
			}
			defer a.closeWithTimeout()

			return tui.Run(ctx, a.core)
		},
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid item id %q", s)
	}
	return id, nil
}
