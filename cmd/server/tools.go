package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/eventrouter/internal/backend"
	"github.com/gyaneshwarpardhi/eventrouter/internal/config"
	"github.com/gyaneshwarpardhi/eventrouter/internal/event"
	"github.com/gyaneshwarpardhi/eventrouter/internal/logging"
	"github.com/gyaneshwarpardhi/eventrouter/internal/router"
	"github.com/gyaneshwarpardhi/eventrouter/internal/router/store"
)

// newTransformCmd implements: eventrouter transform --format xapi event.json
func newTransformCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "transform [file]",
		Short: "Transform one event (or a JSON array of events) and print the result",
		Long: `Read a tracking event from file, or stdin when no file is given, and
print its Caliper or xAPI form without routing it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			events, err := readEvents(in)
			if err != nil {
				return err
			}

			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			regs, err := buildRegistries(cfg.Transform)
			if err != nil {
				return err
			}
			reg, ok := regs[format]
			if !ok {
				return fmt.Errorf("unknown format %q (want caliper or xapi)", format)
			}
			b := &backend.Backend{Name: format, Family: format, Registry: reg, Log: logging.Discard()}

			out := make([]map[string]interface{}, 0, len(events))
			for _, ev := range events {
				res, err := b.Transform(ev)
				if err != nil {
					return fmt.Errorf("%s: %w", ev.Name(), err)
				}
				out = append(out, res)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if len(out) == 1 {
				return enc.Encode(out[0])
			}
			return enc.Encode(out)
		},
	}
	cmd.Flags().StringVar(&format, "format", backend.FamilyXAPI, "output format: caliper|xapi")
	return cmd
}

func readEvents(r io.Reader) ([]event.Raw, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var many []event.Raw
	if err := json.Unmarshal(body, &many); err == nil {
		return many, nil
	}
	var one event.Raw
	if err := json.Unmarshal(body, &one); err != nil {
		return nil, fmt.Errorf("invalid event JSON: %w", err)
	}
	return []event.Raw{one}, nil
}

// newRoutersCmd returns the routers command group.
func newRoutersCmd() *cobra.Command {
	routers := &cobra.Command{
		Use:   "routers",
		Short: "Router configuration tools",
	}
	routers.AddCommand(newRoutersValidateCmd())
	return routers
}

// newRoutersValidateCmd implements: eventrouter routers validate routers.yaml
func newRoutersValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a router configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			known := router.DefaultStrategies(0).Names()
			known[router.StrategyKafka] = true
			configs, err := store.LoadFile(args[0], known)
			if err != nil {
				return err
			}
			enabled := 0
			for _, c := range configs {
				if c.Enabled {
					enabled++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d router configurations (%d enabled) OK\n", args[0], len(configs), enabled)
			return nil
		},
	}
}
