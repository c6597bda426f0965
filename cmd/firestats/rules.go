package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"firestats/internal/fiscal"
	"firestats/internal/logger"
	"firestats/internal/normalizer"
	"firestats/internal/pipeline"
)

func createCheckRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-rules",
		Short: "Validate the rule tables and list the effective remap rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			p, err := pipeline.New(cfg, logger.Nop())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			remapper := p.Remapper()

			fmt.Fprintf(out, "Geography version: %s\n", remapper.Version())

			for _, reorg := range remapper.Reorganisations() {
				fmt.Fprintf(out, "Reorganisation %s (effective %s): %d rules\n",
					reorg.ID, reorg.Effective.Format("2006-01-02"), len(reorg.Rules))
			}

			for _, rule := range remapper.Rules() {
				fmt.Fprintf(out, "  %s -> %s [%s]\n", rule.Old, rule.New, rule.Reorganisation)
			}

			for _, m := range cfg.Entities.Mergers {
				fmt.Fprintf(out, "Merger %s <- %s\n", m.Master, strings.Join(m.Legacy, ", "))
			}

			for _, e := range cfg.Integrity.Exceptions {
				fmt.Fprintf(out, "Exception %s.%s: %s\n", e.FactTable, e.KeyColumn, e.Reason)
			}

			fmt.Fprintln(out, "Rules OK")

			return nil
		},
	}
}

func createMidpointCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "midpoint [text...]",
		Short: "Estimate the midpoint of banded range text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			for _, text := range args {
				v, err := normalizer.ParseRange(text)

				switch {
				case err != nil:
					fmt.Fprintf(out, "%q\tnull\t(%v)\n", text, err)
				case v == nil:
					fmt.Fprintf(out, "%q\tnull\n", text)
				default:
					fmt.Fprintf(out, "%q\t%s\n", text, strconv.FormatFloat(*v, 'f', -1, 64))
				}
			}

			return nil
		},
	}
}

func createRemapCmd() *cobra.Command {
	var asOf string

	cmd := &cobra.Command{
		Use:   "remap [code...]",
		Short: "Resolve legacy geography codes to their current successors",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			p, err := pipeline.New(cfg, logger.Nop())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			for _, code := range args {
				res, err := p.Remapper().RemapAsOf(code, asOf)
				if err != nil {
					return err
				}

				line := res.Original + "\t" + res.Code
				if len(res.Chain) > 1 {
					line += "\t(" + strings.Join(res.Chain, " > ") + ")"
				}

				fmt.Fprintln(out, line)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&asOf, "as-of", "", "Apply only reorganisations up to this id")

	return cmd
}

func createFiscalYearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fiscal-year [date-or-year...]",
		Short: "Derive the April-March financial year of a date or reported year",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			for _, arg := range args {
				var date *time.Time
				if t, err := fiscal.ParseDate(arg); err == nil {
					date = &t
				}

				y, err := fiscal.Derive(date, arg)
				if err != nil {
					return fmt.Errorf("%s: %w", arg, err)
				}

				fmt.Fprintf(out, "%s\t%s\n", arg, y.Label())
			}

			return nil
		},
	}
}
