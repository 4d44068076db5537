package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/rosterimport/internal/core"
	"github.com/JonMunkholm/rosterimport/internal/database"
)

// errRowsInvalid makes validate exit non-zero after printing its report.
var errRowsInvalid = errors.New("roster has invalid rows")

func newValidateCommand() *cobra.Command {
	var (
		file      string
		acceptBib bool
		maxRows   int
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a roster file without touching the database",
		Example: `  rosterctl validate --file roster.csv
  rosterctl validate --file roster.csv --accept-bib`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := core.ParseOptions{MaxRows: maxRows, AcceptBibNum: acceptBib}
			roster, err := readRosterFile(file, opts)
			if err != nil {
				return fmt.Errorf("%s: %w", core.FormatUserError(err), err)
			}

			out := cmd.OutOrStdout()
			validator := core.NewRowValidator(acceptBib)
			invalid := 0
			for i, rec := range roster.Records {
				res := validator.Validate(i, rec)
				if res.OK() {
					fmt.Fprintf(out, "row %d: ok (%s)\n", i, res.Row.FullName())
					continue
				}
				invalid++
				fmt.Fprintf(out, "row %d: error: %s\n", i, res.Errors.Error())
			}
			fmt.Fprintf(out, "%d rows, %d valid, %d invalid\n", len(roster.Records), len(roster.Records)-invalid, invalid)

			if invalid > 0 {
				return errRowsInvalid
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Roster CSV file")
	cmd.Flags().BoolVar(&acceptBib, "accept-bib", false, "Accept the bib_num column")
	cmd.Flags().IntVar(&maxRows, "max-rows", 0, "Reject files with more data rows (0 = no limit)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newReconcileCommand(opts *rootOptions) *cobra.Command {
	var (
		file    string
		eventID int64
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Classify a roster against an event and print the JSON report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			roster, err := readRosterFile(file, e.service.ParseOptions())
			if err != nil {
				return err
			}
			report, err := e.service.Reconcile(opts.actorContext(cmd.Context()), core.ReconcileRequest{
				EventID: eventID,
				Headers: roster.Headers,
				Records: roster.Records,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Roster CSV file")
	cmd.Flags().Int64Var(&eventID, "event", 0, "Event id")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("event")
	return cmd
}

func newCommitCommand(opts *rootOptions) *cobra.Command {
	var (
		file    string
		eventID int64
	)

	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Commit an approved batch read from a JSON file",
		Long: `commit reads {"rows": [...]} in the same shape the HTTP API accepts and
writes the whole batch in one transaction. If any row fails, nothing is saved
and the report lists every row as failed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			var body struct {
				Rows []core.CommitRow `json:"rows"`
			}
			if err := json.Unmarshal(data, &body); err != nil {
				return fmt.Errorf("%w: %v", core.ErrInvalidRequest, err)
			}

			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			acceptBib := e.service.ParseOptions().AcceptBibNum
			for i := range body.Rows {
				body.Rows[i].Fields = core.NormalizeRecord(body.Rows[i].Fields, acceptBib)
			}

			report, err := e.service.Commit(opts.actorContext(cmd.Context()), core.CommitRequest{
				EventID: eventID,
				Rows:    body.Rows,
			})
			if report != nil {
				if perr := printJSON(cmd.OutOrStdout(), report); perr != nil {
					return perr
				}
			}
			return err
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "JSON file with approved rows")
	cmd.Flags().Int64Var(&eventID, "event", 0, "Event id")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("event")
	return cmd
}

func newDivisionsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "divisions",
		Short: "Inspect or bootstrap an event's divisions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	var eventID int64
	cmd.PersistentFlags().Int64Var(&eventID, "event", 0, "Event id")
	_ = cmd.MarkPersistentFlagRequired("event")

	var genders []string
	ensure := &cobra.Command{
		Use:     "ensure",
		Short:   "Link the standard divisions for the given genders to an event that has none",
		Example: `  rosterctl divisions ensure --event 12 --gender M --gender F`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			divisions, err := e.service.EnsureDivisions(opts.actorContext(cmd.Context()), eventID, genders)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), divisions)
		},
	}
	ensure.Flags().StringSliceVar(&genders, "gender", nil, "Gender token (repeatable)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List the divisions linked to an event",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			divisions, err := e.service.EventDivisions(opts.actorContext(cmd.Context()), eventID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), divisions)
		},
	}

	cmd.AddCommand(ensure, list)
	return cmd
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			if err := database.Migrate(cmd.Context(), e.pool); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
			return nil
		},
	}
}
