package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	dbproxy "github.com/ice-blockchain/go-dbproxy"
	"github.com/ice-blockchain/go-dbproxy/driver"
	"github.com/ice-blockchain/go-dbproxy/selector"
)

var (
	queryCmd = &cobra.Command{
		Use:   "query [sql] [args...]",
		Short: "Prints every row returned by a statement",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := dbproxy.NewQueryRequest(args[0]).Args(params(args[1:])...)
			if tag := viper.GetString("tag"); tag != "" {
				req.Tag(tag)
			}
			resp, err := do(cmd.Context(), req)
			if err != nil {
				return err
			}
			printRows(stdout, resp.Columns, resp.Rows)
			return nil
		},
	}
	rowCmd = &cobra.Command{
		Use:   "row [sql] [args...]",
		Short: "Prints the first row returned by a statement",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := dbproxy.NewRowRequest(args[0]).Args(params(args[1:])...)
			if tag := viper.GetString("tag"); tag != "" {
				req.Tag(tag)
			}
			resp, err := do(cmd.Context(), req)
			if err != nil {
				return err
			}
			var rows []driver.Row
			if resp.Row != nil {
				rows = append(rows, resp.Row)
			}
			printRows(stdout, resp.Columns, rows)
			return nil
		},
	}
	oneCmd = &cobra.Command{
		Use:   "one [sql] [args...]",
		Short: "Prints the first column of the first row returned by a statement",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := dbproxy.NewValueRequest(args[0]).Args(params(args[1:])...)
			if tag := viper.GetString("tag"); tag != "" {
				req.Tag(tag)
			}
			resp, err := do(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, formatValue(resp.Value))
			return nil
		},
	}
	execCmd = &cobra.Command{
		Use:   "exec [sql] [args...]",
		Short: "Runs a statement that doesn't return rows",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := dbproxy.NewExecRequest(args[0]).Args(params(args[1:])...)
			if tag := viper.GetString("tag"); tag != "" {
				req.Tag(tag)
			}
			resp, err := do(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "affected rows: %d, last insert id: %d\n",
				resp.Result.AffectedRows, resp.Result.LastInsertID)
			return nil
		},
	}
	escapeCmd = &cobra.Command{
		Use:   "escape [string]",
		Short: "Quotes a string literal the way the master connection does",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := db.EscapeSQLString(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, s)
			return nil
		},
	}
	nodesCmd = &cobra.Command{
		Use:   "nodes",
		Short: "Lists the nodes of the profile and probes each of them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printNodes(cmd.Context(), stdout, source, selector.DriverProber{Registry: driver.Default})
		},
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dbproxy",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(stdout, "dbproxy v%s\n", Version)
		},
	}
)

func do(ctx context.Context, req dbproxy.Request) (*dbproxy.Response, error) {
	if viper.GetBool("master") {
		db.NextQueryInMaster()
	}
	return db.Do(ctx, req)
}

// params turns command line arguments into bound parameters.
func params(args []string) []interface{} {
	if len(args) == 0 {
		return nil
	}
	ret := make([]interface{}, len(args))
	for i, a := range args {
		ret[i] = a
	}
	return ret
}
