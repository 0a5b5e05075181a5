package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/ice-blockchain/go-dbproxy/config"
	"github.com/ice-blockchain/go-dbproxy/debug"
	"github.com/ice-blockchain/go-dbproxy/driver"
	"github.com/ice-blockchain/go-dbproxy/selector"
)

func printRows(w io.Writer, columns []string, rows []driver.Row) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(columns, "\t"))
	for _, row := range rows {
		vals := make([]string, len(columns))
		for i, col := range columns {
			v, ok := row[col]
			if !ok {
				v = row[strconv.Itoa(i)]
			}
			vals[i] = formatValue(v)
		}
		fmt.Fprintln(tw, strings.Join(vals, "\t"))
	}
	tw.Flush()
	fmt.Fprintf(w, "(%d rows)\n", len(rows))
}

func formatValue(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

func printRecords(w io.Writer, records []debug.Record) {
	for _, rec := range records {
		dup := ""
		if rec.Duplicated {
			dup = " DUPLICATED"
		}
		fmt.Fprintf(w, "-- %s %s on %s %s/%s, %d rows in %s%s\n",
			rec.ID, rec.Type, rec.Destination, rec.Host, rec.Database, rec.Rows, rec.Time, dup)
		fmt.Fprintf(w, "-- from %s\n%s\n", rec.Controller, rec.SQL)
		if rec.Error != "" {
			fmt.Fprintf(w, "-- error: %s\n", rec.Error)
		}
	}
}

// printNodes lists the nodes of the deployment described by source with
// their probe status.
func printNodes(ctx context.Context, w io.Writer, source config.Source, prober selector.Prober) error {
	params := source.Params()

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ROLE\tID\tNODE\tWEIGHT\tSTATUS")
	if params.Profile == "" {
		fmt.Fprintf(tw, "single_server\t-\t%s\t-\t%s\n", params.Node, status(ctx, prober, params.Node))
		return tw.Flush()
	}

	profile, err := source.Profile(params.Profile)
	if err != nil {
		return err
	}
	fmt.Fprintf(tw, "master\t-\t%s\t-\t%s\n", profile.Master, status(ctx, prober, profile.Master))
	for _, id := range profile.SlaveIDs() {
		n := profile.Slaves[id]
		fmt.Fprintf(tw, "slave\t%s\t%s\t%d\t%s\n", id, n, n.Weight, status(ctx, prober, n))
	}
	return tw.Flush()
}

func status(ctx context.Context, prober selector.Prober, node config.Node) string {
	if err := prober.Probe(ctx, node); err != nil {
		return "down: " + err.Error()
	}
	return "up"
}
