/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/rotblauer/trajd/common"
	"github.com/rotblauer/trajd/params"
	"github.com/rotblauer/trajd/resultdb"
	"github.com/spf13/cobra"
)

var optInspectJSON bool

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect [batch-id]",
	Short: "List stored batches, or print one",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		id := ""
		if len(args) > 0 {
			id = args[0]
		}
		if err := runInspect(os.Stdout, params.DatadirRoot, id, optInspectJSON); err != nil {
			log.Fatalln(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().BoolVar(&optInspectJSON, "json", false, "Print JSON lines instead of a table")
}

func runInspect(w io.Writer, datadir, id string, asJSON bool) error {
	db, err := resultdb.OpenDatadir(datadir, true)
	if err != nil {
		return err
	}
	defer db.Close()

	if id != "" {
		meta, err := db.Batch(id)
		if err != nil {
			return err
		}
		sums, err := db.Summaries(id)
		if err != nil {
			return err
		}
		if asJSON {
			enc := json.NewEncoder(w)
			for _, s := range sums {
				if err := enc.Encode(s); err != nil {
					return err
				}
			}
			return nil
		}
		fmt.Fprintf(w, "Batch %s from %s, %s (%s points)\n", meta.BatchID, meta.Source,
			humanize.Time(meta.Created), humanize.Comma(int64(meta.Points)))
		return writeTable(w, sums)
	}

	metas, err := db.Batches()
	if err != nil {
		return err
	}
	if asJSON {
		enc := json.NewEncoder(w)
		for _, m := range metas {
			if err := enc.Encode(m); err != nil {
				return err
			}
		}
		return nil
	}
	table := tablewriter.NewWriter(w)
	table.Header("Batch", "Created", "Source", "Trajectories", "Points", "Total (m)", "Mean speed (m/s)")
	for _, m := range metas {
		err := table.Append([]string{
			m.BatchID,
			m.Created.Format(time.DateTime),
			m.Source,
			strconv.Itoa(m.Trajectories),
			humanize.Comma(int64(m.Points)),
			common.FixedString(m.Stats.TotalDistance, 2),
			common.FixedString(m.Stats.MeanSpeed, 3),
		})
		if err != nil {
			return err
		}
	}
	return table.Render()
}
