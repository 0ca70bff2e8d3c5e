package main

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func (cli *commandLine) exportCSVCmd() *cobra.Command {
	var (
		assignmentID int64
		out          string
	)
	cmd := &cobra.Command{
		Use:   "exportcsv",
		Short: "Export the answers of an assignment as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if assignmentID == 0 {
				_ = cmd.Usage()
				return errHelp
			}
			return cli.exportCSV(assignmentID, out)
		},
	}
	cmd.Flags().Int64Var(&assignmentID, "assignment", 0, "assignment id")
	cmd.Flags().StringVar(&out, "out", "", "output file, defaults to the export file name; - writes to stdout")
	return cmd
}

func (cli *commandLine) exportCSV(assignmentID int64, out string) error {
	filename, data, err := cli.asgSvc.ExportCSV(context.Background(), assignmentID)
	if err != nil {
		return err
	}
	if out == "-" {
		_, err = cli.out.Write(data)
		return err
	}
	if out == "" {
		out = filename
	}
	if err = os.WriteFile(out, data, 0o644); err != nil {
		return errors.Wrap(err, "writing export")
	}
	cli.printf("exported %s\n", out)
	return nil
}
