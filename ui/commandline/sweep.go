// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package commandline

import (
	"fmt"
	"slices"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// SweepRow holds the final accuracies of one learning rate trial.
type SweepRow struct {
	LearningRate     float64
	TrainAcc, ValAcc float64
	Best             bool
}

// RenderSweep renders the learning rate sweep as a table, sorted by learning rate.
func RenderSweep(rows []SweepRow) string {
	rows = slices.Clone(rows)
	slices.SortFunc(rows, func(a, b SweepRow) int {
		switch {
		case a.LearningRate < b.LearningRate:
			return -1
		case a.LearningRate > b.LearningRate:
			return 1
		}
		return 0
	})

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Learning rate", "Train accuracy", "Validation accuracy", ""})
	for _, row := range rows {
		marker := ""
		if row.Best {
			marker = "best"
		}
		tw.AppendRow(table.Row{
			fmt.Sprintf("%g", row.LearningRate),
			formatAccuracy(row.TrainAcc),
			formatAccuracy(row.ValAcc),
			marker,
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

func formatAccuracy(acc float64) string {
	return fmt.Sprintf("%.2f%%", acc*100)
}
