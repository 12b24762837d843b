// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// models.go - Model catalog listing for replichat CLI.
package cli

import (
	"fmt"
	"io"

	"github.com/jeranaias/replichat/internal/config"
	"github.com/jeranaias/replichat/internal/model"
	"github.com/jeranaias/replichat/internal/util"
)

// RunModels prints the catalog, marking the configured model.
func RunModels(args Args, out io.Writer) error {
	current := args.Model
	if current == "" {
		cfg, err := config.Load()
		if err != nil {
			current = model.DefaultModel().ID
		} else {
			current = cfg.Generation.Model
		}
	}
	printModels(out, current)
	return nil
}

func printModels(out io.Writer, current string) {
	catalog := model.Catalog()
	width := 0
	for _, p := range catalog {
		width = max(width, util.StringWidth(p.ID))
	}

	fmt.Fprintln(out, TitleStyle.Render("Available models"))
	for i, p := range catalog {
		marker := "  "
		id := util.PadRight(p.ID, width)
		if p.ID == current {
			marker = SuccessStyle.Render("* ")
			id = SuccessStyle.Render(id)
		}
		fmt.Fprintf(out, "%s%d. %s  %s\n", marker, i+1, id, DimStyle.Render(p.Summary()))
	}
}
