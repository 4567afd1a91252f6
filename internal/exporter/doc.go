// Package exporter writes the pipeline outputs.
//
// CSVWriter writes chart tables relative to the configured output directory
// (or the raw data and cache directories for "raw/" and "cache/" paths),
// merges key numbers into JSON documents and bundles a run's tables into an
// Excel workbook:
//
//	w := exporter.NewCSVWriter(paths, logger)
//	err := w.WriteTable(ctx, "fed_rate_hikes.csv", header, records)
//	err = w.UpdateKeyNumbers(ctx, "inflation_key_numbers.json", numbers.Map())
//	err = w.BuildWorkbook(ctx, "charts.xlsx", w.Written())
//
// Numbers are formatted with FormatFloat for data cells and FormatNumber for
// human readable amounts such as commitments in millions.
package exporter
