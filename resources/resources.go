// Package resources embeds the model descriptions and post-processing SQL
// shipped with bioconv.
package resources

import "embed"

// FS holds <model>_model.yaml and <model>_src_items.sql files.
//
//go:embed *.yaml *.sql
var FS embed.FS
