// Package promptdata embeds the example configuration and prompt documents
// written by "moa init". The embedded filesystem is rooted at "scaffold/".
package promptdata

import "embed"

// Root is the embedded directory that maps to the target directory.
const Root = "scaffold"

// ScaffoldFS contains moa.yml and prompts/. Walk from Root to iterate over
// all files.
//
//go:embed all:scaffold
var ScaffoldFS embed.FS
