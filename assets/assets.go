// Package assets embeds the static files shipped with the binaries.
package assets

import "embed"

const (
	EmailTemplatesDir   = "templates/email"
	CommonPasswordsFile = "common-passwords.txt.gz"
)

//go:embed all:templates common-passwords.txt.gz
var FS embed.FS
