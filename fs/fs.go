package appfs

import "embed"

// FS holds the SQL migrations, email templates and the common passwords list.
//go:embed migrations templates/email/* common-passwords.txt
var FS embed.FS
