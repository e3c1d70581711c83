package drivers

import (
	// Registers the "genji" document-store driver for operators who
	// prefer it over SQLite files.
	_ "github.com/genjidb/genji/driver"
)
