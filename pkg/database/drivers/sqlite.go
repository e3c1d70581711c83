package drivers

import (
	// Pure-Go SQLite; registers as "sqlite". The default backend, so it
	// carries no build tag.
	_ "modernc.org/sqlite"
)
