package app

// Compiled-in modules. Each registers itself with core in init.
import (
	_ "github.com/flemzord/gasbox/internal/cron"
	_ "github.com/flemzord/gasbox/internal/gateway"
	_ "github.com/flemzord/gasbox/modules/drive/sqlite"
)
