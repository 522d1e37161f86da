package envutil

import (
	"os"
	"strings"
)

// IsDev checks if we're running in development mode
// where cookies may travel over plain HTTP
func IsDev() bool {
	env := strings.ToLower(os.Getenv("DFL_ENV"))
	return env == "development" || env == "dev"
}
