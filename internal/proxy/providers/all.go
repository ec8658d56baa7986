// Package providers imports all reverse-proxy provider packages to trigger their init() registration.
package providers

import (
	_ "github.com/yuriy-kovalchuk/yk-speeddial/internal/proxy/npm"
)
