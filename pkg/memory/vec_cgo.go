//go:build sqlite_vec && cgo

package memory

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

// init registers the sqlite-vec extension for cgo sqlite builds, exactly as
// codenerd's internal/store/init_vec.go does. The default build uses
// modernc.org/sqlite (pure Go, no cgo), so this path is inert unless Milton
// is built with both the sqlite_vec and cgo tags against a cgo sqlite
// driver; see embedding.go for the pure-Go cosine-similarity path used by
// the default build.
func init() {
	vec.Auto()
}
