package utils

import (
	"sync"

	"github.com/airbusgeo/godal"
)

// GDAL handles are not safe for concurrent use; every dataset access in
// the module goes through this lock.
var gdalMu sync.Mutex

func ExecuteWithMutex(fn func()) {
	gdalMu.Lock()
	defer gdalMu.Unlock()
	fn()
}

var registerOnce sync.Once

// RegisterGDAL registers the GDAL drivers once per process.
func RegisterGDAL() {
	registerOnce.Do(godal.RegisterAll)
}
