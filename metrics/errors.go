package metrics

import "errors"

var ErrExportFailed = errors.New("metrics export failed")
