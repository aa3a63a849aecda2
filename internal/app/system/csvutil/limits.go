// internal/app/system/csvutil/limits.go
package csvutil

// Row limits for CSV processing. Upload size is bounded by limits.MaxImportUploadSize.
const (
	MaxRows = 5000

	MaxTitleLen       = 200
	MaxDescriptionLen = 5000
)
