// internal/app/system/limits/limits.go
package limits

// Request body size limits. These keep a single request from exhausting memory.
const (
	// MaxJSONBodySize bounds every JSON request body.
	MaxJSONBodySize = 64 << 10 // 64 KB

	// MaxImportUploadSize bounds a project CSV upload.
	MaxImportUploadSize = 5 << 20 // 5 MB
)
