package objstore

import "strings"

// contentTypes maps a lower-cased file extension (without the dot) to
// its MIME type. Static on purpose: listings must not depend on the
// host platform's MIME database.
var contentTypes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
	"bmp":  "image/bmp",
	"svg":  "image/svg+xml",
	"ico":  "image/x-icon",
	"avif": "image/avif",

	"mp4":  "video/mp4",
	"webm": "video/webm",
	"mov":  "video/quicktime",
	"avi":  "video/x-msvideo",
	"mkv":  "video/x-matroska",

	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
	"flac": "audio/flac",
	"m4a":  "audio/mp4",
	"ogg":  "audio/ogg",

	"pdf":  "application/pdf",
	"txt":  "text/plain",
	"md":   "text/markdown",
	"html": "text/html",
	"htm":  "text/html",
	"css":  "text/css",
	"csv":  "text/csv",
	"js":   "application/javascript",
	"json": "application/json",
	"xml":  "application/xml",
	"yaml": "application/yaml",
	"yml":  "application/yaml",

	"zip": "application/zip",
	"gz":  "application/gzip",
	"tar": "application/x-tar",
	"7z":  "application/x-7z-compressed",
	"rar": "application/vnd.rar",

	"doc":  "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"xls":  "application/vnd.ms-excel",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"ppt":  "application/vnd.ms-powerpoint",
	"pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
}

// ContentTypeForKey infers the MIME type of an object from its key's
// extension. Unknown or missing extensions map to application/octet-stream.
func ContentTypeForKey(key string) string {
	dot := strings.LastIndexByte(key, '.')
	if dot < 0 || dot == len(key)-1 {
		return "application/octet-stream"
	}
	// The extension must belong to the final path segment.
	if strings.ContainsRune(key[dot:], '/') {
		return "application/octet-stream"
	}
	if ct, ok := contentTypes[strings.ToLower(key[dot+1:])]; ok {
		return ct
	}
	return "application/octet-stream"
}
