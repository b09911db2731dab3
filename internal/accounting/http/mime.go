package http

import (
	"log"
	"mime"
)

func init() {
	ensureMimeType(".csv", "text/csv; charset=utf-8")
	ensureMimeType(".pdf", "application/pdf")
	ensureMimeType(".xlsx", xlsxContentType)
}

func ensureMimeType(ext, typ string) {
	if mime.TypeByExtension(ext) != "" {
		return
	}
	if err := mime.AddExtensionType(ext, typ); err != nil {
		log.Printf("reports http: failed to register MIME type for %s: %v", ext, err)
	}
}
