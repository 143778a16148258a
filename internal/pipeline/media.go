package pipeline

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/seantiz/vidrestore/internal/model"
)

// ErrNotVideo is returned for payloads that are not a recognized video type.
var ErrNotVideo = model.NewError(model.KindValidation, "payload is not a recognized video type", nil)

// ValidateMedia accepts a payload whose declared content type is video/*.
// Undeclared or generic types fall back to sniffing the leading bytes.
func ValidateMedia(contentType string, head []byte) error {
	declared := normalizeType(contentType)
	switch {
	case strings.HasPrefix(declared, "video/"):
		return nil
	case declared == "" || declared == "application/octet-stream":
		if isVideo(mimetype.Detect(head)) {
			return nil
		}
		return ErrNotVideo
	default:
		return model.NewError(model.KindValidation, "unsupported content type "+declared, nil)
	}
}

// ValidateMediaFile sniffs a staged file.
func ValidateMediaFile(path string) error {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return model.NewError(model.KindIO, "inspect input", err)
	}
	if !isVideo(mt) {
		return model.NewError(model.KindValidation, "input is "+mt.String()+", not a recognized video type", nil)
	}
	return nil
}

func isVideo(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "video/") {
			return true
		}
	}
	return false
}

func normalizeType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mediaType
}

// inputName picks a safe file name for a staged payload.
func inputName(filename string, head []byte) string {
	name := filepath.Base(filepath.Clean("/" + filename))
	if name == "/" || name == "." || name == "" {
		return "input_video" + mimetype.Detect(head).Extension()
	}
	return name
}
