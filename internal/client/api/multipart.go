package api

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/atinyakov/storyapp/internal/models"
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// encodeStory renders story as a multipart body with a "photo" file part,
// a "description" text part and optional "lat"/"lon" parts.
func encodeStory(story models.NewStory) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	mimeType := story.MimeType
	if mimeType == "" {
		mimeType = http.DetectContentType(story.Image)
	}
	fileName := story.FileName
	if fileName == "" {
		fileName = defaultFileName(mimeType)
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="photo"; filename="%s"`, quoteEscaper.Replace(fileName)))
	h.Set("Content-Type", mimeType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(story.Image); err != nil {
		return nil, "", err
	}

	if err := w.WriteField("description", story.Description); err != nil {
		return nil, "", err
	}
	if story.Lat != nil && story.Lon != nil {
		if err := w.WriteField("lat", strconv.FormatFloat(*story.Lat, 'f', -1, 64)); err != nil {
			return nil, "", err
		}
		if err := w.WriteField("lon", strconv.FormatFloat(*story.Lon, 'f', -1, 64)); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func defaultFileName(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return "photo.jpg"
	case "image/png":
		return "photo.png"
	case "image/webp":
		return "photo.webp"
	default:
		return "photo"
	}
}
