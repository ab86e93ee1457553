package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gabriel-vasile/mimetype"

	"github.com/AnshRaj112/soconnect-backend/internal/middleware"
	"github.com/AnshRaj112/soconnect-backend/internal/models"
	"github.com/AnshRaj112/soconnect-backend/internal/services"
)

// multipartSlack covers the form fields and boundaries around the file.
const multipartSlack = 1 << 20

// UploadFile stores a file and appends it as an attachment message.
// Form fields: to, file, and an optional caption.
func (h *Handler) UploadFile(w http.ResponseWriter, r *http.Request) {
	if h.uploads == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
			Success: false,
			Error:   "UploadsDisabled",
			Message: "File uploads are not configured on this server",
		})
		return
	}

	maxBytes := h.uploads.MaxBytes()
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartSlack)
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || r.ContentLength > maxBytes+multipartSlack {
			h.writeError(w, r, models.ErrAttachmentTooLarge)
			return
		}
		h.writeError(w, r, models.ErrInvalidInput)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, r, models.ErrInvalidInput)
		return
	}
	defer file.Close()

	if header.Size > maxBytes {
		h.writeError(w, r, models.ErrAttachmentTooLarge)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		h.writeError(w, r, models.ErrInvalidInput)
		return
	}

	var caption *string
	if c := r.FormValue("caption"); c != "" {
		caption = &c
	}

	from := middleware.UserCode(r.Context())
	to := r.FormValue("to")
	contentType := detectContentType(header.Header.Get("Content-Type"), data)

	msg, err := h.uploads.Attach(r.Context(), from, to, data, header.Filename, contentType, caption)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, MessageResponse{Success: true, Msg: msg})
}

// detectContentType sniffs the payload. The declared part type is kept only
// when it refines what was sniffed, e.g. a docx declared over zip bytes.
func detectContentType(declared string, data []byte) string {
	sniffed := mimetype.Detect(data)
	declared = services.NormalizeMIMEType(declared)
	// The root type (unrecognized binary) vouches for nothing.
	if declared != "" && sniffed.Parent() != nil && !sniffed.Is(declared) {
		if d := mimetype.Lookup(declared); d != nil {
			for p := d.Parent(); p != nil; p = p.Parent() {
				if sniffed.Is(p.String()) {
					return declared
				}
			}
		}
	}
	return services.NormalizeMIMEType(sniffed.String())
}
