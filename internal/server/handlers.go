package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Yates-Labs/storyteller/internal/apperr"
	"github.com/Yates-Labs/storyteller/internal/logging"
	"github.com/Yates-Labs/storyteller/internal/orchestrator"
)

// multipartMemory is how much of a multipart body is kept in memory before
// spilling to temporary files.
const multipartMemory = 8 << 20

const formOp = "parse form"

func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome to the AI Story Teller API!"})
}

func (s *Server) helloHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Hello from the AI Story Teller API!"})
}

func (s *Server) uploadImageHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		writeError(w, r, err)
		return
	}
	image, contentType, err := formFile(r, "file")
	if err != nil {
		writeError(w, r, err)
		return
	}

	out, err := s.pipeline.UploadImage(r.Context(), image, contentType)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) uploadPDFHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		writeError(w, r, err)
		return
	}
	pdf, _, err := formFile(r, "file")
	if err != nil {
		writeError(w, r, err)
		return
	}

	out, err := s.pipeline.UploadDocument(r.Context(), pdf)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) generateStoryHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		writeError(w, r, err)
		return
	}
	scenario, err := formValue(r, "scenario")
	if err != nil {
		writeError(w, r, err)
		return
	}
	modelChoice, err := formValue(r, "model_choice")
	if err != nil {
		writeError(w, r, err)
		return
	}

	out, err := s.pipeline.GenerateStory(r.Context(), scenario, modelChoice)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) generateStoryFromImageHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		writeError(w, r, err)
		return
	}
	image, _, err := formFile(r, "image")
	if err != nil {
		writeError(w, r, err)
		return
	}
	modelChoice, err := formValue(r, "model_choice")
	if err != nil {
		writeError(w, r, err)
		return
	}
	pdf, _, err := formFile(r, "pdf")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		writeError(w, r, err)
		return
	case len(pdf) == 0:
		writeError(w, r, apperr.Errorf(apperr.KindInvalidInput, formOp, "pdf: uploaded file is empty"))
		return
	}

	out, err := s.pipeline.GenerateStoryFromImage(r.Context(), orchestrator.ImageStoryRequest{
		Image:       image,
		ModelChoice: modelChoice,
		PDF:         pdf,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) evaluateStoryHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		writeError(w, r, err)
		return
	}
	story, err := formValue(r, "story")
	if err != nil {
		writeError(w, r, err)
		return
	}

	scores, err := s.pipeline.EvaluateStory(r.Context(), story)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"evaluation": scores})
}

func (s *Server) textToSpeechHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		writeError(w, r, err)
		return
	}
	story, err := formValue(r, "story")
	if err != nil {
		// the web frontend sends the story as "text"
		if text, textErr := formValue(r, "text"); textErr == nil {
			story, err = text, nil
		}
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	audio, err := s.pipeline.TextToSpeech(r.Context(), story)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", audio.ContentType)
	w.Header().Set("Content-Disposition", `inline; filename="story.flac"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio.Data)
}

func (s *Server) imageToTextHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		writeError(w, r, err)
		return
	}
	image, contentType, err := formFile(r, "file")
	if err != nil {
		writeError(w, r, err)
		return
	}

	out, err := s.pipeline.UploadImage(r.Context(), image, contentType)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": out.Caption})
}

func (s *Server) storyGeneratorHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		writeError(w, r, err)
		return
	}
	scenario, err := formValue(r, "scenario")
	if err != nil {
		writeError(w, r, err)
		return
	}
	modelChoice, err := formValue(r, "modelChoice")
	if err != nil {
		writeError(w, r, err)
		return
	}

	out, err := s.pipeline.GenerateStory(r.Context(), scenario, modelChoice)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"story": out.Story})
}

// parseForm parses a multipart or urlencoded body under the upload limit.
func (s *Server) parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)

	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		err = r.ParseMultipartForm(multipartMemory)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return apperr.Errorf(apperr.KindInvalidInput, formOp, "invalid form: %w", err)
	}
	return nil
}

// formValue returns a required form field.
func formValue(r *http.Request, name string) (string, error) {
	if _, ok := r.Form[name]; !ok {
		return "", apperr.Errorf(apperr.KindInvalidInput, formOp, "field required: %s", name)
	}
	return r.Form.Get(name), nil
}

// formFile reads an uploaded file and its declared content type. A missing
// file unwraps to http.ErrMissingFile.
func formFile(r *http.Request, name string) ([]byte, string, error) {
	if r.MultipartForm == nil {
		return nil, "", apperr.E(apperr.KindInvalidInput, formOp, fmt.Errorf("%s: %w", name, http.ErrMissingFile))
	}
	file, header, err := r.FormFile(name)
	if err != nil {
		return nil, "", apperr.E(apperr.KindInvalidInput, formOp, fmt.Errorf("%s: %w", name, err))
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", apperr.E(apperr.KindInvalidInput, formOp, fmt.Errorf("reading %s: %w", name, err))
	}
	return data, header.Header.Get("Content-Type"), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError reports err as {"detail": message} with the status of its kind.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		status = http.StatusRequestEntityTooLarge
	}

	log := logging.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "status", status, "kind", apperr.KindOf(err).String(), "error", err)
	} else {
		log.Warn("request rejected", "status", status, "kind", apperr.KindOf(err).String(), "error", err)
	}

	writeJSON(w, status, map[string]string{"detail": err.Error()})
}
