package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"hlsbox/core/audio"
	"hlsbox/core/convert"
	"hlsbox/logger"
)

// uploadField is the multipart field carrying the MP3.
const uploadField = "file"

// Handler serves the conversion and health endpoints.
type Handler struct {
	service         *convert.Service
	ffmpegPath      string
	maxRequestBytes int64
}

// NewHandler 创建新的API处理器
func NewHandler(service *convert.Service, ffmpegPath string, maxRequestBytes int64) *Handler {
	return &Handler{
		service:         service,
		ffmpegPath:      ffmpegPath,
		maxRequestBytes: maxRequestBytes,
	}
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

type healthResponse struct {
	Status          string `json:"status"`
	FFmpegAvailable bool   `json:"ffmpeg_available"`
	FFmpegPath      string `json:"ffmpeg_path"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps err to its status code and JSON body.
func writeError(w http.ResponseWriter, err error) {
	ce := convert.AsError(err)
	writeJSON(w, ce.Kind.HTTPStatus(), errorResponse{Error: string(ce.Kind), Detail: ce.Detail})
}

// ConvertHLS handles POST /api/hls: one MP3 in, one zip of playlist plus segments out.
func (h *Handler) ConvertHLS(w http.ResponseWriter, r *http.Request) {
	if h.maxRequestBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxRequestBytes)
	}

	asset, err := readUpload(r, h.service.MaxUploadBytes())
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			err = convert.ErrPayloadTooLarge(tooLarge.Limit, h.service.MaxUploadBytes())
		}
		logger.Warn("upload rejected",
			logger.String("requestId", convert.RequestID(r.Context())),
			logger.ErrorField(err))
		writeError(w, err)
		return
	}

	art, err := h.service.Convert(r.Context(), asset)
	if err != nil {
		writeError(w, err)
		return
	}
	// The archive is only needed until the body has been written.
	defer func() {
		if err := art.Remove(); err != nil {
			logger.Warn("failed to remove archive", logger.String("path", art.Path), logger.ErrorField(err))
		}
	}()

	f, err := os.Open(art.Path)
	if err != nil {
		writeError(w, convert.ErrInternal(err))
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", art.DownloadName))
	w.Header().Set("Content-Length", strconv.FormatInt(art.Size, 10))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f); err != nil {
		logger.Warn("failed to send archive",
			logger.String("requestId", convert.RequestID(r.Context())),
			logger.ErrorField(err))
	}
}

// readUpload finds the file part and buffers at most limit+1 bytes of it. The declared type is
// checked before anything is buffered.
func readUpload(r *http.Request, limit int64) (convert.Asset, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return convert.Asset{}, convert.ErrMissingFile(err)
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return convert.Asset{}, convert.ErrMissingFile(nil)
		}
		if err != nil {
			return convert.Asset{}, bodyError(err)
		}
		if part.FormName() != uploadField || part.FileName() == "" {
			part.Close()
			continue
		}

		asset := convert.Asset{
			Filename:    part.FileName(),
			ContentType: part.Header.Get("Content-Type"),
		}
		if !convert.IsAllowedContentType(asset.ContentType) {
			part.Close()
			return convert.Asset{}, convert.ErrUnsupportedMediaType(asset.ContentType)
		}
		asset.Data, err = io.ReadAll(io.LimitReader(part, limit+1))
		part.Close()
		if err != nil {
			return convert.Asset{}, bodyError(err)
		}
		return asset, nil
	}
}

// bodyError keeps the request cap error for the caller and reports any other read failure as
// a broken upload.
func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}
	return convert.ErrMalformedUpload(err)
}

// Health handles GET /api/health. It always answers 200.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := audio.CheckTool(h.ffmpegPath)
	if !status.Available {
		logger.Debug("ffmpeg unavailable", logger.String("path", status.Path), logger.String("reason", status.Reason))
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:          "ok",
		FFmpegAvailable: status.Available,
		FFmpegPath:      status.Path,
	})
}
