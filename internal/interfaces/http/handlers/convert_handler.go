package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/icon-forge/iconforge/internal/apperrors"
	"github.com/icon-forge/iconforge/internal/imaging"
	"github.com/icon-forge/iconforge/internal/interfaces/http/middleware"
	"github.com/icon-forge/iconforge/internal/metrics"
	"github.com/icon-forge/iconforge/internal/pool"
	"github.com/icon-forge/iconforge/internal/queue"
	"github.com/icon-forge/iconforge/internal/ratelimit"
	"github.com/icon-forge/iconforge/internal/sanitizer"
)

// allowedCornerRadii, allowedColorDepths and the min/max constants below are
// the conversion API's explicit option bounds; anything outside them is a 400.
var allowedCornerRadii = []float64{0, 12.5, 25, 37.5, 50}
var allowedColorDepths = []int{8, 24, 32}

const (
	minScale           = 50
	maxScale           = 200
	minOutputSize      = 16
	maxOutputSize      = 2048
	minPNGDpi          = 1
	maxPNGDpi          = 600
	defaultOutputSize  = 512
	defaultPNGDpi      = 72
	cornerRadiusEpsilon = 0.001
)

// ConvertHandler implements POST /api/v1/convert: sanitize, validate,
// enqueue, and stream back a converted icon artifact. The rate-limit gate
// (spec step 1) runs ahead of this handler as middleware.RateLimiter, mounted
// on this route in the router.
type ConvertHandler struct {
	queue      *queue.Queue
	metrics    *metrics.Recorder
	jobTimeout time.Duration
	logger     zerolog.Logger
}

// NewConvertHandler constructs a ConvertHandler.
func NewConvertHandler(
	q *queue.Queue,
	metricsRecorder *metrics.Recorder,
	jobTimeout time.Duration,
	logger zerolog.Logger,
) *ConvertHandler {
	return &ConvertHandler{
		queue:      q,
		metrics:    metricsRecorder,
		jobTimeout: jobTimeout,
		logger:     logger,
	}
}

type convertOptions struct {
	format             imaging.Format
	scale              float64
	cornerRadius       float64
	bgMode             imaging.BGMode
	bgColor            string
	outputSize         int
	pngDPI             int
	pngColorspace      imaging.Colorspace
	pngColorDepth      int
	sourceWidth        int
	sourceHeight       int
}

// MarshalJSON renders the resolved options a conversion actually ran with,
// for the conversion_metric.conversion_options audit column.
func (o convertOptions) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Format        imaging.Format     `json:"format"`
		Scale         float64            `json:"scale"`
		CornerRadius  float64            `json:"cornerRadius"`
		BGMode        imaging.BGMode     `json:"backgroundRemovalMode"`
		BGColor       string             `json:"backgroundRemovalColor,omitempty"`
		OutputSize    int                `json:"outputSize"`
		PNGDpi        int                `json:"pngDpi"`
		PNGColorspace imaging.Colorspace `json:"pngColorspace"`
		PNGColorDepth int                `json:"pngColorDepth"`
		SourceWidth   int                `json:"sourceWidth,omitempty"`
		SourceHeight  int                `json:"sourceHeight,omitempty"`
	}{
		Format:        o.format,
		Scale:         o.scale,
		CornerRadius:  o.cornerRadius,
		BGMode:        o.bgMode,
		BGColor:       o.bgColor,
		OutputSize:    o.outputSize,
		PNGDpi:        o.pngDPI,
		PNGColorspace: o.pngColorspace,
		PNGColorDepth: o.pngColorDepth,
		SourceWidth:   o.sourceWidth,
		SourceHeight:  o.sourceHeight,
	})
}

// Convert handles POST /api/v1/convert.
//
//nolint:funlen,cyclop // single linear request pipeline per the conversion contract
func (h *ConvertHandler) Convert(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	h.logger.Debug().
		Str("client_ip", GetClientIP(r)).
		Str("user_agent", GetUserAgent(r)).
		Msg("convert request received")

	// Step 1 (rate-limit gate by client IP) already ran as middleware.RateLimiter
	// ahead of this handler.

	// 2. Extract uploaded file, reject if absent or too large.
	if err := r.ParseMultipartForm(maxSourceBytes); err != nil {
		h.writeAppError(w, r, apperrors.Wrap(apperrors.KindValidation, "invalid multipart form data", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeAppError(w, r, apperrors.New(apperrors.KindValidation, "file is required"))
		return
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			h.logger.Warn().Err(cerr).Msg("failed to close uploaded file")
		}
	}()

	if header.Size > maxSourceBytes {
		h.writeAppError(w, r, apperrors.New(apperrors.KindPayloadTooLarge, "source file exceeds 10 MiB"))
		return
	}

	sourceBytes := make([]byte, header.Size)
	if _, err := io.ReadFull(file, sourceBytes); err != nil {
		h.writeAppError(w, r, apperrors.Wrap(apperrors.KindValidation, "failed to read uploaded file", err))
		return
	}

	// 3. Detect source type by extension.
	sourceType, err := detectSourceType(header.Filename)
	if err != nil {
		h.writeAppError(w, r, apperrors.New(apperrors.KindValidation, err.Error()))
		return
	}

	// 4. Sanitize (SVG) or signature check (PNG).
	sanResult, err := sanitizer.Sanitize(sourceBytes, sanitizer.SourceType(sourceType))
	if err != nil {
		h.logger.Debug().Err(err).Str("source_type", string(sourceType)).Msg("source rejected by sanitizer")
		h.writeAppError(w, r, apperrors.New(apperrors.KindUnsafeContent, "file rejected for security reasons"))
		return
	}

	// 5. Parse and validate options.
	opts, err := parseConvertOptions(r, sourceType)
	if err != nil {
		h.writeAppError(w, r, apperrors.New(apperrors.KindValidation, err.Error()))
		return
	}

	jobID := uuid.New()
	job := imaging.Job{
		ID:               jobID.String(),
		SourceType:       imaging.SourceType(sourceType),
		SourceBytes:      sanResult.SafeBytes,
		OriginalFilename: sanitizer.Filename(header.Filename),
		Format:           opts.format,
		ScalePercent:     opts.scale,
		CornerRadiusPct:  opts.cornerRadius,
		BGMode:           opts.bgMode,
		BGColor:          opts.bgColor,
		PNGOptions: imaging.PNGOptions{
			Size:       opts.outputSize,
			DPI:        opts.pngDPI,
			Colorspace: opts.pngColorspace,
			ColorDepth: opts.pngColorDepth,
		},
		SourceDimensions: imaging.SourceDimensions{
			Width:  opts.sourceWidth,
			Height: opts.sourceHeight,
		},
	}

	// 6. Submit to the job queue (C3), which the worker pool (C4) drains.
	_, future, err := h.queue.Enqueue(job, time.Now().Add(h.jobTimeout))
	if err != nil {
		if errors.Is(err, queue.ErrBusy) {
			h.writeAppError(w, r, apperrors.New(apperrors.KindQueueFull, "server is busy, please try again later"))
			return
		}
		h.writeAppError(w, r, apperrors.Wrap(apperrors.KindInternal, "failed to enqueue job", err))
		return
	}

	result, err := future.Wait(ctx)
	if err != nil {
		h.writeAppError(w, r, apperrors.Wrap(apperrors.KindInternal, "request canceled", err))
		return
	}

	elapsed := time.Since(start)

	var outputBytes int
	artifacts, _ := result.Value.([]imaging.Artifact)
	for _, a := range artifacts {
		outputBytes += len(a.Bytes)
	}

	// Hash the same identity the rate-limit middleware keys on: RemoteAddr
	// without its port.
	clientIdentity := r.RemoteAddr
	if host, _, splitErr := net.SplitHostPort(clientIdentity); splitErr == nil {
		clientIdentity = host
	}
	h.recordMetric(ctx, jobID, job, opts, clientIdentity, len(sourceBytes), outputBytes, elapsed, result)

	switch result.Outcome {
	case queue.OutcomeCompleted:
		if len(artifacts) == 0 {
			h.writeAppError(w, r, apperrors.New(apperrors.KindInternal, "conversion produced no output"))
			return
		}
		h.writeArtifact(w, artifacts[0], elapsed)

	case queue.OutcomeTimedOut:
		h.writeAppError(w, r, apperrors.New(apperrors.KindTimeout, "processing took too long"))

	case queue.OutcomeShuttingDown:
		h.writeAppError(w, r, apperrors.New(apperrors.KindQueueFull, "server is shutting down"))

	default: // OutcomeFailed
		h.mapConversionError(w, r, result.Err)
	}
}

func (h *ConvertHandler) writeArtifact(w http.ResponseWriter, artifact imaging.Artifact, elapsed time.Duration) {
	w.Header().Set("Content-Type", artifact.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.Filename))
	w.Header().Set("X-Processing-Time-Ms", strconv.FormatInt(elapsed.Milliseconds(), 10))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(artifact.Bytes)
}

func (h *ConvertHandler) mapConversionError(w http.ResponseWriter, r *http.Request, err error) {
	var imgErr *imaging.Error
	if errors.As(err, &imgErr) {
		h.writeAppError(w, r, apperrors.New(apperrors.KindValidation, imgErr.Message))
		return
	}
	if errors.Is(err, pool.ErrWorkerCrashed) {
		h.writeAppError(w, r, apperrors.New(apperrors.KindWorkerCrashed, "unexpected error; please retry"))
		return
	}
	if err == nil {
		err = fmt.Errorf("unknown conversion failure")
	}
	h.writeAppError(w, r, apperrors.Wrap(apperrors.KindInternal, "conversion failed", err))
}

func (h *ConvertHandler) writeAppError(w http.ResponseWriter, r *http.Request, appErr *apperrors.Error) {
	status, title := apperrors.StatusAndTitle(appErr.Kind)
	middleware.WriteError(w, r, status, title, appErr.Message)
}

// recordMetric hands the conversion outcome off to the metrics sink (C6).
// Failures are logged and never surfaced to the client, per the sink's
// append-only, fire-and-forget contract.
func (h *ConvertHandler) recordMetric(
	ctx context.Context,
	jobID uuid.UUID,
	job imaging.Job,
	opts convertOptions,
	clientIdentity string,
	inputBytes, outputBytes int,
	elapsed time.Duration,
	result queue.Result,
) {
	if h.metrics == nil {
		return
	}

	failureReason := ""
	if result.Outcome != queue.OutcomeCompleted && result.Err != nil {
		failureReason = result.Err.Error()
	}

	optionsJSON, err := json.Marshal(opts)
	if err != nil {
		h.logger.Warn().Err(err).Str("job_id", jobID.String()).Msg("failed to marshal conversion options for metric")
		optionsJSON = nil
	}

	metric := metrics.ConversionMetric{
		ID:                uuid.New(),
		JobID:             jobID,
		IdentityHash:      ratelimit.IdentityHash(clientIdentity),
		InputFormat:       string(job.SourceType),
		OutputFormat:      string(job.Format),
		InputBytes:        inputBytes,
		OutputBytes:       outputBytes,
		ConversionOptions: optionsJSON,
		OutputSizes:       []int{job.PNGOptions.Size},
		Duration:          elapsed,
		Success:           result.Outcome == queue.OutcomeCompleted,
		FailureReason:     failureReason,
		CreatedAt:         time.Now().UTC(),
	}

	h.metrics.Record(ctx, metric, func(err error) {
		h.logger.Warn().Err(err).Str("job_id", jobID.String()).Msg("failed to record conversion metric")
	})
}

func detectSourceType(filename string) (sourceTypeToken, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".svg":
		return sourceSVGToken, nil
	case ".png":
		return sourcePNGToken, nil
	default:
		return "", fmt.Errorf("unsupported file extension %q, expected .svg or .png", ext)
	}
}

type sourceTypeToken string

const (
	sourceSVGToken sourceTypeToken = "svg"
	sourcePNGToken sourceTypeToken = "png"
)

func parseConvertOptions(r *http.Request, sourceType sourceTypeToken) (convertOptions, error) {
	opts := convertOptions{
		format:        imaging.FormatICO,
		scale:         100,
		cornerRadius:  0,
		bgMode:        imaging.BGNone,
		outputSize:    defaultOutputSize,
		pngDPI:        defaultPNGDpi,
		pngColorspace: imaging.ColorspaceSRGB,
		pngColorDepth: 32,
	}

	if v := r.FormValue("format"); v != "" {
		format, err := imaging.ParseFormat(v)
		if err != nil {
			return opts, fmt.Errorf("format: %w", err)
		}
		opts.format = format
	}

	if v := r.FormValue("scale"); v != "" {
		scale, err := strconv.ParseFloat(v, 64)
		if err != nil || scale < minScale || scale > maxScale {
			return opts, fmt.Errorf("scale must be between %d and %d", minScale, maxScale)
		}
		opts.scale = scale
	}

	if v := r.FormValue("cornerRadius"); v != "" {
		cr, err := strconv.ParseFloat(v, 64)
		if err != nil || !isAllowedCornerRadius(cr) {
			return opts, fmt.Errorf("cornerRadius must be one of 0, 12.5, 25, 37.5, 50")
		}
		opts.cornerRadius = cr
	}

	if v := r.FormValue("backgroundRemovalMode"); v != "" {
		switch v {
		case "none", "color", "smart":
			opts.bgMode = imaging.BGMode(v)
		default:
			return opts, fmt.Errorf("backgroundRemovalMode must be one of none, color, smart")
		}
	}

	if v := r.FormValue("backgroundRemovalColor"); v != "" {
		if !isHexColor(v) {
			return opts, fmt.Errorf("backgroundRemovalColor must be a #rrggbb hex value")
		}
		opts.bgColor = v
	}

	if v := r.FormValue("outputSize"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil || size < minOutputSize || size > maxOutputSize {
			return opts, fmt.Errorf("outputSize must be between %d and %d", minOutputSize, maxOutputSize)
		}
		opts.outputSize = size
	}

	if v := r.FormValue("pngDpi"); v != "" {
		dpi, err := strconv.Atoi(v)
		if err != nil || dpi < minPNGDpi || dpi > maxPNGDpi {
			return opts, fmt.Errorf("pngDpi must be between %d and %d", minPNGDpi, maxPNGDpi)
		}
		opts.pngDPI = dpi
	}

	if v := r.FormValue("pngColorspace"); v != "" {
		switch v {
		case "srgb", "p3", "cmyk":
			opts.pngColorspace = imaging.Colorspace(v)
		default:
			return opts, fmt.Errorf("pngColorspace must be one of srgb, p3, cmyk")
		}
	}

	if v := r.FormValue("pngColorDepth"); v != "" {
		depth, err := strconv.Atoi(v)
		if err != nil || !isAllowedColorDepth(depth) {
			return opts, fmt.Errorf("pngColorDepth must be one of 8, 24, 32")
		}
		opts.pngColorDepth = depth
	}

	if sourceType == sourcePNGToken {
		w, err := strconv.Atoi(r.FormValue("sourceWidth"))
		if err != nil || w <= 0 {
			return opts, fmt.Errorf("sourceWidth is required and must be a positive integer for PNG sources")
		}
		h, err := strconv.Atoi(r.FormValue("sourceHeight"))
		if err != nil || h <= 0 {
			return opts, fmt.Errorf("sourceHeight is required and must be a positive integer for PNG sources")
		}
		opts.sourceWidth = w
		opts.sourceHeight = h
	}

	return opts, nil
}

func isAllowedCornerRadius(cr float64) bool {
	for _, allowed := range allowedCornerRadii {
		if absFloat(cr-allowed) < cornerRadiusEpsilon {
			return true
		}
	}
	return false
}

func isAllowedColorDepth(d int) bool {
	for _, allowed := range allowedColorDepths {
		if d == allowed {
			return true
		}
	}
	return false
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func isHexColor(s string) bool {
	if len(s) != 7 || s[0] != '#' {
		return false
	}
	for _, c := range s[1:] {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
