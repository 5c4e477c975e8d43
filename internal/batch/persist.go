package batch

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/batch-screenshots/internal/capture"
	"github.com/JakeFAU/batch-screenshots/internal/events"
	"github.com/JakeFAU/batch-screenshots/internal/metrics"
)

const (
	defaultImageExt   = ".png"
	thumbnailSuffix   = "_thumbnail"
	markerContentType = "text/plain"
)

// saved describes what persistence wrote for one artifact.
type saved struct {
	imagePath     string
	thumbnailPath string
	digest        string
	bytes         int64
}

// persist writes the artifact below the batch root and reports the outcome.
// A failure emits ScreenshotFailed; every artifact is then appended to the
// completed collection and announced with ScreenshotCompleted.
func (r *batchRun) persist(ctx context.Context, job capture.Job, unit capture.CaptureUnit, artifact capture.Artifact) {
	started := r.clock.Now()
	name := strings.TrimSpace(unit.Filename)
	if name == "" {
		name = artifact.ID
	}
	logger := r.logger.With(
		zap.String("job_id", job.ID),
		zap.String("screenshot_id", artifact.ID),
		zap.String("browser", artifact.Browser.String()),
	)

	out, err := r.save(ctx, artifact, folderConfig(job, unit), name)
	if err != nil {
		logger.Error("screenshot failed", zap.Error(err))
		r.emit(events.Event{
			Type:      events.ScreenshotFailed,
			Job:       job,
			Artifact:  artifact,
			Unit:      unit,
			Err:       err,
			ImageName: name,
		})
	} else {
		logger.Info("screenshot saved",
			zap.String("state", string(artifact.State)),
			zap.String("image_path", out.imagePath),
			zap.Int64("bytes", out.bytes),
		)
	}

	r.completed.append(artifact)
	r.emit(events.Event{
		Type:          events.ScreenshotCompleted,
		Job:           job,
		Artifact:      artifact,
		Unit:          unit,
		Err:           err,
		ImagePath:     out.imagePath,
		ThumbnailPath: out.thumbnailPath,
		ImageName:     name,
		Digest:        out.digest,
		Bytes:         out.bytes,
		Dur:           r.clock.Now().Sub(started),
	})
}

func (r *batchRun) save(ctx context.Context, artifact capture.Artifact, cfg capture.JobConfig, name string) (saved, error) {
	var out saved
	if _, err := r.namer.Ensure(artifact.Browser, cfg); err != nil {
		return out, err
	}
	dir := r.namer.RelativePath(artifact.Browser, cfg)

	switch artifact.State {
	case capture.ArtifactStateDone:
		if artifact.ImageURL == "" {
			return out, &capture.TransportError{Op: "download", Err: errors.New("screenshot has no image url")}
		}
		rel := filepath.Join(dir, name+extension(artifact.ImageURL))
		full, digest, n, err := r.fetch(ctx, rel, artifact.ImageURL, "image")
		if err != nil {
			return out, err
		}
		out.imagePath, out.digest, out.bytes = full, digest, n

		if r.cfg.CaptureThumbnails && artifact.ThumbnailURL != "" {
			rel := filepath.Join(dir, name+thumbnailSuffix+extension(artifact.ThumbnailURL))
			full, _, n, err := r.fetch(ctx, rel, artifact.ThumbnailURL, "thumbnail")
			if err != nil {
				return out, err
			}
			out.thumbnailPath = full
			out.bytes += n
		}
	case capture.ArtifactStateTimedOut:
		rel := filepath.Join(dir, fmt.Sprintf("%s_%s.txt", name, artifact.State))
		exists, err := r.store.Exists(ctx, rel)
		if err != nil {
			return out, &capture.PersistenceError{Path: rel, Err: err}
		}
		if !exists {
			if _, err := r.store.PutObject(ctx, rel, markerContentType, nil); err != nil {
				return out, &capture.PersistenceError{Path: rel, Err: err}
			}
		}
	}
	return out, nil
}

// fetch downloads source into rel unless the file is already present. It
// returns the absolute path, the content digest and the number of bytes
// downloaded (zero when the file already existed).
func (r *batchRun) fetch(ctx context.Context, rel, source, kind string) (string, string, int64, error) {
	exists, err := r.store.Exists(ctx, rel)
	if err != nil {
		return "", "", 0, &capture.PersistenceError{Path: rel, Err: err}
	}
	if exists {
		full, err := r.store.Resolve(rel)
		if err != nil {
			return "", "", 0, &capture.PersistenceError{Path: rel, Err: err}
		}
		digest, err := r.hasher.HashFile(full)
		if err != nil {
			return "", "", 0, &capture.PersistenceError{Path: full, Err: err}
		}
		return full, digest, 0, nil
	}

	data, err := r.client.Download(ctx, source)
	metrics.ObserveDownload(kind, len(data), err)
	if err != nil {
		return "", "", 0, err
	}

	contentType := contentTypeFor(rel)
	full, err := r.store.PutObject(ctx, rel, contentType, data)
	if err != nil {
		return "", "", 0, &capture.PersistenceError{Path: rel, Err: err}
	}
	digest, err := r.hasher.Hash(data)
	if err != nil {
		return "", "", 0, &capture.PersistenceError{Path: full, Err: err}
	}

	if r.mirror != nil {
		uri, err := r.mirror.PutObject(ctx, filepath.ToSlash(rel), contentType, data)
		if err != nil {
			r.logger.Warn("mirror upload failed", zap.String("path", rel), zap.Error(err))
		} else {
			r.logger.Debug("mirrored screenshot", zap.String("uri", uri))
		}
	}
	return full, digest, int64(len(data)), nil
}

// folderConfig prefers the configuration the service echoed for the job and
// falls back to the submitted one when the echo is empty.
func folderConfig(job capture.Job, unit capture.CaptureUnit) capture.JobConfig {
	if job.Config == (capture.JobConfig{}) {
		return unit.Config
	}
	return job.Config
}

// extension returns the file extension of the URL path, ignoring any query.
func extension(source string) string {
	p := source
	if u, err := url.Parse(source); err == nil {
		p = u.Path
	}
	if ext := path.Ext(p); ext != "" {
		return ext
	}
	return defaultImageExt
}

func contentTypeFor(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
