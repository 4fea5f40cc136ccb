// Package upload validates creator uploads, stores the file in object storage
// and records the resulting video in the catalog database.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/bixapp/bix/internal/logging"
	"github.com/bixapp/bix/internal/models"
)

const (
	// DefaultSound is used when the uploader leaves the sound blank.
	DefaultSound = "Original Sound"
	// AnonymousUsername is shown when the author has neither a display name nor an email.
	AnonymousUsername = "Anonymous User"
	// PlaceholderAvatar is used when the author has no avatar.
	PlaceholderAvatar = "https://randomuser.me/api/portraits/lego/1.jpg"

	sniffLength = 3072
)

var (
	ErrNoAuthor        = errors.New("you must be signed in to upload")
	ErrNoFile          = errors.New("select a video to upload")
	ErrNotVideo        = errors.New("please select a video file")
	ErrTooLarge        = errors.New("file size must be less than 100MB")
	ErrCaptionRequired = errors.New("please add a caption")
)

// ObjectStore persists uploaded bytes and returns their public location.
type ObjectStore interface {
	Save(ctx context.Context, key, contentType string, r io.Reader) (string, error)
	Delete(ctx context.Context, key string) error
}

// VideoStore records uploaded videos.
type VideoStore interface {
	Create(ctx context.Context, video models.VideoRecord) error
}

// Author is the signed-in identity an upload is attributed to.
type Author struct {
	ID          string
	DisplayName string
	Email       string
	AvatarURL   string
}

// Request describes one upload. Size is the declared length of Body, or a
// negative value when unknown.
type Request struct {
	Author   Author
	FileName string
	Size     int64
	Body     io.Reader
	Caption  string
	Tags     string
	Sound    string
	// Progress receives the fraction of the body stored so far, ending at 1.
	Progress func(fraction float64)
}

// Service runs the upload flow.
type Service struct {
	Objects  ObjectStore
	Videos   VideoStore
	MaxBytes int64
	NowFunc  func() time.Time
	NewID    func() string
}

// Upload validates req, stores the file and creates its catalog record.
func (s *Service) Upload(ctx context.Context, req Request) (record models.VideoRecord, err error) {
	ctx, span := logging.StartSpan(ctx, "upload.video")
	defer func() { span.End(err) }()

	if strings.TrimSpace(req.Author.ID) == "" {
		return models.VideoRecord{}, ErrNoAuthor
	}
	if req.Body == nil {
		return models.VideoRecord{}, ErrNoFile
	}
	caption := strings.TrimSpace(req.Caption)
	if caption == "" {
		return models.VideoRecord{}, ErrCaptionRequired
	}
	limit := s.maxBytes()
	if req.Size > limit {
		return models.VideoRecord{}, ErrTooLarge
	}

	head := make([]byte, sniffLength)
	n, err := io.ReadFull(req.Body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return models.VideoRecord{}, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return models.VideoRecord{}, ErrNoFile
	}

	contentType, ok := videoType(head)
	if !ok {
		return models.VideoRecord{}, ErrNotVideo
	}

	now := s.now()
	key := ObjectKey(req.Author.ID, req.FileName, now)
	span.Annotate("object_key", key, "content_type", contentType, "size", req.Size)

	body := &capReader{r: io.MultiReader(bytes.NewReader(head), req.Body), remaining: limit}
	var reader io.Reader = body
	if req.Progress != nil && req.Size > 0 {
		reader = &progressReader{r: body, total: req.Size, report: req.Progress}
	}

	location, err := s.Objects.Save(ctx, key, contentType, reader)
	if err != nil {
		if body.exceeded {
			return models.VideoRecord{}, ErrTooLarge
		}
		return models.VideoRecord{}, fmt.Errorf("store upload: %w", err)
	}

	record = models.VideoRecord{
		ID:         s.newID(),
		OwnerID:    req.Author.ID,
		Username:   Username(req.Author),
		UserImage:  req.Author.AvatarURL,
		Caption:    caption,
		VideoURL:   location,
		AudioTitle: strings.TrimSpace(req.Sound),
		Tags:       ParseTags(req.Tags),
		CreatedAt:  now,
	}
	if record.UserImage == "" {
		record.UserImage = PlaceholderAvatar
	}
	if record.AudioTitle == "" {
		record.AudioTitle = DefaultSound
	}

	if err := s.Videos.Create(ctx, record); err != nil {
		if delErr := s.Objects.Delete(ctx, key); delErr != nil {
			logging.FromContext(ctx).Warn("remove orphaned upload", "object_key", key, "error", delErr)
		}
		return models.VideoRecord{}, fmt.Errorf("save video record: %w", err)
	}

	if req.Progress != nil {
		req.Progress(1)
	}
	return record, nil
}

// ObjectKey names the stored object: videos/<owner>_<unixnano>_<file name>.
func ObjectKey(ownerID, fileName string, at time.Time) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(fileName), "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "video"
	}
	return fmt.Sprintf("videos/%s_%d_%s", ownerID, at.UnixNano(), name)
}

// ParseTags splits a comma separated list, trimming and lower-casing each tag
// and dropping empty ones.
func ParseTags(raw string) []string {
	tags := []string{}
	for _, part := range strings.Split(raw, ",") {
		tag := strings.ToLower(strings.TrimSpace(part))
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// Username picks the handle shown on an upload.
func Username(a Author) string {
	if name := strings.TrimSpace(a.DisplayName); name != "" {
		return name
	}
	if local, _, ok := strings.Cut(a.Email, "@"); ok && local != "" {
		return local
	}
	return AnonymousUsername
}

func videoType(head []byte) (string, bool) {
	detected := mimetype.Detect(head)
	for m := detected; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "video/") {
			return detected.String(), true
		}
	}
	return "", false
}

func (s *Service) maxBytes() int64 {
	if s.MaxBytes <= 0 {
		return 100 * 1024 * 1024
	}
	return s.MaxBytes
}

func (s *Service) now() time.Time {
	if s.NowFunc != nil {
		return s.NowFunc()
	}
	return time.Now().UTC()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}
