package api

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/bixapp/bix/internal/catalog"
	"github.com/bixapp/bix/internal/models"
)

// FeedPage is one window of the vertical feed.
type FeedPage struct {
	Videos     []models.VideoRecord `json:"videos"`
	Total      int                  `json:"total"`
	NextOffset *int                 `json:"nextOffset,omitempty"`
}

// Feed returns up to limit videos starting at offset.
func (c *Client) Feed(ctx context.Context, offset, limit int) (FeedPage, error) {
	var page FeedPage
	path := "/api/v1/videos" + query(map[string]string{
		"offset": strconv.Itoa(offset),
		"limit":  strconv.Itoa(limit),
	})
	if err := c.doJSON(ctx, http.MethodGet, path, "", nil, &page); err != nil {
		return FeedPage{}, err
	}
	return page, nil
}

// Search returns the videos whose caption, author or tags contain q.
func (c *Client) Search(ctx context.Context, q string) ([]models.VideoRecord, error) {
	var resp struct {
		Videos []models.VideoRecord `json:"videos"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/videos/search"+query(map[string]string{"q": q}), "", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Videos, nil
}

// Discover returns the discovery sections for q.
func (c *Client) Discover(ctx context.Context, q string) ([]catalog.Category, error) {
	var resp struct {
		Categories []catalog.Category `json:"categories"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/videos/discover"+query(map[string]string{"q": q}), "", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Categories, nil
}

// Video fetches one video by id.
func (c *Client) Video(ctx context.Context, id string) (models.VideoRecord, error) {
	var record models.VideoRecord
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/videos/"+url.PathEscape(id), "", nil, &record); err != nil {
		return models.VideoRecord{}, err
	}
	return record, nil
}

// Profile fetches a creator profile.
func (c *Client) Profile(ctx context.Context, handle string) (models.Profile, error) {
	var profile models.Profile
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/profiles/"+url.PathEscape(handle), "", nil, &profile); err != nil {
		return models.Profile{}, err
	}
	return profile, nil
}

// UploadRequest describes a file to publish.
type UploadRequest struct {
	FileName string
	Size     int64
	Open     func() (io.ReadCloser, error)
	Caption  string
	Tags     string
	Sound    string
	// Progress receives the fraction of the file sent so far.
	Progress func(fraction float64)
}

// Upload streams the file as multipart form data. Open is called again if the
// access token has to be refreshed and the request retried.
func (c *Client) Upload(ctx context.Context, req UploadRequest) (models.VideoRecord, error) {
	var record models.VideoRecord
	err := c.doAuthed(ctx, func(token string) error {
		file, err := req.Open()
		if err != nil {
			return fmt.Errorf("open upload: %w", err)
		}
		defer file.Close()

		var body io.Reader = file
		if req.Progress != nil && req.Size > 0 {
			body = &progressReader{r: file, total: req.Size, report: req.Progress}
		}

		pr, pw := io.Pipe()
		mw := multipart.NewWriter(pw)
		go func() {
			pw.CloseWithError(writeUploadForm(mw, req, body))
		}()

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/videos", pr)
		if err != nil {
			_ = pr.Close()
			return fmt.Errorf("build request: %w", err)
		}
		httpReq.Header.Set("Content-Type", mw.FormDataContentType())

		err = c.send(httpReq, token, &record)
		_ = pr.Close()
		return err
	})
	if err != nil {
		return models.VideoRecord{}, err
	}
	return record, nil
}

func writeUploadForm(mw *multipart.Writer, req UploadRequest, body io.Reader) error {
	fields := [][2]string{{"caption", req.Caption}, {"tags", req.Tags}, {"sound", req.Sound}}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return err
		}
	}
	part, err := mw.CreateFormFile("video", req.FileName)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, body); err != nil {
		return err
	}
	return mw.Close()
}

type progressReader struct {
	r      io.Reader
	total  int64
	sent   int64
	report func(float64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		fraction := float64(p.sent) / float64(p.total)
		if fraction > 1 {
			fraction = 1
		}
		p.report(fraction)
	}
	return n, err
}
