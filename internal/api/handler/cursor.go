package handler

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/cuongbtq/video-gen-service/internal/tracker/domain"
)

// videoCursor points at the last job of the previous page
type videoCursor struct {
	CreatedAt time.Time
	VideoID   string
}

func decodeVideoCursor(cursorStr string) (*videoCursor, error) {
	if cursorStr == "" {
		return nil, nil
	}

	decoded, err := base64.RawURLEncoding.DecodeString(cursorStr)
	if err != nil {
		return nil, err
	}

	createdPart, id, ok := strings.Cut(string(decoded), "|")
	if !ok || id == "" {
		return nil, fmt.Errorf("invalid cursor format")
	}

	var createdAt int64
	if _, err := fmt.Sscanf(createdPart, "%d", &createdAt); err != nil {
		return nil, fmt.Errorf("invalid createdAt in cursor: %w", err)
	}

	return &videoCursor{
		CreatedAt: time.Unix(0, createdAt),
		VideoID:   id,
	}, nil
}

func encodeVideoCursor(cursor videoCursor) string {
	cs := fmt.Sprintf("%d|%s", cursor.CreatedAt.UnixNano(), cursor.VideoID)
	return base64.RawURLEncoding.EncodeToString([]byte(cs))
}

// paginate slices a newest-first job list. When the cursor job has been
// evicted the page resumes at the first older job.
func paginate(jobs []domain.Job, cursor *videoCursor, pageSize int) ([]domain.Job, *videoCursor) {
	start := 0
	if cursor != nil {
		start = len(jobs)
		found := false
		for i, job := range jobs {
			if job.ID == cursor.VideoID {
				start, found = i+1, true
				break
			}
		}
		if !found {
			for i, job := range jobs {
				if job.CreatedAt.Before(cursor.CreatedAt) {
					start = i
					break
				}
			}
		}
	}

	rest := jobs[start:]
	if len(rest) <= pageSize {
		return rest, nil
	}

	page := rest[:pageSize]
	last := page[len(page)-1]
	return page, &videoCursor{CreatedAt: last.CreatedAt, VideoID: last.ID}
}
