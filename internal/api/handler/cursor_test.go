package handler

import (
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	"github.com/cuongbtq/video-gen-service/internal/tracker/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVideoCursor_RoundTrip(t *testing.T) {
	in := videoCursor{
		CreatedAt: time.Unix(0, 1740823200123456789),
		VideoID:   "6f1c2a5e-8d4b-4c1e-9f3a-2b7d5e6a9c10",
	}

	out, err := decodeVideoCursor(encodeVideoCursor(in))
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
	assert.Equal(t, in.VideoID, out.VideoID)
}

func TestDecodeVideoCursor_Errors(t *testing.T) {
	tests := []struct {
		name   string
		cursor string
	}{
		{name: "not base64", cursor: "%%%"},
		{name: "missing separator", cursor: base64.RawURLEncoding.EncodeToString([]byte("12345"))},
		{name: "missing id", cursor: base64.RawURLEncoding.EncodeToString([]byte("12345|"))},
		{name: "bad timestamp", cursor: base64.RawURLEncoding.EncodeToString([]byte("yesterday|abc"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeVideoCursor(tt.cursor)
			require.Error(t, err)
		})
	}

	t.Run("empty cursor is first page", func(t *testing.T) {
		c, err := decodeVideoCursor("")
		require.NoError(t, err)
		assert.Nil(t, c)
	})
}

// newestFirst builds n jobs one second apart, newest first like Store.List
func newestFirst(n int) []domain.Job {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	jobs := make([]domain.Job, 0, n)
	for i := n - 1; i >= 0; i-- {
		jobs = append(jobs, *domain.NewJob(fmt.Sprintf("job-%02d", i), domain.Request{}, base.Add(time.Duration(i)*time.Second)))
	}
	return jobs
}

func ids(jobs []domain.Job) []string {
	out := make([]string, len(jobs))
	for i, j := range jobs {
		out[i] = j.ID
	}
	return out
}

func TestPaginate(t *testing.T) {
	jobs := newestFirst(5)

	t.Run("walks every page", func(t *testing.T) {
		page, next := paginate(jobs, nil, 2)
		assert.Equal(t, []string{"job-04", "job-03"}, ids(page))
		require.NotNil(t, next)

		page, next = paginate(jobs, next, 2)
		assert.Equal(t, []string{"job-02", "job-01"}, ids(page))
		require.NotNil(t, next)

		page, next = paginate(jobs, next, 2)
		assert.Equal(t, []string{"job-00"}, ids(page))
		assert.Nil(t, next)
	})

	t.Run("exact fit has no next page", func(t *testing.T) {
		page, next := paginate(jobs, nil, 5)
		assert.Len(t, page, 5)
		assert.Nil(t, next)
	})

	t.Run("cursor at last job", func(t *testing.T) {
		page, next := paginate(jobs, &videoCursor{CreatedAt: jobs[4].CreatedAt, VideoID: "job-00"}, 2)
		assert.Empty(t, page)
		assert.Nil(t, next)
	})

	t.Run("evicted cursor resumes by time", func(t *testing.T) {
		cursor := &videoCursor{CreatedAt: jobs[1].CreatedAt, VideoID: "gone"}
		page, _ := paginate(jobs, cursor, 10)
		assert.Equal(t, []string{"job-02", "job-01", "job-00"}, ids(page))
	})
}
