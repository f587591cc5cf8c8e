package sources

import (
	"context"

	"github.com/azure/mentions-monitor/internal/models"
)

// Source is a discovery provider that turns keywords into candidate sources
type Source interface {
	GetName() string
	IsEnabled() bool
	Find(ctx context.Context, keywords []string) ([]models.Candidate, error)
}

// Source types assigned to candidates
const (
	TypeNews  = "news"
	TypeQA    = "qa"
	TypeForum = "forum"
	TypeVideo = "video"
	TypeBlog  = "blog"
	TypeWeb   = "web"
)
