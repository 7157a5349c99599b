package httpapi

import (
	"time"

	"github.com/jupiterclapton/cenackle-feed/internal/core/domain"
	"github.com/jupiterclapton/cenackle-feed/internal/core/ports"
)

type postResponse struct {
	ID        int64     `json:"id"`
	Author    string    `json:"author"`
	Group     string    `json:"group,omitempty"`
	Text      string    `json:"text"`
	Image     string    `json:"image,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type pageResponse struct {
	Items        []postResponse `json:"items"`
	Page         int            `json:"page"`
	PageSize     int            `json:"page_size"`
	TotalItems   int            `json:"total_items"`
	TotalPages   int            `json:"total_pages"`
	NextPage     *int           `json:"next_page,omitempty"`
	PreviousPage *int           `json:"previous_page,omitempty"`
}

type userResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name,omitempty"`
}

type profileResponse struct {
	Author    userResponse `json:"author"`
	PostCount int          `json:"post_count"`
	Following bool         `json:"following"`
	Posts     pageResponse `json:"posts"`
}

type commentResponse struct {
	ID        int64     `json:"id"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type postDetailResponse struct {
	Post            postResponse      `json:"post"`
	AuthorPostCount int               `json:"author_post_count"`
	Comments        []commentResponse `json:"comments"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// --- Mappers ---

func toPostResponse(p domain.Post) postResponse {
	return postResponse{
		ID:        p.ID,
		Author:    p.Author,
		Group:     p.GroupSlug,
		Text:      p.Text,
		Image:     p.Image,
		CreatedAt: p.CreatedAt,
	}
}

func toPageResponse(p domain.Page) pageResponse {
	items := make([]postResponse, len(p.Items))
	for i, post := range p.Items {
		items[i] = toPostResponse(post)
	}

	res := pageResponse{
		Items:      items,
		Page:       p.Number,
		PageSize:   p.Size,
		TotalItems: p.TotalItems,
		TotalPages: p.TotalPages,
	}
	if p.HasNext {
		next := p.Number + 1
		res.NextPage = &next
	}
	if p.HasPrevious {
		prev := p.Number - 1
		res.PreviousPage = &prev
	}
	return res
}

func toProfileResponse(p *ports.Profile) profileResponse {
	return profileResponse{
		Author: userResponse{
			ID:       p.Author.ID,
			Username: p.Author.Username,
			FullName: p.Author.FullName,
		},
		PostCount: p.PostCount,
		Following: p.Following,
		Posts:     toPageResponse(p.Page),
	}
}

func toPostDetailResponse(d *ports.PostDetail) postDetailResponse {
	comments := make([]commentResponse, len(d.Comments))
	for i, c := range d.Comments {
		comments[i] = commentResponse{
			ID:        c.ID,
			Author:    c.Author,
			Text:      c.Text,
			CreatedAt: c.CreatedAt,
		}
	}
	return postDetailResponse{
		Post:            toPostResponse(d.Post),
		AuthorPostCount: d.AuthorPostCount,
		Comments:        comments,
	}
}
