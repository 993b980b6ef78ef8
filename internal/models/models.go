package models

import "time"

// User is the display identity of an author, resolved when posts are read.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// Post is a feed entry holding text and/or an image, its likes and its comments.
type Post struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"authorId"`
	Author    *User     `json:"user,omitempty"`
	Content   string    `json:"content"`
	ImageRef  string    `json:"image,omitempty"`
	LikedBy   UserSet   `json:"likedBy"`
	Comments  []Comment `json:"comments"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Comment is owned by its Post and only ever appended.
type Comment struct {
	AuthorID  string    `json:"authorId"`
	Author    *User     `json:"user,omitempty"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// Liked reports whether userID is in the post's liker set.
func (p *Post) Liked(userID string) bool {
	return p.LikedBy.Has(userID)
}

// AuthorIDs returns the distinct user IDs referenced by the post and its comments.
func (p *Post) AuthorIDs() []string {
	ids := NewUserSet(p.AuthorID)
	for _, c := range p.Comments {
		ids.Add(c.AuthorID)
	}
	return ids.Sorted()
}

// ResolveAuthors fills Author on the post and its comments from users.
// Unknown IDs fall back to a bare identity so clients always get a user object.
func (p *Post) ResolveAuthors(users map[string]User) {
	p.Author = lookup(users, p.AuthorID)
	for i := range p.Comments {
		p.Comments[i].Author = lookup(users, p.Comments[i].AuthorID)
	}
}

func lookup(users map[string]User, id string) *User {
	if u, ok := users[id]; ok {
		return &u
	}
	return &User{ID: id}
}
