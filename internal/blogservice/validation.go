package blogservice

import (
	"github.com/google/uuid"
	"github.com/sushihentaime/blogpipe/internal/common"
)

func validateTitle(v *common.Validator, title string) {
	v.Check(title != "", "title", "must be provided")
	v.Check(v.CheckStringLength(title, 1, 100), "title", "must not be more than 100 characters long")
}

func validateContent(v *common.Validator, content string) {
	v.Check(content != "", "content", "must be provided")
}

func validateUserID(v *common.Validator, id uuid.UUID) {
	v.Check(id != uuid.Nil, "user_id", "must be provided")
}

func validateCreateBlog(v *common.Validator, req *CreateBlogRequest) {
	validateTitle(v, req.Title)
	validateContent(v, req.Content)
	validateUserID(v, req.UserID)
}

func validateSearchQuery(v *common.Validator, query string) {
	v.Check(query != "", "query", "must be provided")
	v.Check(v.CheckStringLength(query, 1, 200), "query", "must not be more than 200 characters long")
}

func validateReaction(v *common.Validator, r Reaction) {
	v.Check(r == Like || r == Dislike, "reaction", "must be either like or dislike")
}
