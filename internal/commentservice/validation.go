package commentservice

import (
	"github.com/google/uuid"
	"github.com/sushihentaime/blogpipe/internal/common"
)

const maxContentLength = 500

func validateContent(v *common.Validator, content string) {
	v.Check(content != "", "content", "must be provided")
	v.Check(v.CheckStringLength(content, 1, maxContentLength), "content", "must not be more than 500 characters long")
}

func validateID(v *common.Validator, id uuid.UUID, field string) {
	v.Check(id != uuid.Nil, field, "must be provided")
}
