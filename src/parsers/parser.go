package parsers

import (
	"io"

	"github.com/username/boxshift/backend/src/models"
)

// Parser converts one broker export format into transaction drafts.
// Row skipping is policy, not an error: the batch carries the count of rows
// dropped because a required field could not be parsed.
type Parser interface {
	Parse(file io.Reader) (*models.DraftBatch, error)
}
